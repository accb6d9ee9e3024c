package servo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaudRate is the STS servo factory baud rate.
	DefaultBaudRate = 1_000_000

	// DefaultVelocityScale converts a degree offset from neutral into STS velocity steps.
	DefaultVelocityScale = 20

	stepsPerRevolution = 4096
	centerPosition     = 2048
)

// FeetechConfig configures a Feetech serial bus.
type FeetechConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration

	// MoveTimeMs is passed with every position write; 0 moves at full speed.
	MoveTimeMs    int
	VelocityScale int
}

// Feetech drives STS serial bus servos. The channel is the servo ID.
type Feetech struct {
	bus    *feetech.Bus
	cfg    FeetechConfig
	logger logrus.FieldLogger

	mu     sync.Mutex
	servos map[int]*feetech.Servo
}

// NewFeetech opens the serial bus.
func NewFeetech(cfg FeetechConfig, logger logrus.FieldLogger) (*Feetech, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.VelocityScale == 0 {
		cfg.VelocityScale = DefaultVelocityScale
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Feetech{
		bus:    bus,
		cfg:    cfg,
		logger: logger.WithFields(logrus.Fields{"driver": "feetech", "port": cfg.Port}),
		servos: make(map[int]*feetech.Servo),
	}, nil
}

// Scan lists the servos answering on IDs [first, last].
func (f *Feetech) Scan(ctx context.Context, first, last int) ([]feetech.FoundServo, error) {
	servos, err := f.bus.Scan(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("scan bus: %w", err)
	}
	return servos, nil
}

// Attach enables torque on the servo with the given ID. The operating mode is
// set first with torque off: velocity for continuous servos, position
// otherwise, whatever mode the servo was left in.
func (f *Feetech) Attach(ctx context.Context, channel int, cfg AttachConfig) (Servo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.servos[channel]; ok {
		return nil, fmt.Errorf("attach servo %d: %w", channel, ErrChannelInUse)
	}

	s := feetech.NewServo(f.bus, channel, nil)
	if err := s.Disable(ctx); err != nil {
		return nil, fmt.Errorf("disable servo %d: %w", channel, err)
	}
	if err := s.SetOperatingMode(ctx, operatingMode(cfg)); err != nil {
		return nil, fmt.Errorf("set operating mode on servo %d: %w", channel, err)
	}
	if err := s.Enable(ctx); err != nil {
		return nil, fmt.Errorf("enable servo %d: %w", channel, err)
	}
	f.servos[channel] = s

	f.logger.WithFields(logrus.Fields{"id": channel, "continuous": cfg.Continuous}).Debug("attached servo")

	if cfg.Continuous {
		return &wheelServo{driver: f, id: channel}, nil
	}
	return &busServo{driver: f, id: channel}, nil
}

// Close disables torque on every attached servo and closes the bus.
func (f *Feetech) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx := context.Background()
	for id, s := range f.servos {
		if err := s.Disable(ctx); err != nil {
			f.logger.WithError(err).WithField("id", id).Warn("failed to disable servo")
		}
	}
	f.servos = map[int]*feetech.Servo{}
	return f.bus.Close()
}

func (f *Feetech) servo(id int) (*feetech.Servo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servos[id]
	if !ok {
		return nil, ErrNotAttached
	}
	return s, nil
}

// operatingMode is the STS mode a servo is attached in.
func operatingMode(cfg AttachConfig) int {
	if cfg.Continuous {
		return feetech.ModeVelocity
	}
	return feetech.ModePosition
}

// positionForAngle maps 0..180 degrees around the STS center position.
func positionForAngle(angle int) int {
	return centerPosition + (Clamp(angle)-Neutral)*stepsPerRevolution/360
}

// velocityForAngle follows the hobby servo convention: below 90 spins clockwise,
// which the STS protocol expresses as a positive velocity.
func velocityForAngle(angle, scale int) int {
	return (Neutral - Clamp(angle)) * scale
}

type busServo struct {
	driver *Feetech
	id     int
}

func (s *busServo) Write(ctx context.Context, angle int) error {
	fs, err := s.driver.servo(s.id)
	if err != nil {
		return err
	}
	if err := fs.SetPositionWithTime(ctx, positionForAngle(angle), s.driver.cfg.MoveTimeMs); err != nil {
		return fmt.Errorf("write servo %d: %w", s.id, err)
	}
	return nil
}

type wheelServo struct {
	driver *Feetech
	id     int
}

func (s *wheelServo) Write(ctx context.Context, angle int) error {
	fs, err := s.driver.servo(s.id)
	if err != nil {
		return err
	}
	if err := fs.SetVelocity(ctx, velocityForAngle(angle, s.driver.cfg.VelocityScale)); err != nil {
		return fmt.Errorf("write servo %d: %w", s.id, err)
	}
	return nil
}
