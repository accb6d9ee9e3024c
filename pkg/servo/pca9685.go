package servo

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

const (
	// DefaultPCA9685Addr is the factory I2C address of the board.
	DefaultPCA9685Addr = 0x40

	pwmFrequency = 50 * physic.Hertz
	pwmPeriodUs  = 20000
	pwmMax       = 4096
)

// PCA9685 drives hobby PWM servos through a PCA9685 16 channel board.
type PCA9685 struct {
	bus    i2c.BusCloser
	dev    *pca9685.Dev
	logger logrus.FieldLogger

	mu       sync.Mutex
	attached map[int]bool
}

// NewPCA9685 opens the named I2C bus ("" for the first one) and configures the
// board at addr for 50Hz servo pulses.
func NewPCA9685(busName string, addr uint16, logger logrus.FieldLogger) (*PCA9685, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}

	dev, err := pca9685.NewI2C(bus, addr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open pca9685: %w", err)
	}

	if err := dev.SetPwmFreq(pwmFrequency); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set pwm frequency: %w", err)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &PCA9685{
		bus:      bus,
		dev:      dev,
		logger:   logger.WithField("driver", "pca9685"),
		attached: make(map[int]bool),
	}, nil
}

// Attach claims one of the 16 PWM outputs.
func (p *PCA9685) Attach(ctx context.Context, channel int, cfg AttachConfig) (Servo, error) {
	if channel < 0 || channel > 15 {
		return nil, fmt.Errorf("attach channel %d: out of range", channel)
	}
	cfg = cfg.withDefaults()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attached[channel] {
		return nil, fmt.Errorf("attach channel %d: %w", channel, ErrChannelInUse)
	}
	p.attached[channel] = true

	p.logger.WithFields(logrus.Fields{
		"channel":    channel,
		"min_us":     cfg.Pulse.MinUs,
		"max_us":     cfg.Pulse.MaxUs,
		"continuous": cfg.Continuous,
	}).Debug("attached servo")

	return &pwmServo{driver: p, channel: channel, pulse: cfg.Pulse}, nil
}

// Close turns every output off and releases the bus.
func (p *PCA9685) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for ch := range p.attached {
		if err := p.dev.SetPwm(ch, 0, 0); err != nil {
			p.logger.WithError(err).WithField("channel", ch).Warn("failed to release output")
		}
	}
	p.attached = map[int]bool{}
	return p.bus.Close()
}

type pwmServo struct {
	driver  *PCA9685
	channel int
	pulse   PulseRange
}

func (s *pwmServo) Write(_ context.Context, angle int) error {
	off := dutyForPulse(s.pulse.Pulse(angle))

	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	if !s.driver.attached[s.channel] {
		return ErrNotAttached
	}
	if err := s.driver.dev.SetPwm(s.channel, 0, off); err != nil {
		return fmt.Errorf("write channel %d: %w", s.channel, err)
	}
	return nil
}

// dutyForPulse converts a pulse width into the 12-bit off count of a 50Hz period.
func dutyForPulse(us int) gpio.Duty {
	return gpio.Duty(us * pwmMax / pwmPeriodUs)
}
