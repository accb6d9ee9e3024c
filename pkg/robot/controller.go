package robot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/orbo/pkg/servo"
)

const (
	// Neutral is the home position of the legs and the stop command of the feet.
	Neutral = servo.Neutral

	// DefaultRotationSpeed is the foot speed, in degrees off neutral, of a new controller.
	DefaultRotationSpeed = 25
	// DefaultReturnHomeDelay is the pause after each ReturnHome step.
	DefaultReturnHomeDelay = 3 * time.Millisecond

	// ModeSettle is paid by every mode change, even when the mode is unchanged.
	ModeSettle = 200 * time.Millisecond
	// BalanceSettle separates the push and the commit phase of a balance.
	BalanceSettle = 25 * time.Millisecond

	// DriveLeftLegAngle is the left leg angle in drive mode, splayed to lift it
	// clear of the ground.
	DriveLeftLegAngle = 170
	// DriveRightLegAngle mirrors DriveLeftLegAngle.
	DriveRightLegAngle = 10
)

var (
	// ErrDriveMode is returned by ReturnHome when the robot is in drive mode.
	ErrDriveMode = errors.New("return home requires walk mode")
	// ErrUnknownFoot is returned for a Foot other than LeftFootServo or RightFootServo.
	ErrUnknownFoot = errors.New("unknown foot")
)

// Sleeper blocks for a duration. clock.Clock satisfies it.
type Sleeper interface {
	Sleep(d time.Duration)
}

// Options tunes a Controller. Nil fields select the defaults; a non-nil
// zero RotationSpeed or ReturnHomeDelay is used as is.
type Options struct {
	Logger          logrus.FieldLogger
	Clock           Sleeper
	RotationSpeed   *int
	ReturnHomeDelay *time.Duration
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	WalkMode        bool
	RotationSpeed   int
	LeftLegAngle    int
	RightLegAngle   int
	LeftFootAngle   int
	RightFootAngle  int
	ReturnHomeDelay time.Duration
}

// Controller owns the four servos of an Orbo robot. Every operation holds the
// controller lock for its whole duration, settle delays included, so commands
// from different goroutines never interleave.
//
// The cached leg angles always equal the last angle written to the leg servos.
type Controller struct {
	driver servo.Driver
	clock  Sleeper
	logger logrus.FieldLogger

	mu        sync.Mutex
	leftLeg   servo.Servo
	leftFoot  servo.Servo
	rightLeg  servo.Servo
	rightFoot servo.Servo

	walkMode        bool
	rotationSpeed   int
	leftLegAngle    int
	rightLegAngle   int
	leftFootAngle   int
	rightFootAngle  int
	returnHomeDelay time.Duration
}

// New attaches the four servos described by cal and moves them to neutral.
func New(ctx context.Context, driver servo.Driver, cal Calibration, opts Options) (*Controller, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	speed, delay := DefaultRotationSpeed, DefaultReturnHomeDelay
	if opts.RotationSpeed != nil {
		speed = *opts.RotationSpeed
	}
	if opts.ReturnHomeDelay != nil {
		delay = *opts.ReturnHomeDelay
	}

	c := &Controller{
		driver:          driver,
		clock:           opts.Clock,
		logger:          opts.Logger,
		walkMode:        true,
		rotationSpeed:   speed,
		returnHomeDelay: delay,
	}

	handles := map[Joint]*servo.Servo{
		LeftLeg:   &c.leftLeg,
		LeftFoot:  &c.leftFoot,
		RightLeg:  &c.rightLeg,
		RightFoot: &c.rightFoot,
	}
	for _, j := range AllJoints() {
		jc := cal[j]
		s, err := driver.Attach(ctx, jc.Channel, jc.AttachConfig(j))
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", j, err)
		}
		*handles[j] = s
	}

	if err := c.writeLeftLeg(ctx, Neutral); err != nil {
		return nil, err
	}
	if err := c.writeFoot(ctx, LeftFootServo, Neutral); err != nil {
		return nil, err
	}
	if err := c.writeRightLeg(ctx, Neutral); err != nil {
		return nil, err
	}
	if err := c.writeFoot(ctx, RightFootServo, Neutral); err != nil {
		return nil, err
	}

	c.logger.WithField("channels", cal.Channels()).Info("controller ready")
	return c, nil
}

// Close stops both feet and releases the driver.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if err := c.stopFeet(ctx, LeftFootServo, RightFootServo); err != nil {
		errs = append(errs, err)
	}
	if err := c.driver.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BalanceLeft shifts the robot's weight onto its left leg. The right leg
// first pushes the robot over by two thirds of degree, then the left leg
// bends by the full degree to take the weight.
func (c *Controller) BalanceLeft(ctx context.Context, degree int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"op": "balance_left", "degree": degree}).Debug("balance")

	if err := c.modeChange(ctx, Walk); err != nil {
		return err
	}
	if err := c.writeRightLeg(ctx, Neutral+2*degree/3); err != nil {
		return err
	}
	c.clock.Sleep(BalanceSettle)
	return c.writeLeftLeg(ctx, Neutral+degree)
}

// BalanceRight is the mirror image of BalanceLeft.
func (c *Controller) BalanceRight(ctx context.Context, degree int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"op": "balance_right", "degree": degree}).Debug("balance")

	if err := c.modeChange(ctx, Walk); err != nil {
		return err
	}
	if err := c.writeLeftLeg(ctx, Neutral-2*degree/3); err != nil {
		return err
	}
	c.clock.Sleep(BalanceSettle)
	return c.writeRightLeg(ctx, Neutral-degree)
}

// ReturnHome steps both legs back to neutral after a balance, one degree per
// step on the leading leg and two thirds of a degree on the other, sleeping
// ReturnHomeDelay between steps. The step count is the displacement of the
// left leg when it is above neutral, otherwise that of the right leg.
//
// ReturnHome only undoes a balance: in drive mode it writes nothing and
// returns ErrDriveMode. Use ModeChange(ctx, Walk) to leave drive mode.
func (c *Controller) ReturnHome(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.walkMode {
		return ErrDriveMode
	}

	left, right := c.leftLegAngle, c.rightLegAngle
	var steps int
	if left > Neutral {
		steps = abs(left - Neutral)
	} else {
		steps = abs(right - Neutral)
	}

	c.logger.WithFields(logrus.Fields{
		"op":    "return_home",
		"left":  left,
		"right": right,
		"steps": steps,
	}).Debug("return home")

	for i := 0; i < steps; i++ {
		var l, r int
		if left > Neutral {
			r, l = towardNeutral(right, i*2/3), towardNeutral(left, i)
		} else {
			r, l = towardNeutral(right, i), towardNeutral(left, i*2/3)
		}
		if err := c.writeRightLeg(ctx, r); err != nil {
			return err
		}
		if err := c.writeLeftLeg(ctx, l); err != nil {
			return err
		}
		c.clock.Sleep(c.returnHomeDelay)
	}

	// The last step stops short of neutral.
	if steps > 0 || c.rightLegAngle != Neutral {
		if err := c.writeRightLeg(ctx, Neutral); err != nil {
			return err
		}
	}
	if steps > 0 || c.leftLegAngle != Neutral {
		if err := c.writeLeftLeg(ctx, Neutral); err != nil {
			return err
		}
	}
	return nil
}

// RotateFoot spins a foot at RotationSpeed. Rotation codes other than
// Clockwise and Anticlockwise stop the foot.
func (c *Controller) RotateFoot(ctx context.Context, foot Foot, r Rotation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"op": "rotate_foot", "foot": foot, "rotation": r}).Debug("rotate foot")

	return c.writeFoot(ctx, foot, c.footAngle(r))
}

// StopFoot stops the given feet, or both when none are given.
func (c *Controller) StopFoot(ctx context.Context, feet ...Foot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(feet) == 0 {
		feet = []Foot{LeftFootServo, RightFootServo}
	}
	return c.stopFeet(ctx, feet...)
}

// ModeChange moves the legs to the posture of mode and waits ModeSettle.
// The delay is paid even if the robot is already in that mode.
func (c *Controller) ModeChange(ctx context.Context, mode Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modeChange(ctx, mode)
}

// Drive switches to drive mode and turns both feet for the direction.
// Unknown direction codes stop both feet.
func (c *Controller) Drive(ctx context.Context, d Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"op": "drive", "direction": d}).Debug("drive")

	if err := c.modeChange(ctx, Drive); err != nil {
		return err
	}

	s := c.rotationSpeed
	var left, right int
	switch d {
	case Forward:
		left, right = Neutral+s, Neutral-s
	case Backward:
		left, right = Neutral-s, Neutral+s
	case Left:
		left, right = Neutral, Neutral-s
	case Right:
		left, right = Neutral+s, Neutral
	default:
		left, right = Neutral, Neutral
	}

	if err := c.writeFoot(ctx, LeftFootServo, left); err != nil {
		return err
	}
	return c.writeFoot(ctx, RightFootServo, right)
}

// IsWalkMode reports whether the robot is in walk mode.
func (c *Controller) IsWalkMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.walkMode
}

// SetWalkMode overrides the mode flag without moving any servo.
func (c *Controller) SetWalkMode(walk bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.walkMode = walk
}

// RotationSpeed is the foot speed as a degree offset from neutral.
func (c *Controller) RotationSpeed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotationSpeed
}

// SetRotationSpeed takes effect on the next foot command.
func (c *Controller) SetRotationSpeed(speed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotationSpeed = speed
}

// AdjustRotationSpeed changes the rotation speed by delta, stopping at zero,
// and returns the new speed.
func (c *Controller) AdjustRotationSpeed(delta int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotationSpeed = max(0, c.rotationSpeed+delta)
	return c.rotationSpeed
}

// LeftLegAngle is the angle last written to the left leg.
func (c *Controller) LeftLegAngle() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leftLegAngle
}

// SetLeftLegAngle moves the left leg.
func (c *Controller) SetLeftLegAngle(ctx context.Context, angle int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLeftLeg(ctx, angle)
}

// RightLegAngle is the angle last written to the right leg.
func (c *Controller) RightLegAngle() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rightLegAngle
}

// SetRightLegAngle moves the right leg.
func (c *Controller) SetRightLegAngle(ctx context.Context, angle int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeRightLeg(ctx, angle)
}

// ReturnHomeDelay is the pause after each ReturnHome step.
func (c *Controller) ReturnHomeDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.returnHomeDelay
}

// SetReturnHomeDelay takes effect on the next ReturnHome.
func (c *Controller) SetReturnHomeDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.returnHomeDelay = d
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		WalkMode:        c.walkMode,
		RotationSpeed:   c.rotationSpeed,
		LeftLegAngle:    c.leftLegAngle,
		RightLegAngle:   c.rightLegAngle,
		LeftFootAngle:   c.leftFootAngle,
		RightFootAngle:  c.rightFootAngle,
		ReturnHomeDelay: c.returnHomeDelay,
	}
}

func (c *Controller) modeChange(ctx context.Context, mode Mode) error {
	c.logger.WithFields(logrus.Fields{"op": "mode_change", "mode": mode}).Debug("mode change")

	c.walkMode = bool(mode)
	left, right := Neutral, Neutral
	if mode == Drive {
		left, right = DriveLeftLegAngle, DriveRightLegAngle
	}
	if err := c.writeLeftLeg(ctx, left); err != nil {
		return err
	}
	if err := c.writeRightLeg(ctx, right); err != nil {
		return err
	}
	c.clock.Sleep(ModeSettle)
	return nil
}

func (c *Controller) footAngle(r Rotation) int {
	switch r {
	case Clockwise:
		return Neutral - c.rotationSpeed
	case Anticlockwise:
		return Neutral + c.rotationSpeed
	default:
		return Neutral
	}
}

func (c *Controller) stopFeet(ctx context.Context, feet ...Foot) error {
	for _, f := range feet {
		if err := c.writeFoot(ctx, f, Neutral); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) writeLeftLeg(ctx context.Context, angle int) error {
	if err := c.leftLeg.Write(ctx, angle); err != nil {
		return fmt.Errorf("write %s: %w", LeftLeg, err)
	}
	c.leftLegAngle = angle
	return nil
}

func (c *Controller) writeRightLeg(ctx context.Context, angle int) error {
	if err := c.rightLeg.Write(ctx, angle); err != nil {
		return fmt.Errorf("write %s: %w", RightLeg, err)
	}
	c.rightLegAngle = angle
	return nil
}

func (c *Controller) writeFoot(ctx context.Context, foot Foot, angle int) error {
	switch foot {
	case LeftFootServo:
		if err := c.leftFoot.Write(ctx, angle); err != nil {
			return fmt.Errorf("write %s: %w", LeftFoot, err)
		}
		c.leftFootAngle = angle
	case RightFootServo:
		if err := c.rightFoot.Write(ctx, angle); err != nil {
			return fmt.Errorf("write %s: %w", RightFoot, err)
		}
		c.rightFootAngle = angle
	default:
		return fmt.Errorf("foot %d: %w", int(foot), ErrUnknownFoot)
	}
	return nil
}

// towardNeutral moves angle delta degrees closer to neutral without passing it.
func towardNeutral(angle, delta int) int {
	if d := abs(angle - Neutral); delta > d {
		delta = d
	}
	if angle > Neutral {
		return angle - delta
	}
	return angle + delta
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
