// Package servo provides angle-addressed servo drivers.
//
// A Driver attaches servos to hardware channels. Every Servo accepts angle
// writes in degrees, Arduino style: positional servos move to the angle,
// continuous-rotation servos spin at a rate proportional to the offset from 90.
package servo

import (
	"context"
	"errors"
)

// Neutral is the centered position of a positional servo and the stop
// command of a continuous-rotation servo.
const Neutral = 90

var (
	ErrNotAttached   = errors.New("servo not attached")
	ErrChannelInUse  = errors.New("channel already attached")
	ErrUnknownDriver = errors.New("unknown driver")
)

// PulseRange is the pulse width, in microseconds, that maps to 0 and 180 degrees.
type PulseRange struct {
	MinUs int `yaml:"min_us"`
	MaxUs int `yaml:"max_us"`
}

// DefaultPulseRange matches the Arduino Servo library defaults.
var DefaultPulseRange = PulseRange{MinUs: 544, MaxUs: 2400}

// Pulse maps an angle onto the range. The angle is clamped to [0, 180].
func (p PulseRange) Pulse(angle int) int {
	angle = Clamp(angle)
	return p.MinUs + (p.MaxUs-p.MinUs)*angle/180
}

// AttachConfig describes how a servo is connected.
type AttachConfig struct {
	Pulse      PulseRange
	Continuous bool
}

// Servo is a single attached actuator.
type Servo interface {
	Write(ctx context.Context, angle int) error
}

// Driver attaches servos to channels. Each channel may be attached once.
type Driver interface {
	Attach(ctx context.Context, channel int, cfg AttachConfig) (Servo, error)
	Close() error
}

// Clamp limits an angle to [0, 180].
func Clamp(angle int) int {
	if angle < 0 {
		return 0
	}
	if angle > 180 {
		return 180
	}
	return angle
}

func (c AttachConfig) withDefaults() AttachConfig {
	if c.Pulse.MinUs == 0 && c.Pulse.MaxUs == 0 {
		c.Pulse = DefaultPulseRange
	}
	return c
}
