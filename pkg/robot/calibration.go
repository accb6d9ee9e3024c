package robot

import (
	"fmt"

	"github.com/gwillem/orbo/pkg/servo"
)

// LegPulseRange is the extended pulse range the leg servos are attached with.
var LegPulseRange = servo.PulseRange{MinUs: 120, MaxUs: 2400}

// JointCalibration holds the wiring of a single servo.
type JointCalibration struct {
	Channel int `yaml:"channel"`
	MinUs   int `yaml:"min_us,omitempty"`
	MaxUs   int `yaml:"max_us,omitempty"`
}

// Calibration holds wiring for all joints, keyed by joint name.
type Calibration map[Joint]JointCalibration

// NewCalibration wires the four servos to the given channels with the
// default pulse ranges: extended for legs, driver default for feet.
func NewCalibration(leftLeg, leftFoot, rightLeg, rightFoot int) Calibration {
	return Calibration{
		LeftLeg:   {Channel: leftLeg, MinUs: LegPulseRange.MinUs, MaxUs: LegPulseRange.MaxUs},
		LeftFoot:  {Channel: leftFoot},
		RightLeg:  {Channel: rightLeg, MinUs: LegPulseRange.MinUs, MaxUs: LegPulseRange.MaxUs},
		RightFoot: {Channel: rightFoot},
	}
}

// AttachConfig returns how the joint's servo is attached. Legs without a
// pulse range get LegPulseRange; feet fall back to the driver default.
func (c JointCalibration) AttachConfig(j Joint) servo.AttachConfig {
	pulse := servo.PulseRange{MinUs: c.MinUs, MaxUs: c.MaxUs}
	if pulse.MinUs == 0 && pulse.MaxUs == 0 && !j.IsFoot() {
		pulse = LegPulseRange
	}
	return servo.AttachConfig{
		Pulse:      pulse,
		Continuous: j.IsFoot(),
	}
}

// Validate checks that every joint is present and that no channel is shared.
func (c Calibration) Validate() error {
	seen := make(map[int]Joint, len(c))
	for _, j := range AllJoints() {
		jc, ok := c[j]
		if !ok {
			return fmt.Errorf("calibration: missing %s", j)
		}
		if other, dup := seen[jc.Channel]; dup {
			return fmt.Errorf("calibration: %s and %s share channel %d", other, j, jc.Channel)
		}
		if jc.MaxUs < jc.MinUs {
			return fmt.Errorf("calibration: %s pulse range %d..%d is inverted", j, jc.MinUs, jc.MaxUs)
		}
		seen[jc.Channel] = j
	}
	return nil
}

// Channels returns the channel of every joint, in AllJoints order.
func (c Calibration) Channels() []int {
	channels := make([]int, 0, len(c))
	for _, j := range AllJoints() {
		if jc, ok := c[j]; ok {
			channels = append(channels, jc.Channel)
		}
	}
	return channels
}

// ByChannel returns the joint wired to a channel.
func (c Calibration) ByChannel(channel int) (Joint, JointCalibration, bool) {
	for j, jc := range c {
		if jc.Channel == channel {
			return j, jc, true
		}
	}
	return "", JointCalibration{}, false
}
