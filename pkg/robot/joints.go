// Package robot provides the Orbo actuator controller: two positional leg
// servos and two continuous-rotation foot servos driven through open-loop gaits.
package robot

// Joint identifies one of the four servos.
type Joint string

// Joints of the Orbo robot.
const (
	LeftLeg   Joint = "left_leg"
	LeftFoot  Joint = "left_foot"
	RightLeg  Joint = "right_leg"
	RightFoot Joint = "right_foot"
)

// AllJoints returns all joints in attach order.
func AllJoints() []Joint {
	return []Joint{
		LeftLeg,
		LeftFoot,
		RightLeg,
		RightFoot,
	}
}

// IsFoot reports whether the joint is a continuous-rotation foot.
func (j Joint) IsFoot() bool {
	return j == LeftFoot || j == RightFoot
}

// Mode is the robot posture. The values alias true and false so that a
// plain bool reads the same way.
type Mode bool

const (
	Walk  Mode = true
	Drive Mode = false
)

func (m Mode) String() string {
	if m == Walk {
		return "walk"
	}
	return "drive"
}

// Rotation is a foot rotation code. Any value other than Clockwise or
// Anticlockwise stops the foot.
type Rotation byte

const (
	Clockwise     Rotation = 'C'
	Anticlockwise Rotation = 'A'
	Stop          Rotation = 0
)

// RotationFromBool maps true to Clockwise and false to Anticlockwise.
func RotationFromBool(clockwise bool) Rotation {
	if clockwise {
		return Clockwise
	}
	return Anticlockwise
}

func (r Rotation) String() string {
	switch r {
	case Clockwise:
		return "clockwise"
	case Anticlockwise:
		return "anticlockwise"
	default:
		return "stop"
	}
}

// Direction is a drive direction code, the first letter of the direction.
// Any other value stops both feet.
type Direction byte

const (
	Forward  Direction = 'F'
	Backward Direction = 'B'
	Left     Direction = 'L'
	Right    Direction = 'R'
	Halt     Direction = 0
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "halt"
	}
}

// Foot selects a foot servo.
type Foot int

const (
	LeftFootServo Foot = iota
	RightFootServo
)

func (f Foot) String() string {
	switch f {
	case LeftFootServo:
		return "left"
	case RightFootServo:
		return "right"
	default:
		return "unknown"
	}
}
