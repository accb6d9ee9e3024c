package teleop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gwillem/orbo/pkg/robot"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// Op names a command verb.
type Op string

const (
	OpBalanceLeft  Op = "balance-left"
	OpBalanceRight Op = "balance-right"
	OpHome         Op = "home"
	OpRotateFoot   Op = "rotate-foot"
	OpStopFoot     Op = "stop-foot"
	OpMode         Op = "mode"
	OpDrive        Op = "drive"
	OpSpeed        Op = "speed"
	OpSpeedBy      Op = "speed-by"
	OpWait         Op = "wait"
	OpWalk         Op = "walk"
)

// Command is one parsed robot instruction. Only the fields used by Op are set.
type Command struct {
	Op        Op
	Degree    int
	Steps     int
	Speed     int
	Wait      time.Duration
	Feet      []robot.Foot
	Rotation  robot.Rotation
	Mode      robot.Mode
	Direction robot.Direction
}

// ParseCommand parses a command such as "balance-left 30", "drive F",
// "rotate-foot left C" or "walk 4 20". Unknown rotation and direction codes
// are accepted and stop the feet when run.
func ParseCommand(s string) (Command, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("parse %q: %w", s, ErrUnknownCommand)
	}

	op := Op(strings.ToLower(fields[0]))
	args := fields[1:]
	cmd := Command{Op: op}

	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("parse %q: %s needs %d argument(s): %w", s, op, n, ErrMissingArgument)
		}
		return nil
	}

	var err error
	switch op {
	case OpBalanceLeft, OpBalanceRight:
		if err = need(1); err != nil {
			return Command{}, err
		}
		cmd.Degree, err = parseInt(s, args[0])

	case OpHome:

	case OpRotateFoot:
		if err = need(2); err != nil {
			return Command{}, err
		}
		var foot robot.Foot
		if foot, err = parseFoot(args[0]); err != nil {
			return Command{}, fmt.Errorf("parse %q: %w", s, err)
		}
		cmd.Feet = []robot.Foot{foot}
		cmd.Rotation = parseRotation(args[1])

	case OpStopFoot:
		for _, a := range args {
			foot, err := parseFoot(a)
			if err != nil {
				return Command{}, fmt.Errorf("parse %q: %w", s, err)
			}
			cmd.Feet = append(cmd.Feet, foot)
		}

	case OpMode:
		if err = need(1); err != nil {
			return Command{}, err
		}
		switch strings.ToLower(args[0]) {
		case "walk":
			cmd.Mode = robot.Walk
		case "drive":
			cmd.Mode = robot.Drive
		default:
			return Command{}, fmt.Errorf("parse %q: unknown mode %q", s, args[0])
		}

	case OpDrive:
		if err = need(1); err != nil {
			return Command{}, err
		}
		cmd.Direction = robot.Direction(strings.ToUpper(args[0])[0])

	case OpSpeed, OpSpeedBy:
		if err = need(1); err != nil {
			return Command{}, err
		}
		cmd.Speed, err = parseInt(s, args[0])

	case OpWait:
		if err = need(1); err != nil {
			return Command{}, err
		}
		cmd.Wait, err = parseWait(s, args[0])

	case OpWalk:
		if err = need(2); err != nil {
			return Command{}, err
		}
		if cmd.Steps, err = parseInt(s, args[0]); err != nil {
			return Command{}, err
		}
		cmd.Degree, err = parseInt(s, args[1])

	default:
		return Command{}, fmt.Errorf("parse %q: %w", s, ErrUnknownCommand)
	}

	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// ParseCommands parses one command per element.
func ParseCommands(lines []string) ([]Command, error) {
	cmds := make([]Command, 0, len(lines))
	for _, l := range lines {
		cmd, err := ParseCommand(l)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Run executes the command on r. Waits block on sleeper.
func (c Command) Run(ctx context.Context, r *robot.Controller, sleeper robot.Sleeper) error {
	switch c.Op {
	case OpBalanceLeft:
		return r.BalanceLeft(ctx, c.Degree)
	case OpBalanceRight:
		return r.BalanceRight(ctx, c.Degree)
	case OpHome:
		return r.ReturnHome(ctx)
	case OpRotateFoot:
		for _, f := range c.Feet {
			if err := r.RotateFoot(ctx, f, c.Rotation); err != nil {
				return err
			}
		}
		return nil
	case OpStopFoot:
		return r.StopFoot(ctx, c.Feet...)
	case OpMode:
		return r.ModeChange(ctx, c.Mode)
	case OpDrive:
		return r.Drive(ctx, c.Direction)
	case OpSpeed:
		r.SetRotationSpeed(c.Speed)
		return nil
	case OpSpeedBy:
		r.AdjustRotationSpeed(c.Speed)
		return nil
	case OpWait:
		sleeper.Sleep(c.Wait)
		return nil
	case OpWalk:
		for i := 0; i < c.Steps; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.BalanceLeft(ctx, c.Degree); err != nil {
				return err
			}
			if err := r.ReturnHome(ctx); err != nil {
				return err
			}
			if err := r.BalanceRight(ctx, c.Degree); err != nil {
				return err
			}
			if err := r.ReturnHome(ctx); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("run %q: %w", c.Op, ErrUnknownCommand)
	}
}

func (c Command) String() string {
	switch c.Op {
	case OpBalanceLeft, OpBalanceRight:
		return fmt.Sprintf("%s %d", c.Op, c.Degree)
	case OpRotateFoot:
		return fmt.Sprintf("%s %s %s", c.Op, feetString(c.Feet), c.Rotation)
	case OpStopFoot:
		if len(c.Feet) == 0 {
			return string(c.Op)
		}
		return fmt.Sprintf("%s %s", c.Op, feetString(c.Feet))
	case OpMode:
		return fmt.Sprintf("%s %s", c.Op, c.Mode)
	case OpDrive:
		return fmt.Sprintf("%s %s", c.Op, c.Direction)
	case OpSpeed, OpSpeedBy:
		return fmt.Sprintf("%s %d", c.Op, c.Speed)
	case OpWait:
		return fmt.Sprintf("%s %s", c.Op, c.Wait)
	case OpWalk:
		return fmt.Sprintf("%s %d %d", c.Op, c.Steps, c.Degree)
	default:
		return string(c.Op)
	}
}

func feetString(feet []robot.Foot) string {
	names := make([]string, len(feet))
	for i, f := range feet {
		names[i] = f.String()
	}
	return strings.Join(names, " ")
}

func parseInt(s, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return n, nil
}

// parseWait accepts a duration ("1.5s") or bare milliseconds ("500").
func parseWait(s, arg string) (time.Duration, error) {
	if d, err := time.ParseDuration(arg); err == nil {
		return d, nil
	}
	ms, err := parseInt(s, arg)
	return time.Duration(ms) * time.Millisecond, err
}

func parseFoot(s string) (robot.Foot, error) {
	switch strings.ToLower(s) {
	case "left", "l":
		return robot.LeftFootServo, nil
	case "right", "r":
		return robot.RightFootServo, nil
	default:
		return 0, fmt.Errorf("foot %q: %w", s, robot.ErrUnknownFoot)
	}
}

// parseRotation accepts the single letter codes and their spelled out forms.
func parseRotation(s string) robot.Rotation {
	switch strings.ToLower(s) {
	case "c", "cw", "clockwise", "true":
		return robot.Clockwise
	case "a", "ccw", "anticlockwise", "false":
		return robot.Anticlockwise
	default:
		return robot.Rotation(strings.ToUpper(s)[0])
	}
}
