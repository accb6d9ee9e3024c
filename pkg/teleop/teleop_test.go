package teleop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/orbo/pkg/robot"
	"github.com/gwillem/orbo/pkg/servo"
)

type noSleep struct {
	mu    sync.Mutex
	total time.Duration
}

func (s *noSleep) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total += d
}

func (s *noSleep) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func newRobot(t *testing.T, sleeper robot.Sleeper) (*robot.Controller, *servo.Recorder) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	rec := servo.NewRecorder(logger)
	r, err := robot.New(context.Background(), rec, robot.NewCalibration(0, 1, 2, 3), robot.Options{
		Logger: logger,
		Clock:  sleeper,
	})
	require.NoError(t, err)
	rec.Reset()
	return r, rec
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"balance-left 30", Command{Op: OpBalanceLeft, Degree: 30}},
		{"BALANCE-RIGHT -10", Command{Op: OpBalanceRight, Degree: -10}},
		{"home", Command{Op: OpHome}},
		{"rotate-foot left C", Command{Op: OpRotateFoot, Feet: []robot.Foot{robot.LeftFootServo}, Rotation: robot.Clockwise}},
		{"rotate-foot r anticlockwise", Command{Op: OpRotateFoot, Feet: []robot.Foot{robot.RightFootServo}, Rotation: robot.Anticlockwise}},
		{"rotate-foot left true", Command{Op: OpRotateFoot, Feet: []robot.Foot{robot.LeftFootServo}, Rotation: robot.Clockwise}},
		{"rotate-foot left x", Command{Op: OpRotateFoot, Feet: []robot.Foot{robot.LeftFootServo}, Rotation: robot.Rotation('X')}},
		{"stop-foot", Command{Op: OpStopFoot}},
		{"stop-foot left right", Command{Op: OpStopFoot, Feet: []robot.Foot{robot.LeftFootServo, robot.RightFootServo}}},
		{"mode drive", Command{Op: OpMode, Mode: robot.Drive}},
		{"mode Walk", Command{Op: OpMode, Mode: robot.Walk}},
		{"drive forward", Command{Op: OpDrive, Direction: robot.Forward}},
		{"drive b", Command{Op: OpDrive, Direction: robot.Backward}},
		{"drive ?", Command{Op: OpDrive, Direction: robot.Direction('?')}},
		{"speed 40", Command{Op: OpSpeed, Speed: 40}},
		{"speed-by -5", Command{Op: OpSpeedBy, Speed: -5}},
		{"wait 250", Command{Op: OpWait, Wait: 250 * time.Millisecond}},
		{"wait 1.5s", Command{Op: OpWait, Wait: 1500 * time.Millisecond}},
		{"walk 3 20", Command{Op: OpWalk, Steps: 3, Degree: 20}},
	}

	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if assert.NoError(t, err, tt.in) {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestParseCommand_Errors(t *testing.T) {
	tests := []struct {
		in  string
		err error
	}{
		{"", ErrUnknownCommand},
		{"jump 3", ErrUnknownCommand},
		{"balance-left", ErrMissingArgument},
		{"rotate-foot left", ErrMissingArgument},
		{"walk 3", ErrMissingArgument},
		{"rotate-foot middle C", robot.ErrUnknownFoot},
		{"stop-foot both", robot.ErrUnknownFoot},
	}

	for _, tt := range tests {
		_, err := ParseCommand(tt.in)
		assert.True(t, errors.Is(err, tt.err), "%q: got %v, want %v", tt.in, err, tt.err)
	}

	_, err := ParseCommand("balance-left many")
	assert.Error(t, err)

	_, err = ParseCommand("mode fly")
	assert.Error(t, err)
}

func TestCommand_String(t *testing.T) {
	for _, in := range []string{"balance-left 30", "home", "drive F", "speed 10", "walk 2 15", "stop-foot", "wait 500", "speed-by 5", "mode drive", "rotate-foot right A", "stop-foot left"} {
		cmd, err := ParseCommand(in)
		require.NoError(t, err)

		again, err := ParseCommand(cmd.String())
		require.NoError(t, err, cmd.String())
		assert.Equal(t, cmd, again)
	}
}

func TestCommand_Run(t *testing.T) {
	sleeper := &noSleep{}
	r, rec := newRobot(t, sleeper)
	ctx := context.Background()

	cmds, err := ParseCommands([]string{
		"speed 30",
		"drive F",
		"wait 500",
		"stop-foot",
		"balance-left 30",
		"home",
	})
	require.NoError(t, err)

	for _, cmd := range cmds {
		require.NoError(t, cmd.Run(ctx, r, sleeper), cmd.String())
	}

	assert.Equal(t, []int{120, 90}, rec.WritesTo(1))
	assert.Equal(t, []int{60, 90}, rec.WritesTo(3))
	assert.Equal(t, 90, r.LeftLegAngle())
	assert.Equal(t, 90, r.RightLegAngle())
	assert.True(t, r.IsWalkMode())
	assert.GreaterOrEqual(t, sleeper.Total(), 500*time.Millisecond)
}

func TestCommand_RunWalk(t *testing.T) {
	sleeper := &noSleep{}
	r, rec := newRobot(t, sleeper)

	cmd, err := ParseCommand("walk 2 15")
	require.NoError(t, err)
	require.NoError(t, cmd.Run(context.Background(), r, sleeper))

	left := rec.WritesTo(0)
	assert.Contains(t, left, 105)
	assert.Contains(t, left, 80) // 90 - 2*15/3
	assert.Equal(t, 90, left[len(left)-1])
	assert.Equal(t, 90, r.RightLegAngle())
}

func waitForCommand(t *testing.T, states <-chan State, op Op) State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if s.Command.Op == op {
				return s
			}
		case <-timeout:
			t.Fatalf("no state for %s", op)
		}
	}
}

func TestController(t *testing.T) {
	sleeper := &noSleep{}
	r, rec := newRobot(t, sleeper)
	logger, _ := test.NewNullLogger()

	ctrl, err := NewController(Config{Robot: r, Logger: logger, Clock: sleeper})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ctrl.Start(ctx) }()

	for _, in := range []string{"drive L", "speed 10", "balance-right 20"} {
		cmd, err := ParseCommand(in)
		require.NoError(t, err)
		require.NoError(t, ctrl.Submit(cmd))
	}

	s := waitForCommand(t, ctrl.States(), OpBalanceRight)
	assert.NoError(t, s.Error)
	assert.True(t, s.Snapshot.WalkMode)
	assert.Equal(t, 10, s.Snapshot.RotationSpeed)
	assert.Equal(t, 70, s.Snapshot.RightLegAngle)
	assert.Equal(t, 77, s.Snapshot.LeftLegAngle)
	assert.Equal(t, 65, s.Snapshot.RightFootAngle)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}

	last, _ := rec.Last(3)
	assert.Equal(t, 90, last, "feet stop on shutdown")
	assert.False(t, ctrl.Running())
}

func TestController_SpeedSteps(t *testing.T) {
	sleeper := &noSleep{}
	r, rec := newRobot(t, sleeper)

	ctrl, err := NewController(Config{Robot: r, Clock: sleeper})
	require.NoError(t, err)

	// Queued before the runner starts, so no state is published in between.
	for i := 0; i < 3; i++ {
		require.NoError(t, ctrl.Submit(Command{Op: OpSpeedBy, Speed: 5}))
	}
	require.NoError(t, ctrl.Submit(Command{Op: OpSpeedBy, Speed: -100}))
	for i := 0; i < 2; i++ {
		require.NoError(t, ctrl.Submit(Command{Op: OpSpeedBy, Speed: 5}))
	}
	require.NoError(t, ctrl.Submit(Command{Op: OpDrive, Direction: robot.Forward}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Start(ctx)

	s := waitForCommand(t, ctrl.States(), OpDrive)
	assert.NoError(t, s.Error)
	assert.Equal(t, 10, s.Snapshot.RotationSpeed)
	assert.Equal(t, []int{100}, rec.WritesTo(1))
}

func TestController_ReportsErrors(t *testing.T) {
	sleeper := &noSleep{}
	r, _ := newRobot(t, sleeper)

	ctrl, err := NewController(Config{Robot: r, Clock: sleeper})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Start(ctx)

	require.NoError(t, ctrl.Submit(Command{Op: OpMode, Mode: robot.Drive}))
	require.NoError(t, ctrl.Submit(Command{Op: OpHome}))

	s := waitForCommand(t, ctrl.States(), OpHome)
	assert.ErrorIs(t, s.Error, robot.ErrDriveMode)
}

func TestController_QueueFull(t *testing.T) {
	r, _ := newRobot(t, &noSleep{})

	ctrl, err := NewController(Config{Robot: r, QueueSize: 1})
	require.NoError(t, err)

	require.NoError(t, ctrl.Submit(Command{Op: OpHome}))
	assert.ErrorIs(t, ctrl.Submit(Command{Op: OpHome}), ErrQueueFull)
	assert.Equal(t, 1, ctrl.Pending())
}

func TestNewController_NoRobot(t *testing.T) {
	_, err := NewController(Config{})
	assert.Error(t, err)
}
