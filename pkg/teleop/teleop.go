// Package teleop runs robot commands one at a time on a single goroutine and
// publishes the robot state after each of them.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/orbo/pkg/robot"
)

var ErrQueueFull = errors.New("command queue full")

// State represents the robot state after a command.
type State struct {
	Snapshot  robot.Snapshot
	Command   Command
	Timestamp time.Time
	Error     error
}

// Controller serializes commands onto a robot.
type Controller struct {
	robot  *robot.Controller
	clock  robot.Sleeper
	logger logrus.FieldLogger

	mu      sync.RWMutex
	running bool
	queue   chan Command
	stateCh chan State
	logCh   chan string
}

// Config holds configuration for the controller.
type Config struct {
	Robot     *robot.Controller
	Logger    logrus.FieldLogger
	Clock     robot.Sleeper
	QueueSize int
}

// NewController creates a new teleoperation controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Robot == nil {
		return nil, fmt.Errorf("create controller: no robot")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &Controller{
		robot:   cfg.Robot,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		queue:   make(chan Command, cfg.QueueSize),
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}, nil
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Robot returns the controlled robot.
func (c *Controller) Robot() *robot.Controller {
	return c.robot
}

// Submit queues a command without blocking.
func (c *Controller) Submit(cmd Command) error {
	select {
	case c.queue <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued commands.
func (c *Controller) Pending() int {
	return len(c.queue)
}

func (c *Controller) log(level logrus.Level, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	switch level {
	case logrus.DebugLevel:
		c.logger.Debug(text)
	case logrus.WarnLevel:
		c.logger.Warn(text)
	default:
		c.logger.Info(text)
	}

	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), text)
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs queued commands until ctx is cancelled, then stops both feet.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	c.log(logrus.InfoLevel, "Command runner started")
	c.sendState(State{Snapshot: c.robot.Snapshot(), Timestamp: time.Now()})

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case cmd := <-c.queue:
			c.step(ctx, cmd)
		}
	}
}

// Running reports whether Start is executing.
func (c *Controller) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Controller) step(ctx context.Context, cmd Command) {
	err := cmd.Run(ctx, c.robot, c.clock)
	if err != nil {
		c.log(logrus.WarnLevel, "%s: %v", cmd, err)
	} else {
		c.log(logrus.DebugLevel, "%s", cmd)
	}

	c.sendState(State{
		Snapshot:  c.robot.Snapshot(),
		Command:   cmd,
		Timestamp: time.Now(),
		Error:     err,
	})
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	// Queued commands are discarded.
	for len(c.queue) > 0 {
		<-c.queue
	}

	if err := c.robot.StopFoot(context.Background()); err != nil {
		c.log(logrus.WarnLevel, "Warning: failed to stop feet: %v", err)
	} else {
		c.log(logrus.InfoLevel, "Feet stopped")
	}
	c.log(logrus.InfoLevel, "Command runner stopped")
}
