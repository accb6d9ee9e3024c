package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/orbo/pkg/robot"
	"github.com/gwillem/orbo/pkg/servo"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"orbo.yaml" description:"Configuration file"`
	DryRun  bool   `long:"dry-run" description:"Record servo writes instead of moving hardware"`
	Verbose []bool `short:"v" long:"verbose" description:"Log more (repeat for debug output)"`

	Setup       SetupCommand       `command:"setup" description:"Choose a servo driver and wire the four servos"`
	Run         RunCommand         `command:"run" description:"Run robot commands in order"`
	Info        InfoCommand        `command:"info" description:"Show the configuration and scan the servo bus"`
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Drive the robot from the keyboard"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

var logger = logrus.New()

func main() {
	parser.LongDescription = "Orbo - actuator control CLI for the Orbo bipedal robot"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		configureLogger()
		return cmd.Execute(args)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

func configureLogger() {
	switch len(opts.Verbose) {
	case 0:
		logger.SetLevel(logrus.WarnLevel)
	case 1:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.DebugLevel)
	}
}

func loadConfig() (*robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("load %s (run 'orbo setup' first): %w", opts.Config, err)
	}
	if opts.DryRun {
		cfg.Driver = robot.DriverDryRun
	}
	return cfg, nil
}

// openRobot loads the configuration and attaches the servos.
func openRobot(ctx context.Context) (*robot.Controller, *robot.Config, servo.Driver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	driver, err := cfg.OpenDriver(logger)
	if err != nil {
		return nil, nil, nil, err
	}

	r, err := robot.New(ctx, driver, cfg.Servos, cfg.Options(logger))
	if err != nil {
		driver.Close()
		return nil, nil, nil, err
	}
	return r, cfg, driver, nil
}
