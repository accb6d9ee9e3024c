package robot

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/gwillem/orbo/pkg/servo"
)

const DefaultConfigFile = "orbo.yaml"

// Driver names accepted in the config.
const (
	DriverPCA9685 = "pca9685"
	DriverFeetech = "feetech"
	DriverDryRun  = "dry-run"
)

// Config holds the robot configuration
type Config struct {
	Driver string `yaml:"driver"`

	I2CBus     string `yaml:"i2c_bus"`
	I2CAddress uint16 `yaml:"i2c_address"`

	SerialPort string `yaml:"serial_port,omitempty"`
	BaudRate   int    `yaml:"baud_rate,omitempty"`

	Servos Calibration `yaml:"servos"`

	RotationSpeed     int `yaml:"rotation_speed"`
	ReturnHomeDelayMs int `yaml:"return_home_delay_ms"`
}

// DefaultConfig returns a PCA9685 setup with the servos on channels 0 to 3.
func DefaultConfig() *Config {
	return &Config{
		Driver:            DriverPCA9685,
		I2CAddress:        servo.DefaultPCA9685Addr,
		BaudRate:          servo.DefaultBaudRate,
		Servos:            NewCalibration(0, 1, 2, 3),
		RotationSpeed:     DefaultRotationSpeed,
		ReturnHomeDelayMs: int(DefaultReturnHomeDelay / time.Millisecond),
	}
}

// Options converts the tunables into controller options. Zero values are
// passed through as is.
func (c *Config) Options(logger logrus.FieldLogger) Options {
	speed := c.RotationSpeed
	delay := time.Duration(c.ReturnHomeDelayMs) * time.Millisecond
	return Options{
		Logger:          logger,
		RotationSpeed:   &speed,
		ReturnHomeDelay: &delay,
	}
}

// OpenDriver opens the servo driver named in the config.
func (c *Config) OpenDriver(logger logrus.FieldLogger) (servo.Driver, error) {
	switch c.Driver {
	case DriverPCA9685:
		return servo.NewPCA9685(c.I2CBus, c.I2CAddress, logger)
	case DriverFeetech:
		return servo.NewFeetech(servo.FeetechConfig{
			Port:     c.SerialPort,
			BaudRate: c.BaudRate,
		}, logger)
	case DriverDryRun:
		return servo.NewRecorder(logger), nil
	default:
		return nil, fmt.Errorf("driver %q: %w", c.Driver, servo.ErrUnknownDriver)
	}
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Missing fields
// keep their DefaultConfig values.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Servos.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
