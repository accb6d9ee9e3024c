// Package orbo controls the four servos of the Orbo bipedal robot.
//
// Orbo has two legs and two feet. The legs are positional servos that tilt
// the body to balance on one side; the feet are continuous-rotation servos
// that spin to walk or drive. Servos are driven through a PCA9685 PWM board,
// a Feetech serial bus, or a dry-run recorder.
//
// # Installation
//
//	go install github.com/gwillem/orbo/cmd/orbo@latest
//
// # Usage
//
// First, run setup to choose a driver and wire the servos:
//
//	orbo setup
//
// Run a sequence of commands:
//
//	orbo run 'balance-left 30; rotate-foot right cw; wait 500ms; home'
//
// Or drive from the keyboard:
//
//	orbo teleoperate
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/orbo: CLI with setup, run, info and teleoperate commands
//   - pkg/servo: Servo drivers (PCA9685, Feetech, dry-run recorder)
//   - pkg/robot: Actuator controller, calibration, and configuration
//   - pkg/teleop: Command language and queued command runner
package orbo
