package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/orbo/pkg/robot"
	"github.com/gwillem/orbo/pkg/servo"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Test bool `long:"test" description:"Wiggle the legs after saving to check the wiring"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Orbo Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if existing, err := robot.LoadConfigFrom(opts.Config); err == nil {
		cfg = existing
		fmt.Printf("Editing %s\n\n", opts.Config)
	}

	// Step 1: Driver
	if err := chooseDriver(cfg); err != nil {
		return err
	}

	// Step 2: Wiring
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Servo Wiring ━━━"))
	fmt.Println()
	if cfg.Driver == robot.DriverFeetech {
		showBus(cfg.SerialPort, cfg.BaudRate)
	}
	if err := wireServos(cfg); err != nil {
		return err
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)

	if c.Test {
		fmt.Println()
		return wiggle()
	}

	fmt.Println()
	fmt.Println("Start driving with: " + headerStyle.Render("orbo teleoperate"))
	return nil
}

func chooseDriver(cfg *robot.Config) error {
	address := fmt.Sprintf("%#x", cfg.I2CAddress)

	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
	}
	var portOptions []huh.Option[string]
	for _, p := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		portOptions = append(portOptions, huh.NewOption(p, p))
	}
	if len(portOptions) == 0 {
		portOptions = append(portOptions, huh.NewOption("(no serial ports found)", ""))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How are the servos connected?").
				Options(
					huh.NewOption("PCA9685 PWM board (hobby servos)", robot.DriverPCA9685),
					huh.NewOption("Feetech serial bus (STS servos)", robot.DriverFeetech),
					huh.NewOption("Dry run (no hardware)", robot.DriverDryRun),
				).
				Value(&cfg.Driver),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("I2C bus").
				Description("Leave empty for the first bus").
				Value(&cfg.I2CBus),
			huh.NewInput().
				Title("I2C address").
				Value(&address).
				Validate(validateAddress),
		).WithHideFunc(func() bool { return cfg.Driver != robot.DriverPCA9685 }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Serial port").
				Options(portOptions...).
				Value(&cfg.SerialPort),
		).WithHideFunc(func() bool { return cfg.Driver != robot.DriverFeetech }),
	)

	if err := form.Run(); err != nil {
		return err
	}

	addr, _ := strconv.ParseUint(address, 0, 16)
	cfg.I2CAddress = uint16(addr)
	return nil
}

func wireServos(cfg *robot.Config) error {
	joints := robot.AllJoints()
	channels := make([]string, len(joints))
	for i, j := range joints {
		channels[i] = strconv.Itoa(cfg.Servos[j].Channel)
	}
	speed := strconv.Itoa(cfg.RotationSpeed)
	delay := strconv.Itoa(cfg.ReturnHomeDelayMs)

	label := "Channel"
	if cfg.Driver == robot.DriverFeetech {
		label = "Servo ID"
	}

	fields := make([]huh.Field, 0, len(joints)+2)
	for i, j := range joints {
		fields = append(fields, huh.NewInput().
			Title(fmt.Sprintf("%s %s", label, j)).
			Value(&channels[i]).
			Validate(validateInt))
	}
	fields = append(fields,
		huh.NewInput().
			Title("Foot rotation speed").
			Description("Degrees offset from 90").
			Value(&speed).
			Validate(validateInt),
		huh.NewInput().
			Title("Return home step delay (ms)").
			Value(&delay).
			Validate(validateInt),
	)

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	servos := make(robot.Calibration, len(joints))
	for i, j := range joints {
		jc := cfg.Servos[j]
		jc.Channel, _ = strconv.Atoi(strings.TrimSpace(channels[i]))
		servos[j] = jc
	}
	if err := servos.Validate(); err != nil {
		return err
	}
	cfg.Servos = servos
	cfg.RotationSpeed, _ = strconv.Atoi(strings.TrimSpace(speed))
	cfg.ReturnHomeDelayMs, _ = strconv.Atoi(strings.TrimSpace(delay))
	return nil
}

// showBus lists the servos answering on a Feetech bus.
func showBus(port string, baud int) {
	if port == "" {
		return
	}
	fmt.Printf("Scanning %s...\n", port)

	found, err := scanBus(port, baud)
	if err != nil {
		fmt.Printf("  Error scanning bus: %v\n\n", err)
		return
	}
	fmt.Println(renderFound(found))
	fmt.Println()
}

func scanBus(port string, baud int) ([]feetech.FoundServo, error) {
	drv, err := servo.NewFeetech(servo.FeetechConfig{Port: port, BaudRate: baud}, logger)
	if err != nil {
		return nil, err
	}
	defer drv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return drv.Scan(ctx, 1, 16)
}

func renderFound(found []feetech.FoundServo) string {
	if len(found) == 0 {
		return dimStyle.Render("  No servos found")
	}

	rows := make([][]string, 0, len(found))
	for _, s := range found {
		rows = append(rows, []string{fmt.Sprintf("%d", s.ID), fmt.Sprintf("%v", s.Model)})
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "Model").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Render()
}

// wiggle balances left and right once so the user can check the wiring.
func wiggle() error {
	ctx := context.Background()
	r, _, _, err := openRobot(ctx)
	if err != nil {
		return err
	}
	defer r.Close(ctx)

	fmt.Println("Wiggling legs...")
	for _, step := range []func() error{
		func() error { return r.BalanceLeft(ctx, 20) },
		func() error { return r.ReturnHome(ctx) },
		func() error { return r.BalanceRight(ctx, 20) },
		func() error { return r.ReturnHome(ctx) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	fmt.Println(successStyle.Render("Done."))
	return nil
}

func validateInt(s string) error {
	if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("not a number")
	}
	return nil
}

func validateAddress(s string) error {
	if _, err := strconv.ParseUint(s, 0, 16); err != nil {
		return fmt.Errorf("not an address")
	}
	return nil
}
