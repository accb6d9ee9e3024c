package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial"

	"github.com/gwillem/orbo/pkg/robot"
)

type InfoCommand struct {
	Ports bool `long:"ports" description:"List serial ports"`
}

func (c *InfoCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Orbo Info"))
	fmt.Println(dimStyle.Render("━━━━━━━━━"))
	fmt.Println()

	if c.Ports {
		listPorts()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("Configuration: %s\n", opts.Config)
	fmt.Printf("  Driver:          %s\n", cfg.Driver)
	switch cfg.Driver {
	case robot.DriverPCA9685:
		bus := cfg.I2CBus
		if bus == "" {
			bus = "(first)"
		}
		fmt.Printf("  I2C bus:         %s @ %#x\n", bus, cfg.I2CAddress)
	case robot.DriverFeetech:
		fmt.Printf("  Serial port:     %s @ %d baud\n", cfg.SerialPort, cfg.BaudRate)
	}
	fmt.Printf("  Rotation speed:  %d°\n", cfg.RotationSpeed)
	fmt.Printf("  Return home:     %d ms/step\n", cfg.ReturnHomeDelayMs)
	fmt.Println()
	fmt.Println(renderWiring(cfg.Servos))

	if cfg.Driver == robot.DriverFeetech {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("Servos on bus"))
		showBus(cfg.SerialPort, cfg.BaudRate)
	}
	return nil
}

func listPorts() {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return
	}

	fmt.Println(subHeaderStyle.Render("Serial ports"))
	if len(ports) == 0 {
		fmt.Println(dimStyle.Render("  none"))
	}
	for _, p := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		fmt.Printf("  %s\n", p)
	}
	fmt.Println()
}

func renderWiring(cal robot.Calibration) string {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(cal))
	for _, j := range robot.AllJoints() {
		jc := cal[j]
		ac := jc.AttachConfig(j)

		pulse := "driver default"
		if ac.Pulse.MinUs != 0 || ac.Pulse.MaxUs != 0 {
			pulse = fmt.Sprintf("%d-%d µs", ac.Pulse.MinUs, ac.Pulse.MaxUs)
		}
		kind := "positional"
		if ac.Continuous {
			kind = "continuous"
		}
		rows = append(rows, []string{string(j), fmt.Sprintf("%d", jc.Channel), kind, pulse})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Channel", "Kind", "Pulse").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 {
				return tableJointStyle
			}
			return tableCellStyle
		}).
		Render()
}
