package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/orbo/pkg/robot"
	"github.com/gwillem/orbo/pkg/servo"
	"github.com/gwillem/orbo/pkg/teleop"
)

type RunCommand struct {
	Args struct {
		Commands []string `positional-arg-name:"command" required:"1" description:"Commands such as 'balance-left 30', separated by ';' or given as separate arguments"`
	} `positional-args:"yes"`
}

func (c *RunCommand) Execute(args []string) error {
	var lines []string
	for _, a := range c.Args.Commands {
		for _, l := range strings.Split(a, ";") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
	}

	cmds, err := teleop.ParseCommands(lines)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, cfg, driver, err := openRobot(ctx)
	if err != nil {
		return err
	}
	defer r.Close(context.Background())

	sleeper := clock.New()
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.WithField("command", cmd.String()).Info("run")
		if err := cmd.Run(ctx, r, sleeper); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
	}

	snap := r.Snapshot()
	logger.WithFields(logrus.Fields{
		"walk_mode":  snap.WalkMode,
		"left_leg":   snap.LeftLegAngle,
		"right_leg":  snap.RightLegAngle,
		"left_foot":  snap.LeftFootAngle,
		"right_foot": snap.RightFootAngle,
	}).Info("done")

	if rec, ok := driver.(*servo.Recorder); ok {
		fmt.Println(renderWrites(rec.Writes(), cfg.Servos))
	}
	return nil
}

// renderWrites tabulates the writes recorded during a dry run.
func renderWrites(writes []servo.Write, cal robot.Calibration) string {
	rows := make([][]string, 0, len(writes))
	for i, w := range writes {
		joint, _, _ := cal.ByChannel(w.Channel)
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			string(joint),
			fmt.Sprintf("%d", w.Channel),
			fmt.Sprintf("%d", w.Angle),
		})
	}

	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Joint", "Channel", "Angle").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Bold(true).Foreground(lipgloss.Color("12"))
			}
			return cellStyle
		}).
		Render()
}
