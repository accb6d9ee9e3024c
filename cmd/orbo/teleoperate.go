package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/orbo/pkg/robot"
	"github.com/gwillem/orbo/pkg/teleop"
)

type TeleoperateCommand struct {
	Degree    int `long:"degree" default:"30" description:"Balance angle for the a/d keys"`
	SpeedStep int `long:"speed-step" default:"5" description:"Rotation speed change for the +/- keys"`
}

const (
	headerHeight = 3 // title + status + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	helpHeight   = 1
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors - distinct colors for each servo
var jointColors = map[robot.Joint]string{
	robot.LeftLeg:   "196", // red
	robot.LeftFoot:  "208", // orange
	robot.RightLeg:  "46",  // green
	robot.RightFoot: "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	modeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

const helpText = "a/d balance  h home  ←↑↓→ drive  space stop  z/x left foot  c/v right foot  w walk  m drive  +/- speed  q quit"

type teleopModel struct {
	ctrl      *teleop.Controller
	chart     *streamlinechart.Model
	degree    int
	speedStep int
	snapshot  robot.Snapshot
	width     int      // terminal width
	height    int      // terminal height
	logs      []string // last N log messages
	quitting  bool
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - helpHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *teleopModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialTeleopModel(ctrl *teleop.Controller, degree, speedStep int) teleopModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, 180),
	)

	// Set up data set styles for each joint
	for _, j := range robot.AllJoints() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j]))
		chart.SetDataSetStyles(string(j), runes.ThinLineStyle, style)
	}

	return teleopModel{
		ctrl:      ctrl,
		chart:     &chart,
		degree:    degree,
		speedStep: speedStep,
		snapshot:  ctrl.Robot().Snapshot(),
	}
}

func (m teleopModel) Init() tea.Cmd {
	// Start listening for state and log updates
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

// keyCommand maps a key to a robot command.
func (m teleopModel) keyCommand(key string) (teleop.Command, bool) {
	switch key {
	case "a":
		return teleop.Command{Op: teleop.OpBalanceLeft, Degree: m.degree}, true
	case "d":
		return teleop.Command{Op: teleop.OpBalanceRight, Degree: m.degree}, true
	case "h":
		return teleop.Command{Op: teleop.OpHome}, true
	case "up":
		return teleop.Command{Op: teleop.OpDrive, Direction: robot.Forward}, true
	case "down":
		return teleop.Command{Op: teleop.OpDrive, Direction: robot.Backward}, true
	case "left":
		return teleop.Command{Op: teleop.OpDrive, Direction: robot.Left}, true
	case "right":
		return teleop.Command{Op: teleop.OpDrive, Direction: robot.Right}, true
	case " ":
		return teleop.Command{Op: teleop.OpStopFoot}, true
	case "z", "x":
		return teleop.Command{Op: teleop.OpRotateFoot, Feet: []robot.Foot{robot.LeftFootServo}, Rotation: robot.RotationFromBool(key == "z")}, true
	case "c", "v":
		return teleop.Command{Op: teleop.OpRotateFoot, Feet: []robot.Foot{robot.RightFootServo}, Rotation: robot.RotationFromBool(key == "c")}, true
	case "w":
		return teleop.Command{Op: teleop.OpMode, Mode: robot.Walk}, true
	case "m":
		return teleop.Command{Op: teleop.OpMode, Mode: robot.Drive}, true
	case "+", "=":
		return teleop.Command{Op: teleop.OpSpeedBy, Speed: m.speedStep}, true
	case "-":
		return teleop.Command{Op: teleop.OpSpeedBy, Speed: -m.speedStep}, true
	}
	return teleop.Command{}, false
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if cmd, ok := m.keyCommand(msg.String()); ok {
			if err := m.ctrl.Submit(cmd); err != nil {
				m.addLog(fmt.Sprintf("%s: %v", cmd, err))
			}
		}
		return m, nil

	case stateMsg:
		state := teleop.State(msg)
		m.snapshot = state.Snapshot
		m.chart.PushDataSet(string(robot.LeftLeg), float64(state.Snapshot.LeftLegAngle))
		m.chart.PushDataSet(string(robot.RightLeg), float64(state.Snapshot.RightLegAngle))
		m.chart.PushDataSet(string(robot.LeftFoot), float64(state.Snapshot.LeftFootAngle))
		m.chart.PushDataSet(string(robot.RightFoot), float64(state.Snapshot.RightFootAngle))
		m.chart.DrawAll()
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Orbo Teleoperate"))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(modeStyle.Render(robot.Mode(m.snapshot.WalkMode).String()))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  speed %d°  legs %d/%d  feet %d/%d  queued %d",
		m.snapshot.RotationSpeed,
		m.snapshot.LeftLegAngle, m.snapshot.RightLegAngle,
		m.snapshot.LeftFootAngle, m.snapshot.RightFootAngle,
		m.ctrl.Pending())))
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(helpText))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, j := range robot.AllJoints() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j])).Bold(true)
		item := colorStyle.Render("━━") + " " + string(j)
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func (c *TeleoperateCommand) Execute(args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, _, _, err := openRobot(ctx)
	if err != nil {
		return err
	}
	defer r.Close(context.Background())

	// The TUI owns the terminal, keep log output in the log box.
	logger.SetOutput(io.Discard)

	ctrl, err := teleop.NewController(teleop.Config{
		Robot:  r,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}

	// Start controller in background
	done := make(chan error, 1)
	go func() {
		done <- ctrl.Start(ctx)
	}()

	// Run TUI
	p := tea.NewProgram(initialTeleopModel(ctrl, c.Degree, c.SpeedStep), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	cancel()
	if err := <-done; err != nil && err != context.Canceled {
		log.Printf("Controller error: %v", err)
	}
	return nil
}
