package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/ThoseGrapefruits/robot-rock/pkg/input"
	"github.com/ThoseGrapefruits/robot-rock/pkg/robot"
	"github.com/ThoseGrapefruits/robot-rock/pkg/teleop"
)

type RunCommand struct {
	Hz       int    `long:"hz" description:"Settle frequency (overrides the config file)"`
	DryRun   bool   `long:"dry-run" description:"Log servo writes instead of driving hardware"`
	Headless bool   `long:"headless" description:"Log to stderr instead of showing the dashboard"`
	Listen   string `long:"listen" description:"Controller websocket address (overrides the config file)"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Series colors, cycled when there are more servos than colors.
var servoColors = []string{"196", "208", "226", "46", "51", "33", "201", "141", "214", "118", "45", "213"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	leanStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
)

type dashboardModel struct {
	ctrl     *teleop.Controller
	chart    *streamlinechart.Model
	names    []string // series names in servo order
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	last     teleop.State
	quitting bool
	lastPos  map[string]float64 // freeze the chart while nothing moves
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *dashboardModel) hasMovement(servos []teleop.ServoState) bool {
	if m.lastPos == nil {
		return true
	}
	for _, s := range servos {
		if pos, ok := m.lastPos[s.Name]; !ok || pos != s.Normalized {
			return true
		}
	}
	return false
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

func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *dashboardModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newDashboardModel(ctrl *teleop.Controller) dashboardModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 100),
	)

	servos := ctrl.Servos()
	var names []string
	for i, s := range servos.All() {
		name := robot.ServoName(servos.Layout(), s.Index)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(servoColors[i%len(servoColors)]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
		names = append(names, name)
	}

	return dashboardModel{
		ctrl:  ctrl,
		chart: &chart,
		names: names,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	case stateMsg:
		state := teleop.State(msg)
		m.last = state
		if m.hasMovement(state.Servos) {
			if m.lastPos == nil {
				m.lastPos = make(map[string]float64, len(state.Servos))
			}
			for _, s := range state.Servos {
				m.chart.PushDataSet(s.Name, s.Normalized)
				m.lastPos[s.Name] = s.Normalized
			}
			m.chart.DrawAll()
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Stopping...\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("robotrock"))
	sb.WriteString(fmt.Sprintf(" - %d Hz  height %+.2f  settle %s", m.ctrl.Hz(), m.last.Height, m.last.Filter))
	if m.last.Leaned {
		sb.WriteString("  " + leanStyle.Render("LEAN"))
	}
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) renderLegend() string {
	var items []string
	for i, name := range m.names {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(servoColors[i%len(servoColors)])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

// info is served at /info.json.
type info struct {
	Listen string            `json:"listen"`
	Hz     int               `json:"hz"`
	DryRun bool              `json:"dry_run"`
	Legs   []robot.LegConfig `json:"legs"`
	Servos []servoInfo       `json:"servos"`
}

type servoInfo struct {
	Index int    `json:"index"`
	ID    int    `json:"id"`
	Name  string `json:"name"`
}

func newInfo(cfg *robot.Config, dryRun bool) info {
	inf := info{Listen: cfg.ListenAddr, Hz: cfg.Hz, DryRun: dryRun, Legs: cfg.Legs}
	for _, idx := range cfg.Calibration.Indices() {
		inf.Servos = append(inf.Servos, servoInfo{
			Index: idx,
			ID:    cfg.Calibration[idx].ID,
			Name:  robot.ServoName(cfg.Legs, idx),
		})
	}
	return inf
}

func (c *RunCommand) loadConfig() (*robot.Config, error) {
	if !robot.ConfigExists(opts.Config) {
		if !c.DryRun {
			return nil, errors.Errorf("no configuration at %s; run 'robotrock setup' first", opts.Config)
		}
		return robot.Defaults(), nil
	}
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return nil, err
	}
	if !c.DryRun && cfg.Port == "" {
		return nil, errors.New("no serial port configured; run 'robotrock setup' first")
	}
	return cfg, nil
}

// signalContext returns a context cancelled by SIGINT, SIGTERM or cancel. The
// signals stay caught until release, so a second Ctrl+C during shutdown cannot
// kill the process while the servos are still powered.
func signalContext() (ctx context.Context, cancel, release func()) {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancelCtx := context.WithCancel(sigCtx)
	return ctx, cancelCtx, func() {
		cancelCtx()
		stop()
	}
}

// startServices runs serve and control in one group. control is only cancelled
// once serve has returned, so no input arrives while the hardware is stopping.
func startServices(ctx context.Context, serve, control func(context.Context) error) (*errgroup.Group, context.Context) {
	ctrlCtx, stopCtrl := context.WithCancel(context.Background())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stopCtrl()
		return serve(gctx)
	})
	g.Go(func() error {
		defer stopCtrl()
		return control(ctrlCtx)
	})
	return g, gctx
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if c.Hz > 0 {
		cfg.Hz = c.Hz
	}
	if c.Listen != "" {
		cfg.ListenAddr = c.Listen
	}

	logPath := logFile
	if c.Headless {
		logPath = ""
	}
	logger, err := newLogger(logPath, opts.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var driver robot.Driver
	if c.DryRun {
		driver = robot.NewDryRunDriver(logger.Named("dryrun"))
	} else {
		fd, err := robot.NewFeetechDriver(cfg.Port, cfg.Calibration)
		if err != nil {
			return errors.Wrap(err, "open servo bus")
		}
		driver = fd
	}

	ctrl, err := teleop.NewController(teleop.Config{
		Robot:  cfg,
		Driver: driver,
		Logger: logger.Named("teleop"),
	})
	if err != nil {
		// The controller was never built, so the driver is ours to stop.
		if stopErr := driver.Stop(context.Background()); stopErr != nil {
			logger.Warnw("stop hardware", "error", stopErr)
		}
		return errors.Wrap(err, "create controller")
	}
	defer ctrl.Close()

	logger.Infow("loaded configuration", "path", opts.Config, "servos", len(cfg.Calibration), "legs", len(cfg.Legs))

	ctx, cancel, release := signalContext()
	defer release()
	defer cancel()

	server := input.NewServer(ctrl.Submit, newInfo(cfg, c.DryRun), logger.Named("input"))
	g, gctx := startServices(ctx,
		func(ctx context.Context) error { return server.ListenAndServe(ctx, cfg.ListenAddr) },
		ctrl.Start,
	)

	if c.Headless {
		fmt.Fprintf(os.Stderr, "Listening for a controller on %s, Ctrl+C to stop\n", cfg.ListenAddr)
	} else {
		p := tea.NewProgram(newDashboardModel(ctrl), tea.WithAltScreen())
		go func() {
			<-gctx.Done()
			p.Quit()
		}()
		if _, err := p.Run(); err != nil {
			logger.Errorw("dashboard", "error", err)
		}
		cancel()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorw("stopped with error", "error", err)
		return err
	}
	return nil
}
