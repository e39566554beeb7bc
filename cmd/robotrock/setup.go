package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/ThoseGrapefruits/robot-rock/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// minRange is the smallest range of motion, in raw units, shown as healthy.
const minRange = 500

type SetupCommand struct {
	Port string `long:"port" description:"Serial port of the servo bus (scanned when empty)"`
	Legs int    `long:"legs" description:"Number of legs (asked when zero)"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("robotrock setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.Defaults()
	if robot.ConfigExists(opts.Config) {
		loaded, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	legs := c.Legs
	if legs <= 0 {
		legs = askLegCount(len(cfg.Legs))
	}
	cfg.Legs = robot.DefaultLegs(legs)
	servoCount := 2 * legs

	port := c.Port
	if port == "" {
		port = scanForBus(servoCount)
	}
	cfg.Port = port

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating Legs ━━━"))
	fmt.Println()
	cal, err := calibrateLegs(port, cfg.Legs, servoCount, cfg.Calibration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error calibrating: %v\n", err)
		os.Exit(1)
	}
	cfg.Calibration = cal

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Calibration is not usable: %v\n", err)
		fmt.Fprintln(os.Stderr, "Move every joint through its full range and run setup again.")
		os.Exit(1)
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the robot with: " + headerStyle.Render("robotrock run"))

	return nil
}

func askLegCount(current int) int {
	legs := current
	if legs == 0 {
		legs = 4
	}

	var options []huh.Option[int]
	for _, n := range []int{2, 4, 6, 8} {
		options = append(options, huh.NewOption(strconv.Itoa(n)+" legs", n))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("How many legs does the robot have?").
				Description("Leg i uses servo 2i for the shoulder and 2i+1 for the elbow; the first half are left legs").
				Options(options...).
				Value(&legs),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return legs
}

type busInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func scanForBus(servoCount int) string {
	fmt.Printf("Scanning for a bus with %d servos...\n\n", servoCount)

	found := findBuses(servoCount)
	if len(found) == 0 {
		fmt.Printf("No bus with servo IDs 1-%d found.\n", servoCount)
		fmt.Println("Make sure the robot is connected and powered on.")
		os.Exit(1)
	}

	for _, b := range found {
		if identifyWithWiggle(b) {
			return b.port
		}
	}

	fmt.Println("No bus selected.")
	os.Exit(1)
	return ""
}

func openBus(port string) (*feetech.Bus, error) {
	return feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
}

func findBuses(servoCount int) []busInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var found []busInfo

	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, err := openBus(port)
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		servos, err := bus.Scan(ctx, 1, servoCount)
		cancel()

		if err != nil || !hasServoIDs(servos, servoCount) {
			bus.Close()
			continue
		}

		fmt.Printf("  Found %d servos on %s\n", len(servos), port)
		found = append(found, busInfo{port: port, servos: servos, bus: bus})
	}

	return found
}

// hasServoIDs reports whether servos holds exactly IDs 1..n.
func hasServoIDs(servos []feetech.FoundServo, n int) bool {
	if len(servos) != n {
		return false
	}

	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}

	for i := 1; i <= n; i++ {
		if !ids[i] {
			return false
		}
	}

	return true
}

// identifyWithWiggle nudges the first shoulder on the bus and asks whether it moved.
func identifyWithWiggle(b busInfo) bool {
	defer b.bus.Close()

	ctx := context.Background()

	var servo *feetech.Servo
	for _, s := range b.servos {
		if s.ID == 1 {
			servo = feetech.NewServo(b.bus, s.ID, s.Model)
			break
		}
	}
	if servo == nil {
		return false
	}

	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return false
	}

	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return false
	}

	fmt.Printf("\n  Wiggling the first shoulder on %s...\n", b.port)

	wiggleAmount := 30
	moveTimeMs := 500
	for _, pos := range []int{originalPos + wiggleAmount, originalPos - wiggleAmount, originalPos} {
		servo.SetPositionWithTime(ctx, pos, moveTimeMs)
		time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	}

	servo.Disable(ctx)

	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Did the robot on %s just move a leg?", b.port)).
				Affirmative("Yes, use it").
				Negative("No, keep looking").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return ok
}

func waitForUser(prompt string) {
	fmt.Println(prompt)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("").
				Affirmative("Continue").
				Negative("").
				Value(new(bool)),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
}

// calibrateLegs records a neutral pose and then the range of motion of servos
// 0..servoCount-1 (bus IDs 1..servoCount). Inverted flags are kept from previous.
func calibrateLegs(port string, legs []robot.LegConfig, servoCount int, previous robot.Calibration) (robot.Calibration, error) {
	bus, err := openBus(port)
	if err != nil {
		return nil, errors.Wrap(err, "open bus")
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	found, err := bus.Scan(ctx, 1, servoCount)
	cancel()
	if err != nil {
		return nil, errors.Wrap(err, "scan bus")
	}
	if !hasServoIDs(found, servoCount) {
		return nil, errors.Errorf("expected servo IDs 1-%d, found %d servos", servoCount, len(found))
	}

	ctx = context.Background()
	servos := make([]*feetech.Servo, servoCount)
	for _, s := range found {
		servos[s.ID-1] = feetech.NewServo(bus, s.ID, s.Model)
	}

	// Torque off so the legs can be moved by hand.
	for _, servo := range servos {
		servo.Disable(ctx)
	}

	fmt.Println(subHeaderStyle.Render("Record neutral pose"))
	waitForUser("Put every leg in its resting pose: standing, shoulders square to the body.")

	names := make([]string, servoCount)
	neutral := make([]int, servoCount)
	for i, servo := range servos {
		names[i] = robot.ServoName(legs, i)
		pos, err := servo.Position(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", names[i])
		}
		neutral[i] = pos
	}

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println()

	model := newCalibrationModel(names, servos, neutral)
	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, errors.Wrap(err, "run calibration")
	}
	cm := finalModel.(calibrationModel)

	cal := make(robot.Calibration, servoCount)
	for i := range servos {
		cal[i] = robot.ServoCalibration{
			ID:       i + 1,
			RangeMin: cm.minPositions[i],
			RangeMax: cm.maxPositions[i],
			Neutral:  neutral[i],
			Inverted: previous[i].Inverted,
		}
	}

	fmt.Println()
	fmt.Printf("%d servos calibrated.\n", servoCount)
	return cal, nil
}

// Calibration TUI model
type calibrationModel struct {
	names        []string
	servos       []*feetech.Servo
	neutral      []int
	curPositions []int
	minPositions []int
	maxPositions []int
	quitting     bool
}

type tickMsg time.Time

func newCalibrationModel(names []string, servos []*feetech.Servo, neutral []int) calibrationModel {
	m := calibrationModel{
		names:        names,
		servos:       servos,
		neutral:      neutral,
		curPositions: append([]int(nil), neutral...),
		minPositions: append([]int(nil), neutral...),
		maxPositions: append([]int(nil), neutral...),
	}
	return m
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for i, servo := range m.servos {
			pos, err := servo.Position(ctx)
			if err != nil {
				continue
			}
			m.observe(i, pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) observe(i, pos int) {
	m.curPositions[i] = pos
	if pos < m.minPositions[i] {
		m.minPositions[i] = pos
	}
	if pos > m.maxPositions[i] {
		m.maxPositions[i] = pos
	}
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableServoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.names))
	ranges := make([]int, 0, len(m.names))
	for i, name := range m.names {
		rangeSize := m.maxPositions[i] - m.minPositions[i]
		ranges = append(ranges, rangeSize)
		rows = append(rows, []string{
			name,
			strconv.Itoa(m.curPositions[i]),
			strconv.Itoa(m.minPositions[i]),
			strconv.Itoa(m.neutral[i]),
			strconv.Itoa(m.maxPositions[i]),
			strconv.Itoa(rangeSize),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Servo", "Current", "Min", "Neutral", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableServoStyle
			case 1:
				return tableCurrentStyle
			case 5:
				if row >= 0 && row < len(ranges) && ranges[row] > minRange {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))

	return sb.String()
}
