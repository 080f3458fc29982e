// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] is a domain.Sink: the engine loop pushes snapshots and message
// lists into it from its own goroutine, and the UI turns key presses and
// mouse drags back into engine commands. It never touches the controller
// directly.
package display

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/hammamikhairi/burnchat/internal/audio"
	"github.com/hammamikhairi/burnchat/internal/domain"
	"github.com/hammamikhairi/burnchat/internal/engine"
	"github.com/hammamikhairi/burnchat/internal/ink"
	"github.com/hammamikhairi/burnchat/internal/logger"
	"github.com/hammamikhairi/burnchat/internal/storage"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#27272a")).
			Foreground(lipgloss.Color("#fca5a5")).
			Bold(true)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	activeTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a")).
			Bold(true)

	committedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	bufferStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd")).
			Underline(true)

	candidateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	rawCandidateStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#71717a"))

	canvasStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	inkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f4f4f5"))

	countdownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	// BannerStyle is used for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	senderStyles = map[domain.Sender]lipgloss.Style{
		domain.SenderUser:  lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")),
		domain.SenderBlade: lipgloss.NewStyle().Foreground(lipgloss.Color("#fca5a5")),
		domain.SenderHead:  lipgloss.NewStyle().Foreground(lipgloss.Color("#fde68a")),
	}
)

// Drawing area geometry in terminal cells. The area is drawn right
// under the header so mouse coordinates map to it directly.
const (
	canvasCols = 40
	canvasRows = 14
	canvasTop  = 2 // header + top border
	canvasLeft = 1 // left border

	collapsedCandidates = 5
	voiceClipLength     = 1500 * time.Millisecond
)

// ── UI ───────────────────────────────────────────────────────────

// Option configures the UI.
type Option func(*UI)

// WithAudio enables simulated voice messages and their playback.
func WithAudio(clips *audio.Clips, player audio.Sink) Option {
	return func(u *UI) {
		u.clips = clips
		u.player = player
	}
}

// WithCanvasSize sets the pixel size of the engine's drawing surface so
// terminal cells can be scaled onto it.
func WithCanvasSize(w, h int) Option {
	return func(u *UI) {
		if w > 0 && h > 0 {
			u.canvasW, u.canvasH = w, h
		}
	}
}

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking). Start the engine loop once
// [UI.Ready] is closed.
type UI struct {
	program atomic.Pointer[tea.Program]
	submit  func(engine.Command) bool
	log     *logger.Logger

	clips  *audio.Clips
	player audio.Sink

	canvasW, canvasH int

	mu   sync.Mutex
	snap domain.Snapshot
	msgs []domain.Message

	readyCh chan struct{}
	quitCh  chan struct{}
	done    atomic.Bool
}

// Compile-time interface check.
var _ domain.Sink = (*UI)(nil)

// NewUI creates the display. submit forwards commands to the engine.
func NewUI(submit func(engine.Command) bool, log *logger.Logger, opts ...Option) *UI {
	u := &UI{
		submit:  submit,
		log:     log,
		canvasW: ink.DefaultWidth,
		canvasH: ink.DefaultHeight,
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Render implements domain.Sink. Safe from any goroutine; never blocks
// on the terminal.
func (u *UI) Render(snap domain.Snapshot) {
	u.mu.Lock()
	u.snap = snap
	u.mu.Unlock()
	u.refresh()
}

// Messages implements domain.Sink.
func (u *UI) Messages(msgs []domain.Message) {
	u.mu.Lock()
	u.msgs = msgs
	u.mu.Unlock()
	if u.clips != nil {
		u.clips.Forget(msgs)
	}
	u.refresh()
}

func (u *UI) state() (domain.Snapshot, []domain.Message) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snap, u.msgs
}

// refresh pokes the program to re-read state. The send happens off the
// caller's goroutine so the engine loop is never held up by rendering.
func (u *UI) refresh() {
	p := u.program.Load()
	if p == nil || u.done.Load() {
		return
	}
	go p.Send(refreshMsg{})
}

// Ready is closed once the Bubble Tea event loop is running. It stays
// open if Run fails first; watch QuitChan alongside it.
func (u *UI) Ready() <-chan struct{} { return u.readyCh }

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if p := u.program.Load(); p != nil {
		p.Quit()
	}
}

// QuitChan is closed when Run returns.
func (u *UI) QuitChan() <-chan struct{} { return u.quitCh }

// Run starts the Bubble Tea event loop. Blocks until quit.
func (u *UI) Run() error {
	h := help.New()
	m := model{
		ui:      u,
		keys:    defaultKeyMap(),
		help:    h,
		readyCh: u.readyCh,
		ink:     make(map[cell]bool),
		now:     time.Now(),
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	u.program.Store(p)
	_, err := p.Run()
	u.done.Store(true)
	close(u.quitCh)
	return err
}

// ── Bubble Tea model ─────────────────────────────────────────────

type cell struct{ x, y int }

type model struct {
	ui      *UI
	keys    keyMap
	help    help.Model
	readyCh chan struct{}

	snap domain.Snapshot
	msgs []domain.Message
	now  time.Time

	// Local mirror of drawn cells, reset when the engine reports an
	// empty canvas.
	ink     map[cell]bool
	drawing bool
	last    cell

	status string
	width  int
}

// Messages.
type (
	tickMsg    time.Time
	refreshMsg struct{}
	statusMsg  string
)

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		signalReady(m.readyCh),
	)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return nil
	}
}

// The countdown only changes once a second, but a faster tick keeps it
// from lagging visibly behind the sweep.
func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case refreshMsg:
		m.snap, m.msgs = m.ui.state()
		if m.snap.Strokes == 0 && !m.drawing {
			clear(m.ink)
		}
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Send):
		m.send(engine.Command{Kind: engine.CmdSend})
	case key.Matches(msg, k.Backspace):
		m.send(engine.Command{Kind: engine.CmdBackspace})
	case key.Matches(msg, k.Space):
		m.send(engine.Command{Kind: engine.CmdSpace})
	case key.Matches(msg, k.Expand):
		m.send(engine.Command{Kind: engine.CmdSetExpanded, Expanded: !m.snap.Expanded})
	case key.Matches(msg, k.Shift):
		m.send(engine.Command{Kind: engine.CmdToggleShift})
	case key.Matches(msg, k.Mode):
		m.send(engine.Command{Kind: engine.CmdSwitchMode, Mode: nextMode(m.snap.Mode)})
	case key.Matches(msg, k.Clear):
		m.send(engine.Command{Kind: engine.CmdClearCanvas})
	case key.Matches(msg, k.Voice):
		if m.ui.clips == nil {
			m.status = "audio disabled"
			break
		}
		ref := m.ui.clips.Record(voiceClipLength)
		m.send(engine.Command{Kind: engine.CmdShareVoice, Ref: ref})
	case key.Matches(msg, k.Image):
		m.send(engine.Command{Kind: engine.CmdShareImage, Ref: domain.MediaRef("img:" + uuid.NewString())})
	case key.Matches(msg, k.Location):
		// No positioning source in a terminal: share the simulated fallback.
		m.send(engine.Command{Kind: engine.CmdShareLocation, OK: false})
	case key.Matches(msg, k.Play):
		return m, m.playNewestVoice()
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	case msg.Type == tea.KeyRunes && !msg.Alt:
		for _, r := range msg.Runes {
			m.pressRune(r)
		}
	}
	return m, nil
}

// pressRune types r, or picks a candidate when r is a visible
// candidate's number outside the Numeric layout.
func (m *model) pressRune(r rune) {
	if r >= '1' && r <= '9' && m.snap.Mode != domain.ModeNumeric {
		visible := m.visibleCandidates()
		if i := int(r - '1'); i < len(visible) {
			m.send(engine.Command{Kind: engine.CmdSelectCandidate, Value: visible[i]})
			return
		}
	}
	m.send(engine.Command{Kind: engine.CmdPressChar, Char: r})
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.snap.Mode != domain.ModeHandwriting {
		return m, nil
	}
	c, inside := toCell(msg.X, msg.Y)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !inside {
			return m, nil
		}
		m.drawing = true
		m.last = c
		m.ink[c] = true
		m.send(engine.Command{Kind: engine.CmdStrokeStart, Point: m.toPoint(c)})
	case tea.MouseActionMotion:
		if !m.drawing {
			return m, nil
		}
		c = clampCell(c)
		m.plot(m.last, c)
		m.last = c
		m.send(engine.Command{Kind: engine.CmdStrokeMove, Point: m.toPoint(c)})
	case tea.MouseActionRelease:
		if !m.drawing {
			return m, nil
		}
		m.drawing = false
		m.send(engine.Command{Kind: engine.CmdStrokeEnd})
	}
	return m, nil
}

func (m *model) send(cmd engine.Command) {
	if !m.ui.submit(cmd) {
		m.status = "session closed"
	}
}

func (m model) playNewestVoice() tea.Cmd {
	clips, player := m.ui.clips, m.ui.player
	if clips == nil || player == nil {
		return func() tea.Msg { return statusMsg("audio disabled") }
	}

	var ref domain.MediaRef
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if v, ok := m.msgs[i].Content.(domain.Voice); ok {
			ref = v.Clip
			break
		}
	}
	if ref == "" {
		return func() tea.Msg { return statusMsg("no voice message to play") }
	}

	log := m.ui.log
	return func() tea.Msg {
		wav, err := clips.Get(ref)
		if err != nil {
			return statusMsg("voice message already burned")
		}
		if err := player.Play(wav); err != nil {
			log.Warn("playing %s: %v", ref, err)
			return statusMsg("playback failed")
		}
		return statusMsg("")
	}
}

// ── View ─────────────────────────────────────────────────────────

func (m model) View() string {
	var b strings.Builder

	w := m.width
	if w <= 0 {
		w = 80
	}
	b.WriteString(headerStyle.Width(w).Render(" burnchat · messages burn 6s after sending"))
	b.WriteByte('\n')

	if m.snap.Mode == domain.ModeHandwriting {
		b.WriteString(m.renderCanvas())
	}

	b.WriteString(m.renderTabs())
	b.WriteByte('\n')
	b.WriteString(m.renderComposer())
	b.WriteByte('\n')
	b.WriteString(m.renderCandidates())
	b.WriteByte('\n')
	if m.snap.Mode == domain.ModeAlpha {
		b.WriteString(m.renderKeyRow())
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	b.WriteString(m.renderMessages())

	if m.status != "" {
		b.WriteString(secondaryStyle.Render("  " + m.status))
		b.WriteByte('\n')
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m model) renderTabs() string {
	var parts []string
	for _, mode := range []domain.Mode{domain.ModeAlpha, domain.ModeNumeric, domain.ModeHandwriting} {
		label := tabLabel(mode)
		if mode == m.snap.Mode {
			parts = append(parts, activeTabStyle.Render("["+label+"]"))
		} else {
			parts = append(parts, tabStyle.Render(" "+label+" "))
		}
	}
	line := " " + strings.Join(parts, " ")
	if m.snap.Shift {
		line += "  " + activeTabStyle.Render("⇧")
	}
	if m.snap.Recognizing {
		line += "  " + secondaryStyle.Render("recognizing…")
	}
	return line
}

func (m model) renderComposer() string {
	return " > " + committedStyle.Render(m.snap.Committed) + bufferStyle.Render(m.snap.Buffer) + "▏"
}

func (m model) visibleCandidates() []string {
	c := m.snap.Candidates
	if !m.snap.Expanded && len(c) > collapsedCandidates {
		return c[:collapsedCandidates]
	}
	return c
}

func (m model) renderCandidates() string {
	visible := m.visibleCandidates()
	if len(visible) == 0 {
		return secondaryStyle.Render("   no candidates")
	}

	raw := m.snap.Mode == domain.ModeAlpha
	var parts []string
	for i, c := range visible {
		label := c
		if i < 9 {
			label = fmt.Sprintf("%d.%s", i+1, c)
		}
		if raw && i == 0 {
			parts = append(parts, rawCandidateStyle.Render(label))
		} else {
			parts = append(parts, candidateStyle.Render(label))
		}
	}
	line := "   " + strings.Join(parts, "  ")
	if hidden := len(m.snap.Candidates) - len(visible); hidden > 0 {
		line += secondaryStyle.Render(fmt.Sprintf("  (+%d, tab)", hidden))
	}
	return line
}

// renderKeyRow shows the letter keys the way shift would label them.
func (m model) renderKeyRow() string {
	var b strings.Builder
	b.WriteString("   ")
	for _, r := range "qwertyuiop" {
		b.WriteRune(domain.DisplayKey(r, m.snap.Shift))
		b.WriteByte(' ')
	}
	return tabStyle.Render(b.String())
}

func (m model) renderCanvas() string {
	var b strings.Builder
	b.WriteString(canvasStyle.Render("┌" + strings.Repeat("─", canvasCols) + "┐"))
	b.WriteByte('\n')
	for y := 0; y < canvasRows; y++ {
		b.WriteString(canvasStyle.Render("│"))
		for x := 0; x < canvasCols; x++ {
			if m.ink[cell{x, y}] {
				b.WriteString(inkStyle.Render("█"))
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(canvasStyle.Render("│"))
		b.WriteByte('\n')
	}
	b.WriteString(canvasStyle.Render("└" + strings.Repeat("─", canvasCols) + "┘"))
	b.WriteByte('\n')
	return b.String()
}

func (m model) renderMessages() string {
	if len(m.msgs) == 0 {
		return secondaryStyle.Render("  nothing here. everything burns.") + "\n"
	}
	var b strings.Builder
	for _, msg := range m.msgs {
		left := storage.TimeRemaining(msg, m.now)
		style, ok := senderStyles[msg.Sender]
		if !ok {
			style = secondaryStyle
		}
		b.WriteString(countdownStyle.Render(fmt.Sprintf("  %ds ", left)))
		b.WriteString(style.Render(string(msg.Sender) + ": "))
		b.WriteString(committedStyle.Render(messageText(msg)))
		b.WriteByte('\n')
	}
	return b.String()
}

// ── Helpers ──────────────────────────────────────────────────────

func messageText(msg domain.Message) string {
	switch c := msg.Content.(type) {
	case domain.Voice:
		return "♪ " + c.Text()
	case domain.Image:
		return "▣ " + c.Text()
	case domain.Location:
		return "⌖ " + c.Text()
	default:
		return msg.Content.Text()
	}
}

func tabLabel(m domain.Mode) string {
	switch m {
	case domain.ModeAlpha:
		return "拼音"
	case domain.ModeNumeric:
		return "123"
	case domain.ModeHandwriting:
		return "手写"
	default:
		return m.String()
	}
}

func nextMode(m domain.Mode) domain.Mode {
	switch m {
	case domain.ModeAlpha:
		return domain.ModeNumeric
	case domain.ModeNumeric:
		return domain.ModeHandwriting
	default:
		return domain.ModeAlpha
	}
}

// toCell maps screen coordinates to a drawing-area cell.
func toCell(x, y int) (cell, bool) {
	c := cell{x: x - canvasLeft, y: y - canvasTop}
	inside := c.x >= 0 && c.x < canvasCols && c.y >= 0 && c.y < canvasRows
	return c, inside
}

func clampCell(c cell) cell {
	return cell{
		x: min(max(c.x, 0), canvasCols-1),
		y: min(max(c.y, 0), canvasRows-1),
	}
}

// toPoint maps the centre of a cell onto the engine's pixel canvas.
func (m model) toPoint(c cell) ink.Point {
	return ink.Point{
		X: (float32(c.x) + 0.5) * float32(m.ui.canvasW) / canvasCols,
		Y: (float32(c.y) + 0.5) * float32(m.ui.canvasH) / canvasRows,
	}
}

// plot marks every cell on the segment a-b.
func (m *model) plot(a, b cell) {
	steps := max(abs(b.x-a.x), abs(b.y-a.y))
	if steps == 0 {
		m.ink[b] = true
		return
	}
	for i := 0; i <= steps; i++ {
		x := a.x + (b.x-a.x)*i/steps
		y := a.y + (b.y-a.y)*i/steps
		m.ink[cell{x, y}] = true
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
