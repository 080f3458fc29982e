package engine

import (
	"context"
	"time"

	"github.com/hammamikhairi/burnchat/internal/domain"
	"github.com/hammamikhairi/burnchat/internal/ink"
	"github.com/hammamikhairi/burnchat/internal/logger"
)

// CommandKind identifies a controller operation.
type CommandKind int

const (
	CmdPressChar CommandKind = iota + 1
	CmdBackspace
	CmdSpace
	CmdToggleShift
	CmdSend
	CmdSelectCandidate
	CmdSwitchMode
	CmdSetExpanded
	CmdStrokeStart
	CmdStrokeMove
	CmdStrokeEnd
	CmdClearCanvas
	CmdShareVoice
	CmdShareImage
	CmdShareLocation
	CmdTick

	cmdCall // internal: run fn on the loop goroutine
)

// String returns the command name for logs.
func (k CommandKind) String() string {
	switch k {
	case CmdPressChar:
		return "press_char"
	case CmdBackspace:
		return "backspace"
	case CmdSpace:
		return "space"
	case CmdToggleShift:
		return "toggle_shift"
	case CmdSend:
		return "send"
	case CmdSelectCandidate:
		return "select_candidate"
	case CmdSwitchMode:
		return "switch_mode"
	case CmdSetExpanded:
		return "set_expanded"
	case CmdStrokeStart:
		return "stroke_start"
	case CmdStrokeMove:
		return "stroke_move"
	case CmdStrokeEnd:
		return "stroke_end"
	case CmdClearCanvas:
		return "clear_canvas"
	case CmdShareVoice:
		return "share_voice"
	case CmdShareImage:
		return "share_image"
	case CmdShareLocation:
		return "share_location"
	case CmdTick:
		return "tick"
	case cmdCall:
		return "call"
	default:
		return "unknown"
	}
}

// Command is one request to the loop. Only the fields relevant to Kind
// are read.
type Command struct {
	Kind CommandKind

	Char     rune        // PressChar
	Value    string      // SelectCandidate
	Mode     domain.Mode // SwitchMode
	Expanded bool        // SetExpanded
	Point    ink.Point   // StrokeStart, StrokeMove
	Ref      domain.MediaRef
	Lat, Lon float64
	OK       bool      // ShareLocation: position available
	Now      time.Time // Tick

	fn func()
}

// Loop feeds commands to a Controller one at a time and publishes the
// resulting state to a Sink. It is the only goroutine that touches the
// controller.
type Loop struct {
	ctrl *Controller
	sink domain.Sink
	log  *logger.Logger

	cmds chan Command
	done chan struct{}
}

// DefaultQueueSize is the command buffer length.
const DefaultQueueSize = 64

// NewLoop wraps ctrl. The controller's dispatcher is pointed at the loop
// so timer and recognition completions are serialized with user input.
func NewLoop(ctrl *Controller, sink domain.Sink, log *logger.Logger) *Loop {
	l := &Loop{
		ctrl: ctrl,
		sink: sink,
		log:  log,
		cmds: make(chan Command, DefaultQueueSize),
		done: make(chan struct{}),
	}
	ctrl.dispatch = l.post
	return l
}

// Run processes commands until ctx is cancelled. It publishes the
// initial state first.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.ctrl.Close()

	l.sink.Render(l.ctrl.Snapshot())
	l.sink.Messages(l.ctrl.Messages())
	l.log.Info("input loop started")

	for {
		select {
		case <-ctx.Done():
			l.log.Info("input loop stopped")
			return
		case cmd := <-l.cmds:
			l.apply(cmd)
			l.sink.Render(l.ctrl.Snapshot())
			if l.ctrl.consumeMessagesChanged() {
				l.sink.Messages(l.ctrl.Messages())
			}
		}
	}
}

// Submit queues cmd. Safe from any goroutine. It reports false once the
// loop has stopped.
func (l *Loop) Submit(cmd Command) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.cmds <- cmd:
		return true
	case <-l.done:
		return false
	}
}

// Tick queues a sweep. It lets the loop act as a timer.Sweeper target.
func (l *Loop) Tick(now time.Time) {
	l.Submit(Command{Kind: CmdTick, Now: now})
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) post(fn func()) {
	l.Submit(Command{Kind: cmdCall, fn: fn})
}

func (l *Loop) apply(cmd Command) {
	c := l.ctrl
	switch cmd.Kind {
	case CmdPressChar:
		c.PressChar(cmd.Char)
	case CmdBackspace:
		c.Backspace()
	case CmdSpace:
		c.Space()
	case CmdToggleShift:
		c.ToggleShift()
	case CmdSend:
		c.Send()
	case CmdSelectCandidate:
		c.SelectCandidate(cmd.Value)
	case CmdSwitchMode:
		c.SwitchMode(cmd.Mode)
	case CmdSetExpanded:
		c.SetExpanded(cmd.Expanded)
	case CmdStrokeStart:
		c.StrokeStart(cmd.Point)
	case CmdStrokeMove:
		c.StrokeMove(cmd.Point)
	case CmdStrokeEnd:
		c.StrokeEnd()
	case CmdClearCanvas:
		c.ClearCanvas()
	case CmdShareVoice:
		c.ShareVoice(cmd.Ref)
	case CmdShareImage:
		c.ShareImage(cmd.Ref)
	case CmdShareLocation:
		c.ShareLocation(cmd.Lat, cmd.Lon, cmd.OK)
	case CmdTick:
		c.Tick(cmd.Now)
	case cmdCall:
		if cmd.fn != nil {
			cmd.fn()
		}
	default:
		l.log.Warn("unknown command kind %d", cmd.Kind)
	}
}

// ── channel sink ─────────────────────────────────────────────────

// EventKind identifies what a published Event carries.
type EventKind int

const (
	SnapshotEvent EventKind = iota + 1
	MessagesEvent
)

// Event is one publication from the loop.
type Event struct {
	Kind     EventKind
	Snapshot domain.Snapshot
	Messages []domain.Message
}

// ChannelSink turns loop output into Events on a channel.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink creates a sink with a buffer of size events. Publishing
// blocks once the buffer is full.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, size)}
}

// Events returns the event stream.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Render implements domain.Sink.
func (s *ChannelSink) Render(snap domain.Snapshot) {
	s.events <- Event{Kind: SnapshotEvent, Snapshot: snap}
}

// Messages implements domain.Sink.
func (s *ChannelSink) Messages(msgs []domain.Message) {
	s.events <- Event{Kind: MessagesEvent, Messages: msgs}
}
