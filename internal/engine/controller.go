// Package engine implements the input session state machine and the loop
// that serializes every mutation of it.
package engine

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/metric"

	"github.com/hammamikhairi/burnchat/internal/domain"
	"github.com/hammamikhairi/burnchat/internal/ink"
	"github.com/hammamikhairi/burnchat/internal/logger"
	"github.com/hammamikhairi/burnchat/internal/telemetry"
	"github.com/hammamikhairi/burnchat/internal/timer"
)

// Option configures the controller.
type Option func(*Controller)

// WithSender sets the identity stamped on messages the user sends.
func WithSender(s domain.Sender) Option {
	return func(c *Controller) {
		if s != "" {
			c.sender = s
		}
	}
}

// WithCanvas replaces the default drawing surface.
func WithCanvas(cv *ink.Canvas) Option {
	return func(c *Controller) {
		c.canvas = cv
	}
}

// WithSettleDelay sets the pause after a stroke ends before recognition.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.settleDelay = d
	}
}

// WithClock sets the clock driving the settle timer.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clock = clk
	}
}

// WithDispatcher sets how asynchronous completions (settle timer,
// recognition results) get back onto the controller's goroutine. A Loop
// installs its own dispatcher. The default runs them inline on the
// timer or request goroutine.
func WithDispatcher(fn func(func())) Option {
	return func(c *Controller) {
		c.dispatch = fn
	}
}

// Controller owns one input session and its message store. It is not
// safe for concurrent use: every call must come from one goroutine,
// normally a Loop.
type Controller struct {
	resolver   domain.Resolver
	store      domain.MessageStore
	recognizer domain.Recognizer
	canvas     *ink.Canvas
	log        *logger.Logger
	sender     domain.Sender

	clock       clock.Clock
	settleDelay time.Duration
	settle      *timer.Debouncer
	dispatch    func(func())

	// Session state.
	mode       domain.Mode
	buffer     []byte
	committed  string
	candidates domain.CandidateSet
	expanded   bool
	shift      bool

	// Recognition bookkeeping. token changes whenever pending or
	// in-flight work is invalidated; completions carrying an old token
	// are dropped.
	token       uint64
	inflight    context.CancelFunc
	recognizing bool
	base        context.Context
	stop        context.CancelFunc

	messagesChanged bool

	sent  metric.Int64Counter
	stale metric.Int64Counter
}

// New creates a controller in Alpha mode with empty state.
//
// Settle timer and recognition completions arrive on other goroutines.
// Without WithDispatcher or a Loop they run right there, so a controller
// used on its own must not see strokes while other calls are in progress.
// Wrap it in NewLoop for interactive use.
func New(resolver domain.Resolver, store domain.MessageStore, recognizer domain.Recognizer, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		resolver:    resolver,
		store:       store,
		recognizer:  recognizer,
		log:         log,
		sender:      domain.SenderUser,
		clock:       clock.New(),
		settleDelay: timer.DefaultSettleDelay,
		dispatch:    func(fn func()) { fn() },
		mode:        domain.ModeAlpha,
		sent:        telemetry.Counter("burnchat.session.sent", "Messages sent from the composer"),
		stale:       telemetry.Counter("burnchat.recognition.stale", "Recognition results discarded as stale"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.canvas == nil {
		c.canvas = ink.NewCanvas(0, 0)
	}
	c.settle = timer.NewDebouncer(c.clock, c.settleDelay)
	c.base, c.stop = context.WithCancel(context.Background())
	return c
}

// Close cancels any pending or in-flight recognition.
func (c *Controller) Close() {
	c.cancelRecognition()
	c.stop()
}

// Snapshot returns the current render state.
func (c *Controller) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		Mode:        c.mode,
		Buffer:      string(c.buffer),
		Committed:   c.committed,
		Candidates:  append(domain.CandidateSet(nil), c.candidates...),
		Expanded:    c.expanded,
		Shift:       c.shift,
		Recognizing: c.recognizing,
		Strokes:     c.canvas.Len(),
	}
}

// Messages returns the live messages.
func (c *Controller) Messages() []domain.Message {
	return c.store.List()
}

// consumeMessagesChanged reports whether the message list changed since
// the last call.
func (c *Controller) consumeMessagesChanged() bool {
	changed := c.messagesChanged
	c.messagesChanged = false
	return changed
}

// ── keyboard ─────────────────────────────────────────────────────

// PressChar handles a character key. In Alpha mode letters extend the
// composition buffer; in Numeric mode the key goes straight to the
// committed text; in Handwriting mode it is ignored.
func (c *Controller) PressChar(ch rune) {
	switch c.mode {
	case domain.ModeAlpha:
		if !isASCIILetter(ch) {
			return
		}
		c.buffer = append(c.buffer, byte(unicode.ToLower(ch)))
		c.resolve()
	case domain.ModeNumeric:
		if !unicode.IsPrint(ch) {
			return
		}
		if isASCIILetter(ch) {
			ch = c.DisplayKey(ch)
		}
		c.committed += string(ch)
	}
}

// Backspace removes the last buffer character, or the last committed
// character when the buffer is empty. Never both.
func (c *Controller) Backspace() {
	if len(c.buffer) > 0 {
		c.buffer = c.buffer[:len(c.buffer)-1]
		c.resolve()
		return
	}
	if c.committed == "" {
		return
	}
	_, size := utf8.DecodeLastRuneInString(c.committed)
	c.committed = c.committed[:len(c.committed)-size]
}

// Space commits the preferred candidate, or types a literal space when
// nothing is being composed.
func (c *Controller) Space() {
	if c.commitPreferred() {
		return
	}
	c.committed += " "
}

// ToggleShift flips the display-only shift flag.
func (c *Controller) ToggleShift() {
	c.shift = !c.shift
}

// DisplayKey returns how letter key k is labelled under the current
// shift state. Non-letters are returned unchanged.
func (c *Controller) DisplayKey(k rune) rune {
	return domain.DisplayKey(k, c.shift)
}

// Send commits any pending composition, then stores the committed text
// as a message unless it is blank.
func (c *Controller) Send() {
	c.commitPreferred()

	if strings.TrimSpace(c.committed) == "" {
		return
	}
	msg, err := c.store.Insert(domain.Text{Body: c.committed}, c.sender)
	if err != nil {
		c.log.Error("sending message: %v", err)
		return
	}
	c.committed = ""
	c.messagesChanged = true
	c.sent.Add(context.Background(), 1)
	c.log.Debug("sent message %s", msg.ID)
}

// SelectCandidate appends value to the committed text and clears the
// composition. In Handwriting mode the canvas is cleared too.
func (c *Controller) SelectCandidate(value string) {
	c.committed += value
	if c.mode == domain.ModeHandwriting {
		c.cancelRecognition()
		c.canvas.Clear()
	} else {
		c.buffer = c.buffer[:0]
	}
	c.setCandidates(nil)
}

// SwitchMode changes the keyboard layout. The composition buffer is
// local to Alpha mode and never survives a switch; committed text always
// does.
func (c *Controller) SwitchMode(m domain.Mode) {
	if m == c.mode {
		return
	}
	prev := c.mode
	c.mode = m

	if prev == domain.ModeHandwriting {
		c.cancelRecognition()
	}
	if m == domain.ModeHandwriting {
		c.canvas.Clear()
	}
	c.buffer = c.buffer[:0]
	c.setCandidates(nil)
	c.log.Debug("mode %s -> %s", prev, m)
}

// SetExpanded sets the candidate panel expansion flag. It is display
// state only; the flag drops back to false whenever the candidate set
// becomes empty.
func (c *Controller) SetExpanded(expanded bool) {
	c.expanded = expanded
}

// ── sharing ──────────────────────────────────────────────────────

// ShareVoice sends a voice clip as a message.
func (c *Controller) ShareVoice(clip domain.MediaRef) {
	c.share(domain.Voice{Clip: clip})
}

// ShareImage sends an image as a message.
func (c *Controller) ShareImage(ref domain.MediaRef) {
	c.share(domain.Image{Ref: ref})
}

// ShareLocation sends the current position. ok is false when no
// position is available.
func (c *Controller) ShareLocation(lat, lon float64, ok bool) {
	c.share(domain.Location{Lat: lat, Lon: lon, Available: ok})
}

func (c *Controller) share(content domain.Content) {
	msg, err := c.store.Insert(content, c.sender)
	if err != nil {
		c.log.Error("sharing %s: %v", content.Kind(), err)
		return
	}
	c.messagesChanged = true
	c.log.Debug("shared %s message %s", msg.Kind(), msg.ID)
}

// ── expiry ───────────────────────────────────────────────────────

// Tick purges expired messages.
func (c *Controller) Tick(now time.Time) {
	if removed := c.store.Sweep(now); len(removed) > 0 {
		c.messagesChanged = true
	}
}

// ── handwriting ──────────────────────────────────────────────────

// StrokeStart begins a stroke. Any scheduled or in-flight recognition
// is abandoned.
func (c *Controller) StrokeStart(p ink.Point) {
	if c.mode != domain.ModeHandwriting {
		return
	}
	c.cancelRecognition()
	c.canvas.StrokeStart(p)
}

// StrokeMove extends the current stroke.
func (c *Controller) StrokeMove(p ink.Point) {
	if c.mode != domain.ModeHandwriting {
		return
	}
	c.canvas.StrokeMove(p)
}

// StrokeEnd closes the current stroke and (re)arms the settle timer.
func (c *Controller) StrokeEnd() {
	if c.mode != domain.ModeHandwriting || !c.canvas.StrokeEnd() {
		return
	}
	c.cancelRecognition()
	tok := c.token
	c.settle.Schedule(func() {
		c.dispatch(func() { c.settled(tok) })
	})
}

// ClearCanvas wipes the drawing surface and its candidates.
func (c *Controller) ClearCanvas() {
	c.cancelRecognition()
	c.canvas.Clear()
	if c.mode == domain.ModeHandwriting {
		c.setCandidates(nil)
	}
}

// settled runs on the controller goroutine once the settle delay has
// passed without a new stroke.
func (c *Controller) settled(tok uint64) {
	if tok != c.token || c.mode != domain.ModeHandwriting || c.canvas.Empty() {
		return
	}

	png, err := c.canvas.PNG()
	if err != nil {
		c.log.Error("rendering canvas: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(c.base)
	c.inflight = cancel
	c.recognizing = true
	c.log.Debug("recognizing %d stroke(s) (%d bytes)", c.canvas.Len(), len(png))

	go func() {
		cands := c.recognizer.Recognize(ctx, png)
		c.dispatch(func() { c.recognized(tok, cands) })
	}()
}

// recognized applies a recognition result if it is still current.
func (c *Controller) recognized(tok uint64, cands []string) {
	if tok != c.token {
		c.stale.Add(context.Background(), 1)
		c.log.Debug("dropping stale recognition result (%d candidates)", len(cands))
		return
	}
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.recognizing = false

	if c.mode != domain.ModeHandwriting {
		c.stale.Add(context.Background(), 1)
		c.log.Debug("dropping recognition result after mode switch")
		return
	}
	if len(cands) == 0 {
		c.log.Debug("recognition returned no candidates")
	}
	c.setCandidates(cands)
}

// cancelRecognition stops the settle timer, aborts any in-flight request
// and invalidates outstanding completions.
func (c *Controller) cancelRecognition() {
	c.settle.Cancel()
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.recognizing = false
	c.token++
}

// ── helpers ──────────────────────────────────────────────────────

func (c *Controller) resolve() {
	if len(c.buffer) == 0 {
		c.setCandidates(nil)
		return
	}
	c.setCandidates(c.resolver.Resolve(string(c.buffer)))
}

// commitPreferred moves the preferred candidate into the committed text
// when a composition is pending. It reports whether it did.
func (c *Controller) commitPreferred() bool {
	if len(c.buffer) == 0 {
		return false
	}
	best, ok := c.candidates.Preferred()
	if !ok {
		return false
	}
	c.committed += best
	c.buffer = c.buffer[:0]
	c.setCandidates(nil)
	return true
}

func (c *Controller) setCandidates(cands []string) {
	c.candidates = domain.CandidateSet(cands)
	if len(c.candidates) == 0 {
		c.expanded = false
	}
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
