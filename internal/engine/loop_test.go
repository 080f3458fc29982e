package engine

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hammamikhairi/burnchat/internal/dictionary"
	"github.com/hammamikhairi/burnchat/internal/domain"
	"github.com/hammamikhairi/burnchat/internal/ink"
	"github.com/hammamikhairi/burnchat/internal/logger"
	"github.com/hammamikhairi/burnchat/internal/storage"
)

func setupLoop(t *testing.T) (*Loop, *ChannelSink, *clock.Mock) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	mock := clock.NewMock()
	store := storage.NewMemoryStore(log, storage.WithClock(mock))
	rec := &mockRecognizer{result: []string{"我", "找"}}

	ctrl := New(dictionary.NewResolver(dictionary.Builtin()), store, rec, log, WithClock(mock))
	sink := NewChannelSink(256)
	loop := NewLoop(ctrl, sink, log)

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop, sink, mock
}

func mustEvent(t *testing.T, sink *ChannelSink, kind EventKind) Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
			return Event{}
		}
	}
}

// waitSnapshot reads snapshots until one satisfies ok.
func waitSnapshot(t *testing.T, sink *ChannelSink, ok func(domain.Snapshot) bool) domain.Snapshot {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.Kind == SnapshotEvent && ok(ev.Snapshot) {
				return ev.Snapshot
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching snapshot")
			return domain.Snapshot{}
		}
	}
}

func TestLoopPublishesInitialState(t *testing.T) {
	_, sink, _ := setupLoop(t)

	snap := mustEvent(t, sink, SnapshotEvent).Snapshot
	if snap.Mode != domain.ModeAlpha {
		t.Fatalf("expected alpha mode, got %s", snap.Mode)
	}
	if msgs := mustEvent(t, sink, MessagesEvent).Messages; len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}

func TestLoopComposeAndSend(t *testing.T) {
	loop, sink, mock := setupLoop(t)
	mustEvent(t, sink, MessagesEvent)

	loop.Submit(Command{Kind: CmdPressChar, Char: 'z'})
	loop.Submit(Command{Kind: CmdPressChar, Char: 'j'})
	snap := waitSnapshot(t, sink, func(s domain.Snapshot) bool { return s.Buffer == "zj" })
	if snap.Candidates[1] != "自己" {
		t.Fatalf("expected 自己 preferred, got %v", snap.Candidates)
	}

	loop.Submit(Command{Kind: CmdSend})
	msgs := mustEvent(t, sink, MessagesEvent).Messages
	if len(msgs) != 1 || msgs[0].Content.Text() != "自己" {
		t.Fatalf("expected sent message, got %+v", msgs)
	}

	// Ticks that remove nothing publish no message list.
	loop.Tick(mock.Now().Add(time.Second))
	loop.Tick(msgs[0].ExpiresAt)
	msgs = mustEvent(t, sink, MessagesEvent).Messages
	if len(msgs) != 0 {
		t.Fatalf("expected message burned, got %d left", len(msgs))
	}
}

func TestLoopHandwritingRoundTrip(t *testing.T) {
	loop, sink, mock := setupLoop(t)

	loop.Submit(Command{Kind: CmdSwitchMode, Mode: domain.ModeHandwriting})
	loop.Submit(Command{Kind: CmdStrokeStart, Point: ink.Point{X: 20, Y: 20}})
	loop.Submit(Command{Kind: CmdStrokeMove, Point: ink.Point{X: 80, Y: 80}})
	loop.Submit(Command{Kind: CmdStrokeEnd})
	loop.Submit(Command{Kind: CmdToggleShift})
	// The shift marker is processed after StrokeEnd, so the settle timer
	// is armed by the time it shows up.
	waitSnapshot(t, sink, func(s domain.Snapshot) bool { return s.Shift && s.Strokes == 1 })

	mock.Add(800 * time.Millisecond)

	snap := waitSnapshot(t, sink, func(s domain.Snapshot) bool { return len(s.Candidates) > 0 })
	if snap.Candidates[0] != "我" || snap.Recognizing {
		t.Fatalf("unexpected snapshot after recognition: %+v", snap)
	}

	loop.Submit(Command{Kind: CmdSelectCandidate, Value: "我"})
	loop.Submit(Command{Kind: CmdSend})
	msgs := mustEvent(t, sink, MessagesEvent).Messages
	if len(msgs) != 1 || msgs[0].Content.Text() != "我" {
		t.Fatalf("expected handwritten message, got %+v", msgs)
	}
}

func TestLoopShareLocation(t *testing.T) {
	loop, sink, _ := setupLoop(t)
	mustEvent(t, sink, MessagesEvent)

	loop.Submit(Command{Kind: CmdShareLocation, Lat: 39.9042, Lon: 116.4074, OK: true})
	msgs := mustEvent(t, sink, MessagesEvent).Messages
	if len(msgs) != 1 || msgs[0].Content.Text() != "我的位置: 39.9042, 116.4074" {
		t.Fatalf("unexpected location message %+v", msgs)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	store := storage.NewMemoryStore(log)
	ctrl := New(dictionary.NewResolver(dictionary.Builtin()), store, &mockRecognizer{}, log)
	loop := NewLoop(ctrl, NewChannelSink(16), log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.Run(ctx)

	if loop.Submit(Command{Kind: CmdSend}) {
		t.Fatal("expected Submit to fail after the loop stopped")
	}
	loop.Tick(time.Now()) // must not block
}

func TestCommandKindString(t *testing.T) {
	if CmdSelectCandidate.String() != "select_candidate" {
		t.Fatalf("unexpected name %q", CmdSelectCandidate.String())
	}
	if CommandKind(999).String() != "unknown" {
		t.Fatal("expected unknown for out-of-range kind")
	}
}
