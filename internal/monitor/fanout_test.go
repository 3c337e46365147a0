package monitor

import (
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/jeffreyp/feedmonitor/internal/fetch"
	"github.com/jeffreyp/feedmonitor/internal/locks"
	"github.com/jeffreyp/feedmonitor/internal/store"
	"github.com/jeffreyp/feedmonitor/internal/transport"
)

func newTestFanout(tr *transport.MockTransport) *DeliveryFanout {
	return &DeliveryFanout{
		Transport:        tr,
		Unsub:            locks.NewUnsubLockBucket(),
		Blocked:          locks.NewBlockedCounter(),
		BlockedTolerance: 5,
		SendTimeout:      time.Second,
		Hooks:            DefaultHooks(),
		Logger:           log.New(logDiscard{}, "", 0),
	}
}

type logDiscard struct{}

func (logDiscard) Write(p []byte) (int, error) { return len(p), nil }

func TestDeliverAllSendsToEachSub(t *testing.T) {
	tr := transport.NewMockTransport()
	f := newTestFanout(tr)
	feed := &store.Feed{ID: 1, Title: "Feed", Link: "https://example.com"}
	subs := []*store.Sub{{UserID: 1, Notify: true}, {UserID: 2, Notify: false}}
	entries := []fetch.Entry{{Title: "Hello", Link: "https://example.com/1"}}

	f.DeliverAll(context.Background(), feed, subs, entries)

	if len(tr.SentTo(1)) != 1 {
		t.Fatalf("expected one message to user 1, got %d", len(tr.SentTo(1)))
	}
	if len(tr.SentTo(2)) != 1 {
		t.Fatalf("expected one message to user 2, got %d", len(tr.SentTo(2)))
	}
	if tr.SentTo(2)[0].Silent != true {
		t.Errorf("expected silent delivery for notify=false sub")
	}
}

func TestDeliverAllEscalatesBlockedUserAfterTolerance(t *testing.T) {
	tr := transport.NewMockTransport()
	tr.Blocked[9] = true
	f := newTestFanout(tr)
	var unsubbed bool
	f.Hooks.UnsubAllAndLeaveChat = func(ctx context.Context, userID int) error {
		unsubbed = true
		return nil
	}
	feed := &store.Feed{ID: 1, Title: "Feed", Link: "https://example.com"}
	subs := []*store.Sub{{UserID: 9, Notify: true}}
	entries := []fetch.Entry{{Title: "Hello", Link: "https://example.com/1"}}

	for i := 0; i < 5; i++ {
		f.DeliverAll(context.Background(), feed, subs, entries)
	}

	if !unsubbed {
		t.Error("expected UnsubAllAndLeaveChat to be called after 5 consecutive blocked deliveries")
	}
}

func TestDeliverAllResetsBlockedCounterOnSuccess(t *testing.T) {
	tr := transport.NewMockTransport()
	f := newTestFanout(tr)
	feed := &store.Feed{ID: 1, Title: "Feed", Link: "https://example.com"}
	subs := []*store.Sub{{UserID: 3, Notify: true}}
	entries := []fetch.Entry{{Title: "Hello", Link: "https://example.com/1"}}

	f.DeliverAll(context.Background(), feed, subs, entries)
	if n := f.Blocked.Increment(3); n != 1 {
		t.Errorf("expected counter to have been reset to 0 before this increment, got %d", n-1)
	}
}

func TestDeliverAllPropagatesUnexpectedSendError(t *testing.T) {
	tr := transport.NewMockTransport()
	tr.Fail[7] = errors.New("transport exploded")
	f := newTestFanout(tr)
	feed := &store.Feed{ID: 1, Title: "Feed", Link: "https://example.com"}
	subs := []*store.Sub{{UserID: 7, Notify: true}}
	entries := []fetch.Entry{{Title: "Hello", Link: "https://example.com/1"}}

	err := f.DeliverAll(context.Background(), feed, subs, entries)
	if err == nil {
		t.Fatal("expected DeliverAll to propagate the unexpected send error")
	}
}

func TestDeliverDeactivationNoticeSendsLocalizedReason(t *testing.T) {
	tr := transport.NewMockTransport()
	f := newTestFanout(tr)
	feed := &store.Feed{ID: 1, Title: "Feed", Link: "https://example.com"}
	subs := []*store.Sub{{UserID: 4, Lang: "fr"}}

	f.DeliverDeactivationNotice(context.Background(), feed, subs, 100)

	sent := tr.SentTo(4)
	if len(sent) != 1 {
		t.Fatalf("expected one deactivation notice, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Text, "100 échecs consécutifs") {
		t.Errorf("expected the French reason in the notice, got %q", sent[0].Text)
	}
}
