package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeffreyp/feedmonitor/internal/fetch"
	"github.com/jeffreyp/feedmonitor/internal/i18n"
	"github.com/jeffreyp/feedmonitor/internal/locks"
	"github.com/jeffreyp/feedmonitor/internal/post"
	"github.com/jeffreyp/feedmonitor/internal/store"
	"github.com/jeffreyp/feedmonitor/internal/transport"
)

// DeliveryFanout implements spec §4.G: per-entry rendering and per-sub,
// concurrent, timeout-bounded delivery, with blocked-user escalation.
type DeliveryFanout struct {
	Transport        transport.Transport
	Unsub            *locks.UnsubLockBucket
	Blocked          *locks.BlockedCounter
	BlockedTolerance int
	SendTimeout      time.Duration
	ErrorChat        transport.Chat
	Hooks            Hooks
	Logger           *log.Logger
}

// DeliverAll renders and fans out each updated entry, in the order given —
// callers pass entries oldest-first per spec §4.F step 7. A non-timeout send
// error is unexpected (spec §4.G step 3) and is returned rather than
// swallowed, so the caller doesn't record stat.updated for a check that
// didn't actually finish delivering.
func (f *DeliveryFanout) DeliverAll(ctx context.Context, feed *store.Feed, subs []*store.Sub, entries []fetch.Entry) error {
	for _, entry := range entries {
		p, err := post.GetPostFromEntry(entry, feed.Title, feed.Link)
		if err != nil {
			f.logger().Printf("failed to parse the post %s (feed: %s): %v", entry.Link, feed.Link, err)
			f.sendErrorNotice(ctx, post.ErrorPost(err.Error(), feed.Title, entry.Link))
			continue
		}
		text := p.Text
		if err := f.deliverToSubs(ctx, subs, func(sub *store.Sub) string { return text }); err != nil {
			return err
		}
	}
	return nil
}

// DeliverDeactivationNotice sends a localized "feed deactivated" notice to
// every active sub, per spec §4.G's "Deactivation path". This isn't on the
// stat.updated path, so an unexpected send error here is logged rather than
// propagated — deactivation already has its own handleFetchFailure outcome.
func (f *DeliveryFanout) DeliverDeactivationNotice(ctx context.Context, feed *store.Feed, subs []*store.Sub, consecutiveFailures int) {
	err := f.deliverToSubs(ctx, subs, func(sub *store.Sub) string {
		reason := i18n.NewCatalog(sub.Lang).DeactivationReason(consecutiveFailures)
		return post.DeactivationNotice(feed.Title, feed.Link, reason).Text
	})
	if err != nil {
		f.logger().Printf("unexpected error delivering deactivation notice for feed %s: %v", feed.Link, err)
	}
}

func (f *DeliveryFanout) deliverToSubs(ctx context.Context, subs []*store.Sub, textFor func(*store.Sub) string) error {
	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, f.SendTimeout)
			defer cancel()

			err := f.send(sendCtx, sub, textFor(sub))
			switch {
			case err == nil:
				return nil
			case errors.Is(err, context.DeadlineExceeded):
				f.logger().Printf("failed to send to user %d due to timeout", sub.UserID)
				return nil
			default:
				return fmt.Errorf("sending to user %d: %w", sub.UserID, err)
			}
		})
	}
	return g.Wait()
}

func (f *DeliveryFanout) send(ctx context.Context, sub *store.Sub, text string) error {
	chat, err := f.Transport.ResolveChat(ctx, sub.UserID)
	if err != nil {
		if reason, ok := blockedReason(err); ok {
			f.handleBlockedUser(ctx, sub.UserID, reason)
			return nil
		}
		var notFound *transport.EntityNotFoundError
		if errors.As(err, &notFound) {
			f.handleBlockedUser(ctx, sub.UserID, "entity not found")
			return nil
		}
		return err
	}

	err = f.Transport.Send(ctx, chat, text, transport.SendModeNormal, !sub.Notify)
	if err == nil {
		f.Blocked.Reset(sub.UserID)
		return nil
	}
	if reason, ok := blockedReason(err); ok {
		f.handleBlockedUser(ctx, sub.UserID, reason)
		return nil
	}
	return err
}

// blockedReason reports whether err signals that the recipient has blocked
// the bot or closed the delivery channel, either on chat resolution or send.
func blockedReason(err error) (string, bool) {
	var blocked *transport.UserBlockedError
	if errors.As(err, &blocked) {
		return "user blocked", true
	}
	var badRequest *transport.BadRequestError
	if errors.As(err, &badRequest) && badRequest.Message == transport.ReasonTopicClosed {
		return badRequest.Message, true
	}
	return "", false
}

// handleBlockedUser implements the serialized blocked-user escalation of
// spec §4.G: a per-user try-lock coalesces concurrent failures for the same
// user into a single counter bump, tolerating BlockedTolerance-1 transient
// failures before unsubscribing the user from everything.
func (f *DeliveryFanout) handleBlockedUser(ctx context.Context, userID int, reason string) {
	f.Unsub.TryRun(userID, func() {
		n := f.Blocked.Increment(userID)
		if n < f.BlockedTolerance {
			return
		}
		f.Blocked.Reset(userID)
		f.logger().Printf("user blocked (%s): %d", reason, userID)
		if f.Hooks.UnsubAllAndLeaveChat == nil {
			return
		}
		if err := f.Hooks.UnsubAllAndLeaveChat(ctx, userID); err != nil {
			f.logger().Printf("failed to unsub user %d: %v", userID, err)
		}
	})
}

func (f *DeliveryFanout) sendErrorNotice(ctx context.Context, p post.Post) {
	if err := f.Transport.Send(ctx, f.ErrorChat, p.Text, transport.SendModeDiagnostic, false); err != nil {
		f.logger().Printf("failed to send parsing-error notice to the operator channel: %v", err)
	}
}

func (f *DeliveryFanout) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.Default()
}
