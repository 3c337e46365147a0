// Package transport implements the Transport external collaborator: the
// seam between DeliveryFanout and whatever messaging platform posts
// actually go out on.
package transport

import (
	"context"
	"fmt"
)

// Chat identifies a delivery destination, resolved from a user id.
type Chat struct {
	ID int64
}

// SendMode mirrors the original distinction between a normal post and an
// operator-channel diagnostic post (spec §4.G.1 sends errors with
// send_mode=2).
type SendMode int

const (
	SendModeNormal SendMode = iota
	SendModeDiagnostic
)

// UserBlockedError is returned by ResolveChat or Send when the recipient has
// blocked the bot (spec §6 `UserBlockedErrors`).
type UserBlockedError struct {
	UserID int
}

func (e *UserBlockedError) Error() string {
	return fmt.Sprintf("transport: user %d has blocked the bot", e.UserID)
}

// EntityNotFoundError is returned when the recipient's chat entity cannot
// be resolved at all (spec §6 `EntityNotFoundError`); DeliveryFanout treats
// this the same as a block.
type EntityNotFoundError struct {
	UserID int
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("transport: entity not found for user %d", e.UserID)
}

// BadRequestError carries the platform's rejection message. Only the
// TOPIC_CLOSED variant is treated as a blocked-user signal by the fanout;
// every other message is an ordinary delivery failure.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("transport: bad request: %s", e.Message)
}

const ReasonTopicClosed = "TOPIC_CLOSED"

// Transport is the external collaborator spec §6 pins: resolving a user id
// to a chat and sending a formatted message to it.
type Transport interface {
	ResolveChat(ctx context.Context, userID int) (Chat, error)
	Send(ctx context.Context, chat Chat, text string, mode SendMode, silent bool) error
}
