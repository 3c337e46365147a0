package transport

import (
	"context"
	"sync"
)

// MockTransport is a test double recording every send attempt; individual
// users can be configured to fail in specific ways, mirroring the teacher's
// injectable HTTPClient-for-tests pattern.
type MockTransport struct {
	mu sync.Mutex

	// Blocked marks user ids whose ResolveChat/Send should behave as if the
	// bot has been blocked.
	Blocked map[int]bool

	// NotFound marks user ids whose ResolveChat should fail entity resolution.
	NotFound map[int]bool

	// TopicClosed marks user ids whose Send should fail with
	// BadRequestError{Message: ReasonTopicClosed}.
	TopicClosed map[int]bool

	// Fail marks user ids whose Send should fail with an arbitrary,
	// unrecognized error — for exercising the "unexpected error" path
	// distinct from the blocked/not-found/topic-closed cases above.
	Fail map[int]error

	Sent []SentMessage
}

// SentMessage records one successful Send call.
type SentMessage struct {
	UserID int
	Text   string
	Mode   SendMode
	Silent bool
}

// NewMockTransport builds an empty MockTransport; every user resolves and
// sends successfully until configured otherwise.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Blocked:     make(map[int]bool),
		NotFound:    make(map[int]bool),
		TopicClosed: make(map[int]bool),
		Fail:        make(map[int]error),
	}
}

func (m *MockTransport) ResolveChat(ctx context.Context, userID int) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NotFound[userID] {
		return Chat{}, &EntityNotFoundError{UserID: userID}
	}
	if m.Blocked[userID] {
		return Chat{}, &UserBlockedError{UserID: userID}
	}
	return Chat{ID: int64(userID)}, nil
}

func (m *MockTransport) Send(ctx context.Context, chat Chat, text string, mode SendMode, silent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID := int(chat.ID)
	if m.Blocked[userID] {
		return &UserBlockedError{UserID: userID}
	}
	if m.TopicClosed[userID] {
		return &BadRequestError{Message: ReasonTopicClosed}
	}
	if err := m.Fail[userID]; err != nil {
		return err
	}

	m.Sent = append(m.Sent, SentMessage{UserID: userID, Text: text, Mode: mode, Silent: silent})
	return nil
}

// SentTo returns the messages recorded for a given user, for assertions.
func (m *MockTransport) SentTo(userID int) []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentMessage
	for _, s := range m.Sent {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}
