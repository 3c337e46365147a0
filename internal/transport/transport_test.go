package transport

import (
	"context"
	"errors"
	"testing"
)

func TestMockTransportSendRecordsMessage(t *testing.T) {
	m := NewMockTransport()
	chat, err := m.ResolveChat(context.Background(), 1)
	if err != nil {
		t.Fatalf("ResolveChat: %v", err)
	}
	if err := m.Send(context.Background(), chat, "hello", SendModeNormal, false); err != nil {
		t.Fatalf("Send: %v", err)
	}

	sent := m.SentTo(1)
	if len(sent) != 1 || sent[0].Text != "hello" {
		t.Fatalf("SentTo(1) = %+v", sent)
	}
}

func TestMockTransportBlockedUser(t *testing.T) {
	m := NewMockTransport()
	m.Blocked[2] = true

	_, err := m.ResolveChat(context.Background(), 2)
	var blocked *UserBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("ResolveChat err = %v, want *UserBlockedError", err)
	}
}

func TestMockTransportTopicClosed(t *testing.T) {
	m := NewMockTransport()
	m.TopicClosed[3] = true

	chat, _ := m.ResolveChat(context.Background(), 3)
	err := m.Send(context.Background(), chat, "hi", SendModeNormal, false)

	var badReq *BadRequestError
	if !errors.As(err, &badReq) || badReq.Message != ReasonTopicClosed {
		t.Fatalf("Send err = %v, want BadRequestError{TOPIC_CLOSED}", err)
	}
}

func TestMockTransportNotFound(t *testing.T) {
	m := NewMockTransport()
	m.NotFound[4] = true

	_, err := m.ResolveChat(context.Background(), 4)
	var notFound *EntityNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("ResolveChat err = %v, want *EntityNotFoundError", err)
	}
}
