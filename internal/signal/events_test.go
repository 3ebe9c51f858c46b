package signal

import (
	"errors"
	"testing"
)

func TestDecodeCallRequest(t *testing.T) {
	data := []byte(`{"eventType":"CALL_REQUEST","conversationId":42,"callerId":7,"receiverId":9,"roomName":"room-1","isVideo":true}`)
	evt, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if evt.Type != EventCallRequest {
		t.Errorf("Type = %q, want CALL_REQUEST", evt.Type)
	}
	if evt.ConversationID != 42 || evt.CallerID != 7 || evt.ReceiverID != 9 {
		t.Errorf("ids = (%d, %d, %d), want (42, 7, 9)", evt.ConversationID, evt.CallerID, evt.ReceiverID)
	}
	if !evt.IsVideo {
		t.Error("IsVideo = false, want true")
	}
}

func TestDecodeMessage(t *testing.T) {
	data := []byte(`{"eventType":"MESSAGE","message":{"id":100,"conversationId":42,"senderId":7,"text":"hi","messageType":"text","sentAt":"2025-06-01T10:00:00Z","isDelivered":true}}`)
	evt, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if evt.Message == nil {
		t.Fatal("Message = nil")
	}
	if evt.Message.ID != 100 || evt.Message.Text != "hi" {
		t.Errorf("message = (%d, %q), want (100, hi)", evt.Message.ID, evt.Message.Text)
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"call without conversation", `{"eventType":"CALL_REQUEST"}`},
		{"call with negative conversation", `{"eventType":"CALL_END","conversationId":-1}`},
		{"message without payload", `{"eventType":"MESSAGE"}`},
		{"message without sender", `{"eventType":"MESSAGE","message":{"id":1,"conversationId":42,"text":"x"}}`},
		{"message with local id", `{"eventType":"MESSAGE","message":{"id":-5,"conversationId":42,"senderId":7,"text":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); err == nil {
				t.Error("Decode() expected error")
			}
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"eventType":"PRESENCE","conversationId":1}`))
	var unknown *UnknownEventError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v (%T), want UnknownEventError", err, err)
	}
	if unknown.Type != "PRESENCE" {
		t.Errorf("unknown type = %q, want PRESENCE", unknown.Type)
	}
}

func TestIsCall(t *testing.T) {
	calls := []EventType{EventCallRequest, EventCallAccept, EventCallReject, EventCallEnd, EventCallMissed}
	for _, et := range calls {
		if !et.IsCall() {
			t.Errorf("%s.IsCall() = false, want true", et)
		}
	}
	if EventMessage.IsCall() {
		t.Error("MESSAGE.IsCall() = true, want false")
	}
}
