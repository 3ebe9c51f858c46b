package push

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCall *IncomingCall
		wantMsg  *NewMessage
		wantErr  bool
	}{
		{
			name:     "incoming call",
			raw:      `{"type":"INCOMING_CALL","conversationId":42,"callerName":"Ана","isVideoCall":true}`,
			wantCall: &IncomingCall{ConversationID: 42, CallerName: "Ана", IsVideo: true},
		},
		{
			name:     "incoming call without optional fields",
			raw:      `{"type":"INCOMING_CALL","conversationId":42}`,
			wantCall: &IncomingCall{ConversationID: 42},
		},
		{
			name:    "new message",
			raw:     `{"type":"NEW_MESSAGE","conversationId":7}`,
			wantMsg: &NewMessage{ConversationID: 7},
		},
		{
			name:    "unknown type",
			raw:     `{"type":"FRIEND_REQUEST","conversationId":7}`,
			wantErr: true,
		},
		{
			name:    "missing conversation id",
			raw:     `{"type":"NEW_MESSAGE"}`,
			wantErr: true,
		},
		{
			name:    "negative conversation id",
			raw:     `{"type":"INCOMING_CALL","conversationId":-1}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `ding`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, msg, err := Parse([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got call=%v msg=%v", tt.raw, call, msg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.raw, err)
			}
			if tt.wantCall != nil {
				if call == nil || *call != *tt.wantCall {
					t.Errorf("call = %+v, want %+v", call, tt.wantCall)
				}
				if msg != nil {
					t.Errorf("msg = %+v, want nil", msg)
				}
			}
			if tt.wantMsg != nil {
				if msg == nil || *msg != *tt.wantMsg {
					t.Errorf("msg = %+v, want %+v", msg, tt.wantMsg)
				}
				if call != nil {
					t.Errorf("call = %+v, want nil", call)
				}
			}
		})
	}
}
