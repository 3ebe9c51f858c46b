package call

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from State
		to   State
		want bool
	}{
		{StateIdle, StateIncoming, true},
		{StateIdle, StateOutgoing, true},
		{StateIdle, StateConnected, false},
		{StateIncoming, StateConnected, true},
		{StateIncoming, StateDisconnected, true},
		{StateOutgoing, StateConnected, true},
		{StateOutgoing, StateDisconnected, true},
		{StateConnected, StateDisconnected, true},
		{StateConnected, StateIncoming, false},
		{StateDisconnected, StateIdle, true},
		{StateDisconnected, StateConnected, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := canTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestActive(t *testing.T) {
	active := []State{StateIncoming, StateOutgoing, StateConnected}
	for _, s := range active {
		if !s.active() {
			t.Errorf("%s.active() = false, want true", s)
		}
	}
	for _, s := range []State{StateIdle, StateDisconnected} {
		if s.active() {
			t.Errorf("%s.active() = true, want false", s)
		}
	}
}
