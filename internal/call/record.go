package call

import "time"

// Record is the single live call. It is owned exclusively by the Machine;
// everything else reads snapshots or issues transition requests.
type Record struct {
	ConversationID       int64
	CounterpartyID       int64
	CounterpartyName     string
	CounterpartyImageURL string
	RoomName             string
	IsVideo              bool
	IsOutgoing           bool
	State                State
	StartTime            *time.Time
	EndTime              *time.Time
}

// clone returns a copy safe to hand to readers.
func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.StartTime != nil {
		t := *r.StartTime
		out.StartTime = &t
	}
	if r.EndTime != nil {
		t := *r.EndTime
		out.EndTime = &t
	}
	return &out
}

// LogEntry is the terminal summary of a call, published on the bus when the
// record resets to IDLE and persisted into the local call log.
type LogEntry struct {
	ConversationID   int64
	CounterpartyID   int64
	CounterpartyName string
	IsVideo          bool
	IsOutgoing       bool
	WasConnected     bool
	StartTime        time.Time
	EndTime          time.Time
	Outcome          string // "completed", "rejected", "missed", "failed"
}
