package store

import (
	"context"

	"github.com/mkravets/vox/internal/bus"
	"github.com/mkravets/vox/internal/call"
	"go.uber.org/zap"
)

// Recorder persists terminal call summaries. It subscribes to call events
// on the bus so the call machine never blocks on the database.
type Recorder struct {
	db     *DB
	bus    *bus.Bus
	log    *zap.Logger
	cancel context.CancelFunc
}

// NewRecorder creates a call log recorder.
func NewRecorder(db *DB, b *bus.Bus, log *zap.Logger) *Recorder {
	return &Recorder{db: db, bus: b, log: log}
}

// Start subscribes to call teardown events on the bus.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	sub := r.bus.Subscribe(bus.KindCallLogged, 64)

	go func() {
		defer sub.Cancel()
		for {
			select {
			case evt := <-sub.C:
				r.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the recorder.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Recorder) handleEvent(evt bus.Event) {
	entry, ok := evt.Payload.(call.LogEntry)
	if !ok {
		return
	}
	row := &CallLog{
		ConversationID:   entry.ConversationID,
		CounterpartyID:   entry.CounterpartyID,
		CounterpartyName: entry.CounterpartyName,
		IsVideo:          entry.IsVideo,
		IsOutgoing:       entry.IsOutgoing,
		WasConnected:     entry.WasConnected,
		StartTime:        entry.StartTime.UnixMilli(),
		EndTime:          entry.EndTime.UnixMilli(),
		Outcome:          entry.Outcome,
	}
	if err := r.db.InsertCallLog(row); err != nil {
		r.log.Error("failed to record call",
			zap.Int64("conversation_id", row.ConversationID), zap.Error(err))
		return
	}
	r.log.Info("call recorded",
		zap.Int64("conversation_id", row.ConversationID),
		zap.String("outcome", row.Outcome))
}
