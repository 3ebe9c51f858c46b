package daemon

import (
	"context"

	"github.com/mkravets/vox/internal/call"
	"github.com/mkravets/vox/internal/chat"
	"github.com/mkravets/vox/internal/signal"
)

// Dispatcher routes decoded signaling events to the call machine and the
// message reconciler. The channel needs its handler before either component
// exists, so the targets are bound late.
type Dispatcher struct {
	calls *call.Machine
	msgs  *chat.Reconciler
}

// NewDispatcher creates an unbound dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Bind attaches the event targets. Must be called before the channel
// connects.
func (d *Dispatcher) Bind(calls *call.Machine, msgs *chat.Reconciler) {
	d.calls = calls
	d.msgs = msgs
}

// Handle is the signaling channel handler. The read loop invokes it
// serially, preserving server ordering.
func (d *Dispatcher) Handle(evt *signal.Event) {
	ctx := context.Background()
	switch {
	case evt.Type.IsCall():
		if d.calls != nil {
			d.calls.HandleEvent(ctx, evt)
		}
	case evt.Type == signal.EventMessage:
		if d.msgs != nil {
			d.msgs.HandleInbound(ctx, evt.Message)
		}
	}
}
