package views

import (
	"fmt"

	"github.com/mkravets/vox/internal/api"
	"github.com/rivo/tview"
)

// CallView is the full-screen page shown while a call is ringing or live.
type CallView struct {
	*tview.TextView
}

// NewCallView creates the call page.
func NewCallView() *CallView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true).SetTitle(" Call ")
	return &CallView{TextView: tv}
}

// Update re-renders the call page for the given record.
func (cv *CallView) Update(call *api.CallView) {
	cv.Clear()
	if call == nil || call.State == "IDLE" {
		fmt.Fprint(cv, "\n\nno active call")
		return
	}

	kind := "voice"
	if call.IsVideo {
		kind = "video"
	}
	name := call.CounterpartyName
	if name == "" {
		name = fmt.Sprintf("user %d", call.CounterpartyID)
	}

	switch call.State {
	case "INCOMING":
		fmt.Fprintf(cv, "\n\n[orange::b]incoming %s call[-:-:-]\n\n%s\n\n[green]a[-]:accept  [red]r[-]:reject", kind, name)
	case "OUTGOING":
		fmt.Fprintf(cv, "\n\n[yellow::b]calling...[-:-:-]\n\n%s (%s)\n\n[red]e[-]:hang up", name, kind)
	case "CONNECTED":
		elapsed := ""
		if call.StartTime != nil {
			elapsed = fmt.Sprintf("\n\nstarted %s", call.StartTime.Format("15:04:05"))
		}
		fmt.Fprintf(cv, "\n\n[green::b]in %s call[-:-:-]\n\n%s%s\n\n[red]e[-]:hang up", kind, name, elapsed)
	default:
		fmt.Fprintf(cv, "\n\ncall %s", call.State)
	}
}
