package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays persistent session, connection, and call status.
type StatusBar struct {
	*tview.TextView
	session    string
	connection string
	callState  string
	flash      string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetConnection updates the connection status display.
func (sb *StatusBar) SetConnection(status string) {
	sb.connection = status
	sb.render()
}

// SetCallState updates the call indicator.
func (sb *StatusBar) SetCallState(state string) {
	sb.callState = state
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	conn := sb.connection
	switch conn {
	case "CONNECTED":
		conn = "[green]" + conn + "[-]"
	case "CONNECTING":
		conn = "[yellow]" + conn + "[-]"
	default:
		conn = "[red]" + conn + "[-]"
	}

	callIcon := ""
	if sb.callState != "" && sb.callState != "IDLE" {
		callIcon = fmt.Sprintf(" | [orange]call:%s[-]", sb.callState)
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s%s | %s", sb.session, conn, callIcon, clock)
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}
