package views

import (
	"fmt"
	"time"

	"github.com/mkravets/vox/internal/api"
	"github.com/rivo/tview"
)

// ConversationList is the main conversation table.
type ConversationList struct {
	*tview.Table
	conversations []api.ConversationView
	selectedFn    func() (int, int)
}

// NewConversationList creates the conversation table.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")

	cl := &ConversationList{Table: table}
	cl.selectedFn = table.GetSelection
	return cl
}

// Update refreshes the table with new data.
func (cl *ConversationList) Update(conversations []api.ConversationView) {
	cl.conversations = conversations
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, conv := range conversations {
		row := i + 1
		name := conv.ParticipantName
		if name == "" {
			name = fmt.Sprintf("#%d", conv.ID)
		}
		if conv.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, conv.UnreadCount)
		}
		if conv.Muted {
			name += " [silenced]"
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+name).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+conv.LastMessagePreview).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(conv.LastMessageAt)).SetMaxWidth(12))
	}
}

// Selected returns the currently selected conversation, or nil.
func (cl *ConversationList) Selected() *api.ConversationView {
	row, _ := cl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.conversations) {
		return &cl.conversations[idx]
	}
	return nil
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
