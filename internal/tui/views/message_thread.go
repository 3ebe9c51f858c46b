package views

import (
	"fmt"

	"github.com/mkravets/vox/internal/api"
	"github.com/rivo/tview"
)

// MessageThread renders one conversation's messages, oldest first.
type MessageThread struct {
	*tview.TextView
	localUserID int64
}

// NewMessageThread creates the message view.
func NewMessageThread() *MessageThread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true)
	tv.SetBorder(true)
	return &MessageThread{TextView: tv}
}

// SetLocalUser sets the id used to right-align own messages.
func (mt *MessageThread) SetLocalUser(id int64) {
	mt.localUserID = id
}

// SetTitleName sets the conversation name in the border title.
func (mt *MessageThread) SetTitleName(name string) {
	mt.SetTitle(fmt.Sprintf(" %s ", name))
}

// Update re-renders the thread.
func (mt *MessageThread) Update(messages []api.MessageView) {
	mt.Clear()
	for _, m := range messages {
		ts := m.SentAt.Format("15:04")
		who := fmt.Sprintf("%d", m.SenderID)
		color := "aqua"
		if m.SenderID == mt.localUserID {
			who = "me"
			color = "green"
		}
		suffix := ""
		if m.Pending {
			suffix = " [gray](sending)[-]"
		}
		if m.Retryable {
			suffix = " [red](failed)[-]"
		}
		fmt.Fprintf(mt, "[%s]%s %s:[-] %s%s\n", color, ts, who, tview.Escape(m.Text), suffix)
	}
	mt.ScrollToEnd()
}
