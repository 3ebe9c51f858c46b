// Package tui is the terminal front end for a running voxd session.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mkravets/vox/internal/api"
	"github.com/mkravets/vox/internal/tui/client"
	"github.com/mkravets/vox/internal/tui/model"
	"github.com/mkravets/vox/internal/tui/views"
	"github.com/rivo/tview"
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	c         *client.Client
	flash     *model.Flash
	statusBar *views.StatusBar
	convList  *views.ConversationList
	thread    *views.MessageThread
	composer  *views.Composer
	callView  *views.CallView
	ctx       context.Context
	cancel    context.CancelFunc

	activeConversation int64
	lastCallState      string
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		c:         c,
		flash:     &model.Flash{},
		statusBar: views.NewStatusBar(),
		convList:  views.NewConversationList(),
		thread:    views.NewMessageThread(),
		composer:  views.NewComposer(),
		callView:  views.NewCallView(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if conv := a.convList.Selected(); conv != nil {
			a.openConversation(conv)
		}
	})

	a.composer.SetOnSend(func(text string) {
		conversationID := a.activeConversation
		if conversationID == 0 {
			return
		}
		go func() {
			if _, err := a.c.Send(a.ctx, conversationID, text); err != nil {
				a.flash.Set("Send failed: "+err.Error(), 5*time.Second)
			}
			a.refreshThread(conversationID)
		}()
	})
}

func (a *App) setupLayout() {
	threadFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("conversations", a.convList, true, true)
	a.pages.AddPage("thread", threadFlex, true, false)
	a.pages.AddPage("call", a.callView, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "thread":
				a.closeConversation()
				return nil
			case "call":
				// The call keeps going; escape only hides the page.
				a.pages.SwitchToPage("conversations")
				a.app.SetFocus(a.convList)
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		if event.Key() != tcell.KeyRune {
			return event
		}

		switch currentPage {
		case "conversations":
			switch event.Rune() {
			case 'q':
				a.app.Stop()
				return nil
			case 'c', 'v':
				if conv := a.convList.Selected(); conv != nil {
					a.startCall(conv.ID, event.Rune() == 'v')
				}
				return nil
			}
		case "thread":
			switch event.Rune() {
			case 'i':
				a.app.SetFocus(a.composer.InputField)
				return nil
			case 'c', 'v':
				a.startCall(a.activeConversation, event.Rune() == 'v')
				return nil
			}
		case "call":
			switch event.Rune() {
			case 'a':
				a.callAction(a.c.AcceptCall)
				return nil
			case 'r':
				a.callAction(a.c.RejectCall)
				return nil
			case 'e':
				a.callAction(a.c.EndCall)
				return nil
			}
		}
		return event
	})
}

func (a *App) openConversation(conv *api.ConversationView) {
	a.activeConversation = conv.ID
	go func() {
		if err := a.c.SetOpen(a.ctx, conv.ID, true); err != nil {
			a.flash.Set("Open failed: "+err.Error(), 5*time.Second)
		}
		messages, err := a.c.Messages(a.ctx, conv.ID)
		if err != nil {
			a.flash.Set("Load failed: "+err.Error(), 5*time.Second)
			return
		}
		a.app.QueueUpdateDraw(func() {
			name := conv.ParticipantName
			if name == "" {
				name = "conversation"
			}
			a.thread.SetTitleName(name)
			a.thread.Update(messages)
			a.pages.SwitchToPage("thread")
			a.app.SetFocus(a.thread)
		})
	}()
}

func (a *App) closeConversation() {
	conversationID := a.activeConversation
	a.activeConversation = 0
	go func() { _ = a.c.SetOpen(a.ctx, conversationID, false) }()
	a.pages.SwitchToPage("conversations")
	a.app.SetFocus(a.convList)
}

func (a *App) refreshThread(conversationID int64) {
	messages, err := a.c.Messages(a.ctx, conversationID)
	if err != nil {
		return
	}
	a.app.QueueUpdateDraw(func() {
		if a.activeConversation == conversationID {
			a.thread.Update(messages)
		}
		a.statusBar.SetFlash(a.flash.Get())
	})
}

func (a *App) startCall(conversationID int64, video bool) {
	if conversationID == 0 {
		return
	}
	go func() {
		if err := a.c.StartCall(a.ctx, conversationID, video); err != nil {
			a.flash.Set("Call failed: "+err.Error(), 5*time.Second)
			a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.flash.Get()) })
		}
	}()
}

func (a *App) callAction(fn func(context.Context) error) {
	go func() {
		if err := fn(a.ctx); err != nil {
			a.flash.Set(err.Error(), 5*time.Second)
			a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.flash.Get()) })
		}
	}()
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		a.refreshOnce()
		a.startRefreshLoop()
	}()
	defer a.cancel()
	return a.app.Run()
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(time.Second)
	for {
		select {
		case <-ticker.C:
			a.refreshOnce()
		case <-a.ctx.Done():
			ticker.Stop()
			return
		}
	}
}

// refreshOnce polls the daemon and redraws. The daemon is the source of
// truth; the TUI holds no state beyond what is on screen.
func (a *App) refreshOnce() {
	status, err := a.c.Status(a.ctx)
	if err != nil {
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetConnection("DAEMON UNREACHABLE")
		})
		return
	}

	conversations, _ := a.c.Conversations(a.ctx)
	callRec, _ := a.c.Call(a.ctx)

	var messages []api.MessageView
	if a.activeConversation != 0 {
		messages, _ = a.c.Messages(a.ctx, a.activeConversation)
	}

	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetConnection(status.Connection)
		a.statusBar.SetCallState(status.CallState)
		a.statusBar.SetFlash(a.flash.Get())
		a.thread.SetLocalUser(status.UserID)

		currentPage, _ := a.pages.GetFrontPage()
		if currentPage == "conversations" && conversations != nil {
			a.convList.Update(conversations)
		}
		if a.activeConversation != 0 && messages != nil && currentPage == "thread" {
			a.thread.Update(messages)
		}

		// A ringing or live call takes over the screen; teardown returns
		// to wherever the user was.
		if callRec != nil {
			a.callView.Update(callRec)
			if callRec.State != "IDLE" && currentPage != "call" {
				a.pages.SwitchToPage("call")
			}
			if callRec.State == "IDLE" && a.lastCallState != "" && a.lastCallState != "IDLE" && currentPage == "call" {
				a.pages.SwitchToPage("conversations")
				a.app.SetFocus(a.convList)
			}
			a.lastCallState = callRec.State
		}
	})
}
