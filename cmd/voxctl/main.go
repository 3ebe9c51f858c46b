package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mkravets/vox/internal/api"
	"github.com/mkravets/vox/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := newClient(session.SocketPath(sessionName))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "conversations":
		cmdConversations(ctx, c, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: voxctl messages <conversation-id>")
			os.Exit(1)
		}
		cmdMessages(ctx, c, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: voxctl send <conversation-id> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "))
	case "open":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: voxctl open <conversation-id>")
			os.Exit(1)
		}
		cmdOpen(ctx, c, args[1], true)
	case "close":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: voxctl close <conversation-id>")
			os.Exit(1)
		}
		cmdOpen(ctx, c, args[1], false)
	case "call":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: voxctl call <status|start|accept|reject|end|log>")
			os.Exit(1)
		}
		cmdCall(ctx, c, args[1:], *jsonFlag)
	case "push":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: voxctl push <json-payload>")
			os.Exit(1)
		}
		cmdPush(ctx, c, args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: voxctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                     Show daemon status")
	fmt.Fprintln(os.Stderr, "  conversations              List conversations")
	fmt.Fprintln(os.Stderr, "  messages <id>              List messages in a conversation")
	fmt.Fprintln(os.Stderr, "  send <id> <text>           Send a message")
	fmt.Fprintln(os.Stderr, "  open <id>                  Mark a conversation open on screen")
	fmt.Fprintln(os.Stderr, "  close <id>                 Mark a conversation closed")
	fmt.Fprintln(os.Stderr, "  call status                Show the live call")
	fmt.Fprintln(os.Stderr, "  call start <id> [--video]  Start an outgoing call")
	fmt.Fprintln(os.Stderr, "  call accept                Accept the ringing call")
	fmt.Fprintln(os.Stderr, "  call reject                Reject the ringing call")
	fmt.Fprintln(os.Stderr, "  call end                   Hang up")
	fmt.Fprintln(os.Stderr, "  call log                   Show call history")
	fmt.Fprintln(os.Stderr, "  push <json-payload>        Inject a push payload")
}

// client is a minimal HTTP client over the daemon's unix socket.
type client struct {
	http *http.Client
}

func newClient(socketPath string) *client {
	return &client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach daemon (is voxd running?): %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned HTTP %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fatal(fmt.Errorf("invalid conversation id %q", s))
	}
	return id
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func cmdStatus(ctx context.Context, c *client, jsonOut bool) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Session:    %s\n", resp.Session)
	fmt.Printf("Connection: %s\n", resp.Connection)
	fmt.Printf("Call:       %s\n", resp.CallState)
	fmt.Printf("PID:        %d\n", resp.PID)
}

func cmdConversations(ctx context.Context, c *client, jsonOut bool) {
	var resp struct {
		Conversations []api.ConversationView `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &resp); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp.Conversations)
		return
	}
	for _, conv := range resp.Conversations {
		marker := " "
		if conv.UnreadCount > 0 {
			marker = fmt.Sprintf("%d", conv.UnreadCount)
		}
		fmt.Printf("%6d  [%s]  %-24s  %s\n", conv.ID, marker, conv.ParticipantName, conv.LastMessagePreview)
	}
}

func cmdMessages(ctx context.Context, c *client, idArg string, jsonOut bool) {
	id := parseID(idArg)
	var resp struct {
		Messages []api.MessageView `json:"messages"`
	}
	path := fmt.Sprintf("/api/conversations/%d/messages", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp.Messages)
		return
	}
	for _, m := range resp.Messages {
		note := ""
		if m.Pending {
			note = " (sending)"
		}
		if m.Retryable {
			note = " (failed, retryable)"
		}
		fmt.Printf("%s  %6d  %s%s\n", m.SentAt.Format("15:04"), m.SenderID, m.Text, note)
	}
}

func cmdSend(ctx context.Context, c *client, idArg, text string) {
	id := parseID(idArg)
	var view api.MessageView
	path := fmt.Sprintf("/api/conversations/%d/messages", id)
	if err := c.do(ctx, http.MethodPost, path, api.SendMessageRequest{Text: text}, &view); err != nil {
		fatal(err)
	}
	fmt.Printf("queued (placeholder id %d)\n", view.ID)
}

func cmdOpen(ctx context.Context, c *client, idArg string, open bool) {
	id := parseID(idArg)
	path := fmt.Sprintf("/api/conversations/%d/open", id)
	if err := c.do(ctx, http.MethodPost, path, api.OpenRequest{Open: &open}, nil); err != nil {
		fatal(err)
	}
}

func cmdCall(ctx context.Context, c *client, args []string, jsonOut bool) {
	switch args[0] {
	case "status":
		var view api.CallView
		if err := c.do(ctx, http.MethodGet, "/api/call", nil, &view); err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(view)
			return
		}
		if view.State == "IDLE" {
			fmt.Println("no active call")
			return
		}
		fmt.Printf("State:        %s\n", view.State)
		fmt.Printf("Conversation: %d\n", view.ConversationID)
		fmt.Printf("With:         %s (%d)\n", view.CounterpartyName, view.CounterpartyID)
		fmt.Printf("Video:        %v\n", view.IsVideo)
	case "start":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: voxctl call start <conversation-id> [--video]")
			os.Exit(1)
		}
		req := api.StartCallRequest{ConversationID: parseID(args[1])}
		for _, a := range args[2:] {
			if a == "--video" {
				req.IsVideo = true
			}
		}
		var view api.CallView
		if err := c.do(ctx, http.MethodPost, "/api/call/start", req, &view); err != nil {
			fatal(err)
		}
		fmt.Printf("calling, state %s\n", view.State)
	case "accept", "reject", "end":
		var view api.CallView
		if err := c.do(ctx, http.MethodPost, "/api/call/"+args[0], nil, &view); err != nil {
			fatal(err)
		}
		fmt.Printf("state %s\n", view.State)
	case "log":
		var resp struct {
			Calls []json.RawMessage `json:"calls"`
		}
		if err := c.do(ctx, http.MethodGet, "/api/call/log", nil, &resp); err != nil {
			fatal(err)
		}
		outputJSON(resp.Calls)
	default:
		fmt.Fprintf(os.Stderr, "unknown call command: %s\n", args[0])
		os.Exit(1)
	}
}

func cmdPush(ctx context.Context, c *client, payload string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://unix/api/push", strings.NewReader(payload))
	if err != nil {
		fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		fatal(fmt.Errorf("daemon rejected push (HTTP %d)", resp.StatusCode))
	}
	fmt.Println("push delivered")
}
