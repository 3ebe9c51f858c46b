package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mkravets/vox/internal/session"
	"github.com/mkravets/vox/internal/tui"
	"github.com/mkravets/vox/internal/tui/client"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	c := client.New(session.SocketPath(sessionName))

	app := tui.NewApp(c, sessionName)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
