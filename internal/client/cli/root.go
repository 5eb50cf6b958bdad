package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/layerforge/layerforge/internal/client/session"
)

func (a *App) getStatus() string {
	return a.coordinator.State().String()
}

// Root runs the read-eval-print loop until exit or EOF.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "LayerForge client (type 'help' for commands)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if a.coordinator.State() == session.StateDuplicate {
			fmt.Fprintln(a.out, "Another LayerForge instance is already running with this session. Close this one.")
		}
		fmt.Fprintf(a.out, "lf (%s)> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(a.out, "Available commands: status, upload <path>, exit")
			} else {
				fmt.Fprintln(a.out, "Available commands: login, status, dismiss, exit")
			}
		case "login":
			a.Login(ctx)
		case "status":
			a.Status(ctx)
		case "dismiss":
			a.Dismiss(ctx)
		case "upload":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: upload <path>")
				continue
			}
			a.Upload(ctx, args[0])
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}
}
