package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Me(ctx context.Context) error
	Sessions(ctx context.Context) error
	Refresh(ctx context.Context) error
	Burst(ctx context.Context, args []string) error
}

// runREPL reads commands from reader and dispatches them to a until EOF,
// "exit" or "quit".
//
//	Not logged in:
//	  - register, login, exit | quit
//
//	Logged in:
//	  - me, sessions, refresh, burst [n], change-password,
//	    logout, logout-all, exit | quit
//
// Errors returned by command handlers are ignored here; handlers log their
// own errors.
//
// The prompts inside commands read from the same reader, so the loop must
// not buffer ahead of them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "mk (%s)> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: me, sessions, refresh, burst [n], change-password, logout, logout-all, exit")
			} else {
				fmt.Fprintln(w, "Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "me", "whoami":
			_ = a.Me(ctx)

		case "sessions":
			_ = a.Sessions(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "burst":
			_ = a.Burst(ctx, args)

		case "change-password":
			_ = a.ChangePassword(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "logout-all":
			_ = a.LogoutAll(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}
	}
}
