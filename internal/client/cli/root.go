package cli

import (
	"context"
	"fmt"
	"log"
)

// Root greets the user, checks the server is reachable and runs the REPL.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to mealkeeper CLI (type 'help' for commands)")

	if err := a.api.Ping(ctx); err != nil {
		log.Printf("Server %s is not reachable: %v", a.config.ServerURL, err)
	}

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}
