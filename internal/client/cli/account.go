package cli

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultBurst = 3

// Me shows who the server thinks we are.
func (a *App) Me(ctx context.Context) error {
	u, err := a.api.Me(ctx)
	if err != nil {
		log.Printf("Me: %v", err)
		return err
	}
	fmt.Fprintf(a.out, "%s (%s)\n", u.UserName, u.ID)
	return nil
}

// Sessions lists the device sessions of the current user.
func (a *App) Sessions(ctx context.Context) error {
	list, err := a.api.Sessions(ctx)
	if err != nil {
		log.Printf("Sessions: %v", err)
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEVICE\tLAST REFRESH\tEXPIRES")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.DeviceTag,
			s.UpdatedAt.Local().Format(time.DateTime), s.ExpiresAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

// Refresh rotates the refresh token right away.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.api.Refresh(ctx); err != nil {
		log.Printf("Refresh: %v", err)
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

// Burst fires n authenticated requests at once and reports how many
// refreshes they caused between them.
func (a *App) Burst(ctx context.Context, args []string) error {
	n := defaultBurst
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			fmt.Fprintln(a.out, "Usage: burst [n]")
			return fmt.Errorf("invalid request count %q", args[0])
		}
		n = v
	}

	before := a.api.RefreshCount()
	var ok atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if _, err := a.api.Me(gctx); err != nil {
				return err
			}
			ok.Add(1)
			return nil
		})
	}
	err := g.Wait()

	fmt.Fprintf(a.out, "%d/%d requests succeeded, %d refresh(es)\n", ok.Load(), n, a.api.RefreshCount()-before)
	if err != nil {
		log.Printf("Burst: %v", err)
	}
	return err
}
