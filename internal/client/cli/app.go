package cli

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/mealkeeper/internal/client/client"
	"github.com/dmitrijs2005/mealkeeper/internal/client/config"
)

// apiClient is what the commands need from the HTTP client.
type apiClient interface {
	client.Client
	RefreshCount() int64
}

type App struct {
	config *config.Config
	api    apiClient
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	hc, err := client.NewHTTPClient(c)
	if err != nil {
		return nil, err
	}

	a := newApp(c, hc, os.Stdin, os.Stdout)
	hc.OnExpired(a.sessionExpired)
	return a, nil
}

func newApp(c *config.Config, api apiClient, in io.Reader, out io.Writer) *App {
	return &App{config: c, api: api, reader: bufio.NewReader(in), out: out}
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		if err := a.api.Close(); err != nil {
			log.Printf("close client: %v", err)
		}
	}()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.api.Session().AccessToken != ""
}

func (a *App) sessionExpired(err error) {
	log.Printf("Session expired (%v), please log in again", err)
}

func (a *App) getStatus() string {
	if s := a.api.Session(); s.UserName != "" {
		return s.UserName
	}
	return "anonymous"
}
