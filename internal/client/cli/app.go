// Package cli implements the interactive command-line client for the
// credential service.
package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/dkuzmenko/authd/internal/client/api"
	"github.com/dkuzmenko/authd/internal/client/config"
)

type App struct {
	config *config.Config
	api    *api.Client
	reader *bufio.Reader
	email  string
}

func NewApp(c *config.Config) (*App, error) {
	client, err := api.NewClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return &App{config: c, api: client, reader: bufio.NewReader(os.Stdin)}, nil
}

func (a *App) isLoggedIn() bool {
	return a.api.LoggedIn()
}

// status renders the prompt segment: the logged-in email or "anonymous".
func (a *App) status() string {
	if a.isLoggedIn() {
		return a.email
	}
	return "anonymous"
}

func (a *App) Run(ctx context.Context) {
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}
