package main

import (
	"context"
	"log"

	"github.com/dkuzmenko/authd/internal/client/cli"
	"github.com/dkuzmenko/authd/internal/client/config"
)

func main() {
	ctx := context.Background()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Printf("%v", err)
		return
	}

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
