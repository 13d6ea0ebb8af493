package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/dkovalev0/ciphertalk/internal/server"
	"github.com/dkovalev0/ciphertalk/internal/server/config"
)

func main() {

	ctx := context.Background()

	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("%v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("%v", err)
		return
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
