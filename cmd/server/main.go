package main

import (
	"context"
	"log"

	"github.com/layerforge/layerforge/internal/server"
	"github.com/layerforge/layerforge/internal/server/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	app.Run(context.Background())
}
