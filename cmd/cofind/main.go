package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/cofind/internal/client/app"
	"github.com/dmitrijs2005/cofind/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	a, err := app.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
