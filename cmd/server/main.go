package main

import (
	"context"
	"log"
	"net/http"

	"github.com/mariahavens/pos-api/internal/config"
	"github.com/mariahavens/pos-api/internal/order"
	"github.com/mariahavens/pos-api/internal/postgres"
	"github.com/mariahavens/pos-api/internal/router"
	"github.com/mariahavens/pos-api/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	log.Println("Connected to database")

	store := postgres.NewStore(pool)
	manager := order.NewManager(store, store, order.Rates{
		Tax:           cfg.TaxRate,
		ServiceCharge: cfg.ServiceChargeRate,
	})

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, store, manager, hub)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
