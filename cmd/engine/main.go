package main

import (
	"context"
	"log"

	"github.com/protrace/registry-engine/internal/api"
	"github.com/protrace/registry-engine/internal/config"
	"github.com/protrace/registry-engine/internal/db"
	"github.com/protrace/registry-engine/internal/registry"
	"github.com/protrace/registry-engine/pkg/models"
)

func main() {
	log.Println("Starting protrace registry engine...")

	cfg := config.Load()

	var dbConn *db.PostgresStore
	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL, continuing without persistence. Error: %v", err)
	} else {
		dbConn = conn
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
	}

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	var persist registry.PersistFunc
	if dbConn != nil {
		persist = func(leaf models.Leaf) error {
			return dbConn.SaveLeaf(context.Background(), leaf)
		}
	}

	reg := registry.New(cfg.ThresholdBits, persist, cfg.EnableIndex)
	reg.AddHook(api.BroadcastOutcome(wsHub))
	if dbConn != nil {
		reg.AddHook(func(result registry.Result) {
			if result.Accepted == nil {
				return
			}
			if err := dbConn.SaveRoot(context.Background(), result.Accepted.Leaf.Index+1, result.Accepted.Root); err != nil {
				log.Printf("Warning: failed to persist root: %v", err)
			}
		})
	}

	r := api.SetupRouter(reg, dbConn, wsHub)

	log.Printf("Engine running on :%s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
