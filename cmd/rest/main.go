package main

import (
	"context"
	"log"

	"algo-collab-be/internal/bootstrap"
	"algo-collab-be/internal/config"
	"algo-collab-be/internal/server"
	"algo-collab-be/internal/tracer"
	"algo-collab-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.Connect(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	// Note: In a larger app, we might use an errgroup or supervisor here
	ctx := context.Background()

	go container.PresenceTracker.Run(ctx)
	go container.DocumentStore.Run(ctx, cfg.Collab.AutosaveInterval)
	go container.SessionManager.Run(ctx, cfg.Collab.SaveRetryPeriod)

	go func() {
		log.Println("Background: Starting Snapshot Flush Worker...")
		if err := container.FlushWorkerService.Consume(ctx); err != nil {
			log.Printf("Background Flush Worker Error: %v", err)
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
