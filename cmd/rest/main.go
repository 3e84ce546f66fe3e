package main

import (
	"context"
	"log"

	"ai-assistant-be/internal/bootstrap"
	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/server"
	"ai-assistant-be/internal/tracer"
	"ai-assistant-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	ctx := context.Background()
	go func() {
		log.Println("Background: Starting Vectorization Consumer...")
		if err := container.ConsumerService.Consume(ctx); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()
	container.UploadService.StartJanitor(ctx, 0)
	container.ProfileRefreshService.Start(ctx)

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
