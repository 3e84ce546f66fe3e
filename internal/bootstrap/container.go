package bootstrap

import (
	"context"
	"encoding/json"
	"log"

	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/controller"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/blob"
	"ai-assistant-be/pkg/contextbuilder"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/embedding/local"
	"ai-assistant-be/pkg/genclient"
	"ai-assistant-be/pkg/ingest"
	"ai-assistant-be/pkg/orchestrator"
	"ai-assistant-be/pkg/retrieval"
	"ai-assistant-be/pkg/tooling"

	pktNats "ai-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController   controller.IChatController
	UploadController controller.IUploadController

	// Background Services (Exposed for main.go to run)
	ConsumerService       service.IConsumerService
	UploadService         service.IUploadService
	ProfileRefreshService service.IProfileRefreshService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS telemetry (optional, requests proceed without it)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 3. Generation backend client
	backend := genclient.NewClient(genclient.Config{
		BaseURL:     cfg.Backend.BaseURL,
		APIKey:      cfg.Backend.APIKey,
		Timeout:     cfg.Backend.Timeout,
		MaxAttempts: cfg.Backend.MaxAttempts,
		RetryDelay:  cfg.Backend.RetryDelay,
		HealthTTL:   cfg.Backend.HealthTTL,
	}, sysLogger)

	// Embeddings: remote model first, deterministic local fallback so
	// ingestion and retrieval survive backend outages.
	embeddingProvider := embedding.NewFailoverProvider(
		embedding.NewRemoteProvider(backend),
		local.NewEmbedder(cfg.Retrieval.Dimension),
		sysLogger,
	)

	retrievalEngine := retrieval.NewEngine(embeddingProvider, retrieval.Config{
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
		TopK:           cfg.Retrieval.TopK,
		Dimension:      cfg.Retrieval.Dimension,
	}, sysLogger)

	contextBuilder := contextbuilder.NewBuilder(retrievalEngine, sysLogger)

	// 4. Blob storage + ingestion
	blobStore, err := blob.NewS3Store(context.Background(), blob.S3Config{
		Bucket:          cfg.Blob.Bucket,
		Region:          cfg.Blob.Region,
		Endpoint:        cfg.Blob.Endpoint,
		Prefix:          cfg.Blob.Prefix,
		AccessKeyID:     cfg.Blob.AccessKeyID,
		SecretAccessKey: cfg.Blob.SecretAccessKey,
		UsePathStyle:    cfg.Blob.UsePathStyle,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize blob storage: %v", err)
	}

	uploader := ingest.NewUploader(blobStore, sysLogger, cfg.Ingest.PerFileCap, cfg.Ingest.TotalCap)
	vectorizer := ingest.NewVectorizer(blobStore, embeddingProvider, uowFactory, sysLogger, cfg.Retrieval.Dimension)

	// 5. Tools
	planTool := tooling.NewPlanTool(uowFactory, sysLogger)
	debateTool := tooling.NewDebateTool(backend, sysLogger)
	dispatcher := tooling.NewDispatcher(backend, sysLogger, planTool, debateTool)

	// The backend marks plan mutations with the local signal so the
	// authoritative plan state stays in our database.
	backend.RegisterLocalHandler(constant.ToolNamePlan, func(ctx context.Context, payload string) (string, error) {
		var envelope struct {
			UserId        uuid.UUID       `json:"user_id"`
			SessionId     uuid.UUID       `json:"session_id"`
			MemoryEnabled bool            `json:"memory_enabled"`
			Input         json.RawMessage `json:"input"`
		}
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			return "", err
		}
		inv := tooling.Invocation{
			UserId:        envelope.UserId,
			SessionId:     envelope.SessionId,
			MemoryEnabled: envelope.MemoryEnabled,
		}
		return planTool.Execute(ctx, inv, string(envelope.Input), func(string) {})
	})

	// 6. Services
	publisherService := service.NewPublisherService(pubSub)
	consumerService := service.NewConsumerService(pubSub, uowFactory, vectorizer, sysLogger)

	var telemetry orchestrator.TelemetrySink
	if natsPub != nil {
		telemetry = natsPub
	}

	processor := orchestrator.NewProcessor(
		uowFactory,
		backend,
		contextBuilder,
		dispatcher,
		uploader,
		publisherService,
		telemetry,
		sysLogger,
		orchestrator.Config{
			MaxIterations: cfg.Orchestrator.MaxIterations,
			LoopTimeout:   cfg.Orchestrator.LoopTimeout,
			BackoffUnit:   cfg.Orchestrator.BackoffUnit,
			MaxLoopFails:  cfg.Orchestrator.MaxLoopFails,
			TitleWait:     cfg.Orchestrator.TitleWait,
			HistoryTurns:  cfg.Orchestrator.HistoryTurns,
			TitleMaxChars: cfg.Orchestrator.TitleMaxChars,
		},
	)

	chatService := service.NewChatService(uowFactory, processor, backend, sysLogger)
	uploadService := service.NewUploadService(uowFactory, uploader, blobStore, rdb, sysLogger, cfg.Ingest.UploadTTL)
	profileRefreshService := service.NewProfileRefreshService(uowFactory, backend, sysLogger)

	// Telemetry audit trail keeps its own log file.
	if natsSub != nil {
		auditLogger := logger.NewIsolatedLogger("logs/telemetry.log")
		auditService := service.NewTelemetryAuditService(natsSub, auditLogger)
		if err := auditService.Start(); err != nil {
			log.Printf("[WARN] Failed to start telemetry audit consumer: %v", err)
		}
	}

	// 7. Controllers
	return &Container{
		ChatController:   controller.NewChatController(chatService, sysLogger),
		UploadController: controller.NewUploadController(uploadService),

		ConsumerService:       consumerService,
		UploadService:         uploadService,
		ProfileRefreshService: profileRefreshService,
	}
}
