package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Backend      BackendConfig
	Orchestrator OrchestratorConfig
	Ingest       IngestConfig
	Blob         BlobConfig
	Retrieval    RetrievalConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection string
}

// BackendConfig points at the remote generation service.
type BackendConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	HealthTTL   time.Duration
}

type OrchestratorConfig struct {
	MaxIterations int
	LoopTimeout   time.Duration
	BackoffUnit   time.Duration
	MaxLoopFails  int
	TitleWait     time.Duration
	HistoryTurns  int
	TitleMaxChars int
}

type IngestConfig struct {
	PerFileCap int64
	TotalCap   int64
	UploadTTL  time.Duration
}

type BlobConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type RetrievalConfig struct {
	Dimension      int
	ScoreThreshold float64
	TopK           int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Backend: BackendConfig{
			BaseURL:     getEnv("GEN_BACKEND_URL", "http://localhost:8080"),
			APIKey:      getEnv("GEN_BACKEND_API_KEY", ""),
			Timeout:     getEnvAsDuration("GEN_BACKEND_TIMEOUT", 120*time.Second),
			MaxAttempts: getEnvAsInt("GEN_BACKEND_MAX_ATTEMPTS", 3),
			RetryDelay:  getEnvAsDuration("GEN_BACKEND_RETRY_DELAY", 250*time.Millisecond),
			HealthTTL:   getEnvAsDuration("GEN_BACKEND_HEALTH_TTL", 60*time.Second),
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations: getEnvAsInt("ORCH_MAX_ITERATIONS", 5),
			LoopTimeout:   getEnvAsDuration("ORCH_LOOP_TIMEOUT", 120*time.Second),
			BackoffUnit:   getEnvAsDuration("ORCH_BACKOFF_UNIT", time.Second),
			MaxLoopFails:  getEnvAsInt("ORCH_MAX_LOOP_FAILS", 2),
			TitleWait:     getEnvAsDuration("ORCH_TITLE_WAIT", 5*time.Second),
			HistoryTurns:  getEnvAsInt("ORCH_HISTORY_TURNS", 10),
			TitleMaxChars: getEnvAsInt("ORCH_TITLE_MAX_CHARS", 50),
		},
		Ingest: IngestConfig{
			PerFileCap: getEnvAsInt64("UPLOAD_PER_FILE_CAP", 10*1024*1024),
			TotalCap:   getEnvAsInt64("UPLOAD_TOTAL_CAP", 25*1024*1024),
			UploadTTL:  getEnvAsDuration("UPLOAD_CORRELATION_TTL", time.Hour),
		},
		Blob: BlobConfig{
			Bucket:          getEnv("BLOB_BUCKET", "ai-assistant-attachments"),
			Region:          getEnv("BLOB_REGION", "us-east-1"),
			Endpoint:        getEnv("BLOB_ENDPOINT", ""),
			Prefix:          getEnv("BLOB_PREFIX", ""),
			AccessKeyID:     getEnv("BLOB_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BLOB_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvAsBool("BLOB_USE_PATH_STYLE", false),
		},
		Retrieval: RetrievalConfig{
			Dimension:      getEnvAsInt("EMBEDDING_DIMENSION", 256),
			ScoreThreshold: getEnvAsFloat("RETRIEVAL_SCORE_THRESHOLD", 0.35),
			TopK:           getEnvAsInt("RETRIEVAL_TOP_K", 5),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
