package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Collab   CollabConfig
	SMTP     SMTPConfig
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
}

type DatabaseConfig struct {
	Connection string
}

// CollabConfig tunes the realtime core. Durations are parsed from
// seconds in the environment.
type CollabConfig struct {
	HeartbeatTimeout time.Duration
	DocGracePeriod   time.Duration
	AutosaveInterval time.Duration
	OutboundBuffer   int
	FlushRetryLimit  int
	FlushTopicName   string
	SaveRetryPeriod  time.Duration
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Collab: CollabConfig{
			HeartbeatTimeout: getEnvAsSeconds("COLLAB_HEARTBEAT_TIMEOUT_SECONDS", 30),
			DocGracePeriod:   getEnvAsSeconds("COLLAB_DOC_GRACE_SECONDS", 60),
			AutosaveInterval: getEnvAsSeconds("COLLAB_AUTOSAVE_SECONDS", 30),
			OutboundBuffer:   getEnvAsInt("COLLAB_OUTBOUND_BUFFER", 256),
			FlushRetryLimit:  getEnvAsInt("COLLAB_FLUSH_RETRY_LIMIT", 5),
			FlushTopicName:   getEnv("COLLAB_FLUSH_TOPIC_NAME", "FLUSH_DOCUMENT_SNAPSHOT"),
			SaveRetryPeriod:  getEnvAsSeconds("COLLAB_SAVE_RETRY_SECONDS", 30),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "AlgoCollab"),
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
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Second
}
