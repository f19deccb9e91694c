package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server       Server
	Agent        Agent
	Sync         Sync
	GeminiApiKey string
}

// Server configures the admin ingestion API.
type Server struct {
	Port          string
	DatabasePath  string
	RecordingsDir string
}

// Agent configures the candidate-device process.
type Agent struct {
	Port         string
	DatabasePath string
}

// Sync configures the background sync worker and transport client.
type Sync struct {
	ServerURL   string // default only; the persisted per-device setting wins
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	HTTPTimeout time.Duration
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_DATABASE_PATH", "admin.db")
	viper.SetDefault("SERVER_RECORDINGS_DIR", "recordings")
	viper.SetDefault("AGENT_PORT", "8090")
	viper.SetDefault("AGENT_DATABASE_PATH", "candidate.db")
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 30)
	viper.SetDefault("SYNC_BATCH_SIZE", 10)
	viper.SetDefault("SYNC_MAX_ATTEMPTS", 3)
	viper.SetDefault("SYNC_HTTP_TIMEOUT_SECONDS", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Server.DatabasePath = viper.GetString("SERVER_DATABASE_PATH")
	config.Server.RecordingsDir = viper.GetString("SERVER_RECORDINGS_DIR")

	config.Agent.Port = viper.GetString("AGENT_PORT")
	config.Agent.DatabasePath = viper.GetString("AGENT_DATABASE_PATH")

	config.Sync.ServerURL = viper.GetString("SYNC_SERVER_URL")
	config.Sync.Interval = time.Duration(viper.GetInt("SYNC_INTERVAL_SECONDS")) * time.Second
	config.Sync.BatchSize = viper.GetInt("SYNC_BATCH_SIZE")
	config.Sync.MaxAttempts = viper.GetInt("SYNC_MAX_ATTEMPTS")
	config.Sync.HTTPTimeout = time.Duration(viper.GetInt("SYNC_HTTP_TIMEOUT_SECONDS")) * time.Second

	config.GeminiApiKey = viper.GetString("GEMINI_API_KEY")

	log.Info().Interface("config", config).Msg("Config loaded")
	return &config, nil
}
