package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Storage struct {
		Backend             string
		ConversationBackend string
		SeedPath            string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Dynamo struct {
		Table string
	}
	Redis struct {
		URL string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		To         string
	}
	Telegram struct {
		BotToken  string
		ChatID    int64
		RateLimit int
	}
	API struct {
		Port     string
		BasePath string
	}
	Notification struct {
		QueueSize  int
		MaxWorkers int
		Channels   []string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Engagement struct {
		ConfigPath       string
		EvaluateInterval time.Duration
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Storage backends
	cfg.Storage.Backend = strings.ToLower(os.Getenv("STORAGE_BACKEND"))
	cfg.Storage.ConversationBackend = strings.ToLower(os.Getenv("CONVERSATION_BACKEND"))
	cfg.Storage.SeedPath = os.Getenv("STORAGE_SEED_PATH")

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	cfg.DB.DSN = os.Getenv("DB_DSN")
	cfg.Dynamo.Table = os.Getenv("DYNAMO_TABLE")
	cfg.Redis.URL = os.Getenv("REDIS_URL")

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.To = os.Getenv("EMAIL_TO")

	// Telegram settings
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = id
	}
	if rl, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Telegram.RateLimit = rl
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Notification worker settings
	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Notification.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Notification.MaxWorkers = mw
	}
	cfg.Notification.Channels = splitList(os.Getenv("NOTIFY_CHANNELS"))

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	cfg.Engagement.ConfigPath = os.Getenv("ENGAGEMENT_CONFIG")
	cfg.Engagement.EvaluateInterval = 15 * time.Minute
	if v := os.Getenv("EVALUATE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EVALUATE_INTERVAL %q: %w", v, err)
		}
		cfg.Engagement.EvaluateInterval = d
	}

	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendPostgres
	}
	if cfg.Storage.ConversationBackend == "" {
		cfg.Storage.ConversationBackend = cfg.Storage.Backend
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "conversation_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "engagement-service"
	}
	if cfg.Telegram.RateLimit == 0 {
		cfg.Telegram.RateLimit = 1
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":9191"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Notification.QueueSize == 0 {
		cfg.Notification.QueueSize = 500
	}
	if cfg.Notification.MaxWorkers == 0 {
		cfg.Notification.MaxWorkers = 10
	}
	if len(cfg.Notification.Channels) == 0 {
		cfg.Notification.Channels = []string{"websocket"}
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Engagement.ConfigPath == "" {
		cfg.Engagement.ConfigPath = "configs/engagement.yaml"
	}
}

func validate(cfg Config) error {
	switch cfg.Storage.Backend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	switch cfg.Storage.ConversationBackend {
	case BackendPostgres, BackendMemory, BackendDynamoDB:
	default:
		return fmt.Errorf("unsupported CONVERSATION_BACKEND %q", cfg.Storage.ConversationBackend)
	}

	// Validate required settings
	missing := []string{}
	if (cfg.Storage.Backend == BackendPostgres || cfg.Storage.ConversationBackend == BackendPostgres) && cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Storage.ConversationBackend == BackendDynamoDB && cfg.Dynamo.Table == "" {
		missing = append(missing, "DYNAMO_TABLE")
	}
	for _, ch := range cfg.Notification.Channels {
		switch ch {
		case "telegram":
			if cfg.Telegram.BotToken == "" {
				missing = append(missing, "TELEGRAM_BOT_TOKEN")
			}
			if cfg.Telegram.ChatID == 0 {
				missing = append(missing, "TELEGRAM_CHAT_ID")
			}
		case "email":
			if cfg.Email.SMTPServer == "" {
				missing = append(missing, "EMAIL_SMTP_SERVER")
			}
			if cfg.Email.To == "" {
				missing = append(missing, "EMAIL_TO")
			}
		case "websocket":
		default:
			return fmt.Errorf("unsupported notification channel %q", ch)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configurations: %v", missing)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
