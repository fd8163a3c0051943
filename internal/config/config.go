package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultCoachID is the tenant used when a webhook carries no valid coach id.
const DefaultCoachID = "6abbc19a-ef88-4359-9dde-169d247f696f"

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	PublicBaseURL  string
	LogLevel       string
	DatabaseURL    string
	DefaultCoachID string
	DefaultSource  string

	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	KnowledgeCacheTTL time.Duration

	// LLM configuration
	LLMProvider      string
	LLMGatewayURL    string
	LLMGatewayAPIKey string
	LLMModel         string
	ClassifierModel  string
	GeminiAPIKey     string
	GeminiModel      string
	BedrockModelID   string

	// AWS configuration
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Ingestion
	UseMemoryQueue     bool
	WorkerCount        int
	IngestionQueueURL  string
	IngestionJobsTable string
	IngestionBatchSize int
	FetchTimeout       time.Duration

	// Provisioning / auth
	AdminJWTSecret     string
	IdentityURL        string
	IdentityAnonKey    string
	IdentityServiceKey string

	// Email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	// Instagram native channel
	InstagramPageAccessToken string
	InstagramAppSecret       string
	InstagramVerifyToken     string
	InstagramCoachMapJSON    string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DefaultCoachID: getEnv("DEFAULT_COACH_ID", DefaultCoachID),
		DefaultSource:  getEnv("DEFAULT_SOURCE", "manychat"),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		KnowledgeCacheTTL: getEnvAsDuration("KNOWLEDGE_CACHE_TTL", 10*time.Minute),

		LLMProvider:      strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gateway"))),
		LLMGatewayURL:    getEnv("LLM_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"),
		LLMGatewayAPIKey: getEnv("LLM_GATEWAY_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL", "google/gemini-2.5-flash"),
		ClassifierModel:  getEnv("CLASSIFIER_MODEL", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		UseMemoryQueue:     getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),
		IngestionQueueURL:  getEnv("INGESTION_QUEUE_URL", ""),
		IngestionJobsTable: getEnv("INGESTION_JOBS_TABLE", "ingestion_jobs"),
		IngestionBatchSize: getEnvAsInt("INGESTION_BATCH_SIZE", 20),
		FetchTimeout:       getEnvAsDuration("INGESTION_FETCH_TIMEOUT", 60*time.Second),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		IdentityURL:        strings.TrimRight(getEnv("IDENTITY_URL", ""), "/"),
		IdentityAnonKey:    getEnv("IDENTITY_ANON_KEY", ""),
		IdentityServiceKey: getEnv("IDENTITY_SERVICE_KEY", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "AgentX"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		InstagramPageAccessToken: getEnv("INSTAGRAM_PAGE_ACCESS_TOKEN", ""),
		InstagramAppSecret:       getEnv("INSTAGRAM_APP_SECRET", ""),
		InstagramVerifyToken:     getEnv("INSTAGRAM_VERIFY_TOKEN", ""),
		InstagramCoachMapJSON:    getEnv("INSTAGRAM_COACH_MAP_JSON", ""),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 30),
	}
}

// InstagramCoachMap decodes INSTAGRAM_COACH_MAP_JSON ({"<page id>": "<coach id>"}).
// Invalid JSON yields an empty map.
func (c *Config) InstagramCoachMap() map[string]string {
	out := map[string]string{}
	raw := strings.TrimSpace(c.InstagramCoachMapJSON)
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]string{}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
