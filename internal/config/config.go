package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string

	// Database
	DatabaseURL string

	// Kafka
	KafkaBrokers       []string
	KafkaConsumerGroup string
	KafkaTopicStories  string
	KafkaTopicWebhooks string

	// S3/Storage
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3PublicURL string

	// Story generation (OpenAI-compatible chat completion endpoint)
	StoryAPIURL    string
	StoryAPIKey    string
	StoryModel     string
	StoryTimeout   time.Duration // generation is slow; minutes, not seconds
	MaxHeroLength  int
	MaxPlaceLength int

	// Image generation (async job API)
	ArtAPIURL        string // job submission endpoint
	ArtOperationsURL string // polling endpoint, job id is appended
	ArtModelURI      string
	ArtAspectWidth   int
	ArtAspectHeight  int
	ArtPollAttempts  int
	ArtPollInterval  time.Duration

	// Speech synthesis
	TTSAPIURL     string
	TTSLang       string
	TTSVoice      string
	TTSEmotion    string
	TTSFormat     string
	TTSSampleRate int
	FolderID      string
	FFmpegPath    string

	// Platform credential (external CLI)
	TokenCommand         string
	TokenCommandTimeout  time.Duration
	TokenRefreshInterval time.Duration

	// Quota
	DefaultQuotaChars  int64
	DefaultQuotaPeriod string

	// Webhook
	WebhookMaxRetries     int
	WebhookRetryBaseDelay time.Duration
	WebhookRetryMaxDelay  time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KafkaBrokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "skazka-worker-main"),
		KafkaTopicStories:  getEnv("KAFKA_TOPIC_STORIES", "skazka.stories.v1"),
		KafkaTopicWebhooks: getEnv("KAFKA_TOPIC_WEBHOOKS", "skazka.webhooks.v1"),

		S3Endpoint:  getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", "skazka-assets"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),

		StoryAPIURL:    getEnv("STORY_API_URL", "https://neuroapi.host/v1"),
		StoryAPIKey:    getEnv("STORY_API_KEY", ""),
		StoryModel:     getEnv("STORY_MODEL", "gemini-2.5-pro"),
		StoryTimeout:   getEnvDuration("STORY_TIMEOUT", 5*time.Minute),
		MaxHeroLength:  getEnvInt("MAX_HERO_LENGTH", 200),
		MaxPlaceLength: getEnvInt("MAX_PLACE_LENGTH", 200),

		ArtAPIURL:        getEnv("ART_API_URL", "https://llm.api.cloud.yandex.net/foundationModels/v1/imageGenerationAsync"),
		ArtOperationsURL: getEnv("ART_OPERATIONS_URL", "https://llm.api.cloud.yandex.net/operations/"),
		ArtModelURI:      getEnv("ART_MODEL_URI", ""),
		ArtAspectWidth:   getEnvInt("ART_ASPECT_WIDTH", 1),
		ArtAspectHeight:  getEnvInt("ART_ASPECT_HEIGHT", 1),
		ArtPollAttempts:  getEnvInt("ART_POLL_ATTEMPTS", 30),
		ArtPollInterval:  getEnvDuration("ART_POLL_INTERVAL", 10*time.Second),

		TTSAPIURL:     getEnv("TTS_API_URL", "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize"),
		TTSLang:       getEnv("TTS_LANG", "ru-RU"),
		TTSVoice:      getEnv("TTS_VOICE", "jane"),
		TTSEmotion:    getEnv("TTS_EMOTION", "good"),
		TTSFormat:     getEnv("TTS_FORMAT", "oggopus"),
		TTSSampleRate: getEnvInt("TTS_SAMPLE_RATE", 48000),
		FolderID:      getEnv("FOLDER_ID", ""),
		FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),

		TokenCommand:         getEnv("TOKEN_COMMAND", "yc iam create-token"),
		TokenCommandTimeout:  getEnvDuration("TOKEN_COMMAND_TIMEOUT", 20*time.Second),
		TokenRefreshInterval: getEnvDuration("TOKEN_REFRESH_INTERVAL", 24*time.Hour),

		DefaultQuotaChars:  int64(getEnvInt("DEFAULT_QUOTA_CHARS", 100000)),
		DefaultQuotaPeriod: getEnv("DEFAULT_QUOTA_PERIOD", "monthly"),

		WebhookMaxRetries:     getEnvInt("WEBHOOK_MAX_RETRIES", 10),
		WebhookRetryBaseDelay: getEnvDuration("WEBHOOK_RETRY_BASE_DELAY", 30*time.Second),
		WebhookRetryMaxDelay:  getEnvDuration("WEBHOOK_RETRY_MAX_DELAY", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
