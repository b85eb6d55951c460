package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Vision   VisionConfig
	STT      STTConfig
	TTS      TTSConfig
	Storage  StorageConfig
	Staging  StagingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	StaticDir    string
	MaxUploadMB  int
	RateLimitRPM int
	LogLevel     string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	GroqKey          string
	GroqBaseURL      string
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	FallbackProvider string
	MaxRetries       int
}

type VisionConfig struct {
	Provider     string // "groq", "openai", "anthropic" or "ollama"
	Model        string
	SystemPrompt string
}

type STTConfig struct {
	Backend      string // "openai" or "local"
	APIKey       string
	BaseURL      string
	Model        string
	Language     string
	LocalBaseURL string // default: "http://localhost:8178"
}

type TTSConfig struct {
	Primary         string // "elevenlabs" or "openai"
	Fallback        string // "gtts" or "piper"
	ElevenLabsKey   string
	ElevenLabsVoice string
	ElevenLabsModel string
	OpenAIKey       string
	OpenAIModel     string
	Language        string
	PiperBinPath    string
	PiperModel      string
	Playback        bool
}

type StorageConfig struct {
	Backend        string // "", "supabase" or "minio"
	Bucket         string
	SupabaseURL    string
	SupabaseKey    string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioRegion    string
	MinioUseSSL    bool
}

type StagingConfig struct {
	Dir         string
	ArtifactTTL time.Duration
}

// DefaultSystemPrompt is prepended to the patient's transcribed speech for every image analysis.
const DefaultSystemPrompt = `You have to act as a professional doctor specialist.
What's in the image? Do you find anything wrong with it medically?
If you make a differential, suggest some remedies for them. Do not add any numbers or special characters in your
response. Your response should be in one long paragraph. Also always answer as if you are answering to a real person.
Do not say 'In the image I see' but say 'With what I see or notice, I think you have ....'
Do not respond as an AI model in markdown, your answer should mimic that of an actual doctor not an AI bot.
Keep your answer concise (max 2 sentences). No preamble, start your answer right away please.`

func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	readTimeout, err := getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getEnvDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}

	maxUpload, err := getEnvInt("MAX_UPLOAD_MB", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}

	rateLimit, err := getEnvInt("RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPM: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	playback, err := getEnvBool("TTS_PLAYBACK", false)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_PLAYBACK: %w", err)
	}

	minioSSL, err := getEnvBool("MINIO_USE_SSL", true)
	if err != nil {
		return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
	}

	artifactTTL, err := getEnvDuration("ARTIFACT_TTL", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid ARTIFACT_TTL: %w", err)
	}

	groqKey := getEnv("GROQ_API_KEY", "")
	groqBaseURL := getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	openaiKey := getEnv("OPENAI_API_KEY", "")

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("HOST", "0.0.0.0"),
			Port:         port,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			StaticDir:    getEnv("STATIC_DIR", "dist"),
			MaxUploadMB:  maxUpload,
			RateLimitRPM: rateLimit,
			LogLevel:     getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			GroqKey:          groqKey,
			GroqBaseURL:      groqBaseURL,
			OpenAIKey:        openaiKey,
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("VISION_PROVIDER", "groq"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
		},
		Vision: VisionConfig{
			Provider:     getEnv("VISION_PROVIDER", "groq"),
			Model:        getEnv("VISION_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
			SystemPrompt: getEnv("VISION_SYSTEM_PROMPT", DefaultSystemPrompt),
		},
		STT: STTConfig{
			Backend:      getEnv("STT_BACKEND", "openai"),
			APIKey:       getEnv("STT_API_KEY", groqKey),
			BaseURL:      getEnv("STT_BASE_URL", groqBaseURL),
			Model:        getEnv("STT_MODEL", "whisper-large-v3-turbo"),
			Language:     getEnv("STT_LANGUAGE", "en"),
			LocalBaseURL: getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178"),
		},
		TTS: TTSConfig{
			Primary:         getEnv("TTS_PRIMARY", "elevenlabs"),
			Fallback:        getEnv("TTS_FALLBACK", "gtts"),
			ElevenLabsKey:   getEnv("ELEVENLABS_API_KEY", ""),
			ElevenLabsVoice: getEnv("ELEVENLABS_VOICE_ID", "FGY2WhTYpPnrIDTdsKH5"),
			ElevenLabsModel: getEnv("ELEVENLABS_MODEL_ID", "eleven_turbo_v2"),
			OpenAIKey:       openaiKey,
			OpenAIModel:     getEnv("TTS_OPENAI_MODEL", ""),
			Language:        getEnv("TTS_LANGUAGE", "en"),
			PiperBinPath:    getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			PiperModel:      getEnv("TTS_LOCAL_PIPER_MODEL", ""),
			Playback:        playback,
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(getEnv("STORAGE_BACKEND", "")),
			Bucket:         getEnv("STORAGE_BUCKET", "voice-responses"),
			SupabaseURL:    getEnv("SUPABASE_URL", ""),
			SupabaseKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinioRegion:    getEnv("MINIO_REGION", ""),
			MinioUseSSL:    minioSSL,
		},
		Staging: StagingConfig{
			Dir:         getEnv("STAGING_DIR", ""),
			ArtifactTTL: artifactTTL,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// VisionAPIKey returns the credential for the configured vision provider.
// Ollama runs locally and needs none, so its base URL stands in.
func (c *Config) VisionAPIKey() string {
	switch c.Vision.Provider {
	case "openai":
		return c.LLM.OpenAIKey
	case "anthropic":
		return c.LLM.AnthropicKey
	case "ollama":
		return c.LLM.OllamaURL
	default:
		return c.LLM.GroqKey
	}
}

// VisionKeyName is the env var an operator has to set for the configured vision provider.
func (c *Config) VisionKeyName() string {
	switch c.Vision.Provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "ollama":
		return "OLLAMA_URL"
	default:
		return "GROQ_API_KEY"
	}
}

// Validate reports settings that are inconsistent. A missing vision credential
// is not an error here: the server starts and /api/analyze reports it per request.
func (c *Config) Validate() error {
	var problems []string
	switch c.Vision.Provider {
	case "groq", "openai", "anthropic", "ollama":
	default:
		problems = append(problems, fmt.Sprintf("unknown VISION_PROVIDER %q", c.Vision.Provider))
	}
	switch c.STT.Backend {
	case "openai", "local":
	default:
		problems = append(problems, fmt.Sprintf("unknown STT_BACKEND %q", c.STT.Backend))
	}
	switch c.TTS.Primary {
	case "elevenlabs", "openai":
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_PRIMARY %q", c.TTS.Primary))
	}
	switch c.TTS.Fallback {
	case "gtts":
	case "piper":
		if c.TTS.PiperModel == "" {
			problems = append(problems, "TTS_LOCAL_PIPER_MODEL is required when TTS_FALLBACK=piper")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_FALLBACK %q", c.TTS.Fallback))
	}
	switch c.Storage.Backend {
	case "":
	case "supabase":
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_SERVICE_KEY are required when STORAGE_BACKEND=supabase")
		}
	case "minio":
		if c.Storage.MinioEndpoint == "" {
			problems = append(problems, "MINIO_ENDPOINT is required when STORAGE_BACKEND=minio")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if c.Storage.Backend != "" && c.Redis.Addr == "" {
		problems = append(problems, "REDIS_ADDR is required when STORAGE_BACKEND is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
