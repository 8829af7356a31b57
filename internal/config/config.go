package config

import (
	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBHost string `env:"DB_HOST" envDefault:"localhost"`
	DBPort string `env:"DB_PORT" envDefault:"5432"`
	DBUser string `env:"DB_USER" envDefault:"postgres"`
	DBPass string `env:"DB_PASS"`
	DBName string `env:"DB_NAME" envDefault:"videogen"`

	JWTSecret string `env:"JWT_SECRET,required"`

	// Pipeline output
	OutputDir     string `env:"OUTPUT_DIR" envDefault:"static/videos"`
	VideoDuration int    `env:"VIDEO_DURATION" envDefault:"60"`

	// Text enhancement (OpenAI-compatible chat completions)
	LLMAPIKey  string `env:"LLM_API_KEY"`
	LLMBaseURL string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com"`
	LLMModel   string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	// ElevenLabs TTS
	ElevenLabsAPIKey  string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsBaseURL string `env:"ELEVENLABS_BASE_URL" envDefault:"https://api.elevenlabs.io"`
	DefaultVoice      string `env:"ELEVENLABS_VOICE" envDefault:"Rachel"`

	// Stability image generation
	ImageAPIKey  string `env:"STABILITY_API_KEY"`
	ImageBaseURL string `env:"STABILITY_BASE_URL" envDefault:"https://api.stability.ai"`
	ImageModel   string `env:"STABILITY_MODEL" envDefault:"stable-diffusion-xl-1024-v1-0"`

	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET" envDefault:"generated-videos"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

// Load reads .env (when present) and parses the config from the environment.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN builds the Postgres connection string for gorm.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPass +
		" dbname=" + c.DBName +
		" sslmode=disable"
}
