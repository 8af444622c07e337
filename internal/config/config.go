package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// DataDir holds the database, audio, exports and logs. Empty means
	// ~/.voicememo.
	DataDir      string `env:"DATA_DIR"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"` // file, sqlite or postgres
	DatabaseURL  string `env:"DATABASE_URL"`

	AudioDir   string `env:"AUDIO_DIR"`
	CaptureDir string `env:"CAPTURE_DIR"`
	ExportDir  string `env:"EXPORT_DIR"`
	ImportDir  string `env:"IMPORT_DIR"`

	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	TranscribeModel    string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	TranscribeLanguage string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"en"`
	TranscribeTimeout  time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"120s"`
	EnhanceModel       string        `env:"ENHANCE_MODEL" envDefault:"gpt-3.5-turbo"`
	UseMock            bool          `env:"USE_MOCK_TRANSCRIPTION"`

	ImportWorkers   int `env:"IMPORT_WORKERS" envDefault:"2"`
	ImportQueueSize int `env:"IMPORT_QUEUE_SIZE" envDefault:"100"`

	S3   S3Config   `envPrefix:"S3_"`
	MQTT MQTTConfig `envPrefix:"MQTT_"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"180s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxUploadMB  int64         `env:"MAX_UPLOAD_MB" envDefault:"100"`

	AuthToken   string   `env:"AUTH_TOKEN"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string   `env:"LOG_FILE"`
}

// S3Config configures the optional S3 backup of audio files.
type S3Config struct {
	Bucket        string        `env:"BUCKET"`
	Endpoint      string        `env:"ENDPOINT"`
	Region        string        `env:"REGION" envDefault:"us-east-1"`
	AccessKey     string        `env:"ACCESS_KEY"`
	SecretKey     string        `env:"SECRET_KEY"`
	Prefix        string        `env:"PREFIX"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
	// LocalCache keeps the local copy as primary and uses S3 as backup.
	LocalCache      bool `env:"LOCAL_CACHE" envDefault:"true"`
	UploadWorkers   int  `env:"UPLOAD_WORKERS" envDefault:"2"`
	UploadQueueSize int  `env:"UPLOAD_QUEUE_SIZE" envDefault:"64"`
}

// Enabled reports whether a bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// MQTTConfig configures the optional change-event publisher.
type MQTTConfig struct {
	BrokerURL   string `env:"BROKER_URL"`
	ClientID    string `env:"CLIENT_ID" envDefault:"voicememo"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	TopicPrefix string `env:"TOPIC_PREFIX" envDefault:"voicememo"`
}

// Enabled reports whether a broker is configured.
func (c MQTTConfig) Enabled() bool { return c.BrokerURL != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile      string
	HTTPAddr     string
	LogLevel     string
	DataDir      string
	StoreBackend string
	DatabaseURL  string
	ImportDir    string
	Mock         bool
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DataDir != "" {
		cfg.DataDir = overrides.DataDir
	}
	if overrides.StoreBackend != "" {
		cfg.StoreBackend = overrides.StoreBackend
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.ImportDir != "" {
		cfg.ImportDir = overrides.ImportDir
	}
	if overrides.Mock {
		cfg.UseMock = true
	}

	cfg.resolveDirs()
	return cfg, nil
}

// resolveDirs fills unset directories under DataDir.
func (c *Config) resolveDirs() {
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".voicememo")
		} else {
			c.DataDir = ".voicememo"
		}
	}
	under := func(p *string, name string) {
		if *p == "" {
			*p = filepath.Join(c.DataDir, name)
		}
	}
	under(&c.AudioDir, "audio")
	under(&c.CaptureDir, "captures")
	under(&c.ExportDir, "exports")
	under(&c.LogFile, "voicememo.log")
}

// SQLitePath is the database file used by the sqlite store backend.
func (c *Config) SQLitePath() string { return filepath.Join(c.DataDir, "voicememo.sqlite") }

// KVDir is the directory used by the file store backend.
func (c *Config) KVDir() string { return filepath.Join(c.DataDir, "store") }
