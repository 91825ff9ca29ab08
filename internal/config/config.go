package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

type Config struct {
	App
	PostgreSQL
	Storage
	OCR
	HTTP
}

type App struct {
	ExtractionWorkers int
	AnalysisWorkers   int
	RetryScanInterval time.Duration
	SweepInterval     time.Duration
	PolicyTimeout     time.Duration
}

type PostgreSQL struct {
	Host     string
	Port     string
	Username string
	Password string
	DBName   string
}

type Storage struct {
	Bucket          string
	CredentialsJSON string
}

type OCR struct {
	BaseURL      string
	APIKey       string
	MaxAttempts  int
	RetryBackoff time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
	FixtureDir   string
}

type HTTP struct {
	Host         string
	Port         string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func Load(cmd *cli.Command) *Config {
	return &Config{
		App: App{
			ExtractionWorkers: int(cmd.Int("extraction-workers")),
			AnalysisWorkers:   int(cmd.Int("analysis-workers")),
			RetryScanInterval: cmd.Duration("retry-scan-interval"),
			SweepInterval:     cmd.Duration("sweep-interval"),
			PolicyTimeout:     cmd.Duration("policy-timeout"),
		},
		PostgreSQL: PostgreSQL{
			Host:     cmd.String("pg-host"),
			Port:     cmd.String("pg-port"),
			Username: cmd.String("pg-username"),
			Password: cmd.String("pg-password"),
			DBName:   cmd.String("pg-dbname"),
		},
		Storage: Storage{
			Bucket:          cmd.String("storage-bucket"),
			CredentialsJSON: cmd.String("storage-credentials-json"),
		},
		OCR: OCR{
			BaseURL:      cmd.String("ocr-base-url"),
			APIKey:       cmd.String("ocr-api-key"),
			MaxAttempts:  int(cmd.Int("ocr-max-attempts")),
			RetryBackoff: cmd.Duration("ocr-retry-backoff"),
			PollInterval: cmd.Duration("ocr-poll-interval"),
			PollTimeout:  cmd.Duration("ocr-poll-timeout"),
			FixtureDir:   cmd.String("ocr-fixture-dir"),
		},
		HTTP: HTTP{
			Host:         cmd.String("http-host"),
			Port:         cmd.String("http-port"),
			IdleTimeout:  cmd.Duration("http-idle-timeout"),
			ReadTimeout:  cmd.Duration("http-read-timeout"),
			WriteTimeout: cmd.Duration("http-write-timeout"),
		},
	}
}
