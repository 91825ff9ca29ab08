package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/apexlend/docpipeline/internal/app"
	"github.com/apexlend/docpipeline/internal/config"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func cmd() *cli.Command {
	return &cli.Command{
		Name:    "docpipeline",
		Usage:   "Document lifecycle and financial analysis pipeline",
		Version: version,
		Flags:   flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log, ok := ctx.Value(loggerKey{}).(*slog.Logger)
			if !ok {
				return errors.New("failed to get logger from context")
			}

			cfg := config.Load(cmd)

			return app.New(log, cfg).Run(ctx)
		},
	}
}

func flags() []cli.Flag {
	var config string

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Validator:   validateConfig,
			Usage:       "Load configuration from `FILE`",
			Destination: &config,
		},
		&cli.IntFlag{
			Name:    "extraction-workers",
			Usage:   "Set number of OCR extraction workers",
			Value:   4,
			Sources: cli.NewValueSourceChain(yaml.YAML("app.extraction_workers", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.IntFlag{
			Name:    "analysis-workers",
			Usage:   "Set number of analysis workers",
			Value:   2,
			Sources: cli.NewValueSourceChain(yaml.YAML("app.analysis_workers", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.DurationFlag{
			Name:    "retry-scan-interval",
			Usage:   "Set interval between extraction retry scans",
			Value:   30 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("app.retry_scan_interval", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Usage:   "Set interval between retention sweeps",
			Value:   1 * time.Hour,
			Sources: cli.NewValueSourceChain(yaml.YAML("app.sweep_interval", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.DurationFlag{
			Name:    "policy-timeout",
			Usage:   "Set per-policy timeout for a retention sweep",
			Value:   2 * time.Minute,
			Sources: cli.NewValueSourceChain(yaml.YAML("app.policy_timeout", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.StringFlag{
			Name:     "pg-host",
			Usage:    "Set PostgreSQL host",
			Value:    "localhost",
			Sources:  cli.NewValueSourceChain(yaml.YAML("postgresql.host", altsrc.NewStringPtrSourcer(&config))),
			Required: true,
		},
		&cli.StringFlag{
			Name:     "pg-port",
			Usage:    "Set PostgreSQL port",
			Value:    "5432",
			Sources:  cli.NewValueSourceChain(yaml.YAML("postgresql.port", altsrc.NewStringPtrSourcer(&config))),
			Required: true,
		},
		&cli.StringFlag{
			Name:     "pg-username",
			Usage:    "Set PostgreSQL username",
			Sources:  cli.NewValueSourceChain(yaml.YAML("postgresql.username", altsrc.NewStringPtrSourcer(&config))),
			Required: true,
		},
		&cli.StringFlag{
			Name:     "pg-password",
			Usage:    "Set PostgreSQL password",
			Sources:  cli.NewValueSourceChain(yaml.YAML("postgresql.password", altsrc.NewStringPtrSourcer(&config))),
			Required: true,
		},
		&cli.StringFlag{
			Name:     "pg-dbname",
			Usage:    "Set PostgreSQL database name",
			Value:    "docpipeline",
			Sources:  cli.NewValueSourceChain(yaml.YAML("postgresql.dbname", altsrc.NewStringPtrSourcer(&config))),
			Required: true,
		},
		&cli.StringFlag{
			Name:    "storage-bucket",
			Usage:   "Set object storage bucket, empty for in-memory store",
			Sources: cli.NewValueSourceChain(yaml.YAML("storage.bucket", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.StringFlag{
			Name:    "storage-credentials-json",
			Usage:   "Set object storage service account credentials JSON",
			Sources: cli.NewValueSourceChain(yaml.YAML("storage.credentials_json", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.StringFlag{
			Name:    "ocr-base-url",
			Usage:   "Set OCR provider base URL",
			Sources: cli.NewValueSourceChain(yaml.YAML("ocr.base_url", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.StringFlag{
			Name:    "ocr-api-key",
			Usage:   "Set OCR provider API key",
			Sources: cli.NewValueSourceChain(yaml.YAML("ocr.api_key", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.IntFlag{
			Name:    "ocr-max-attempts",
			Usage:   "Set maximum extraction attempts per document",
			Value:   5,
			Sources: cli.NewValueSourceChain(yaml.YAML("ocr.max_attempts", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.DurationFlag{
			Name:    "ocr-retry-backoff",
			Usage:   "Set base backoff between extraction attempts",
			Value:   5 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("ocr.retry_backoff", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.DurationFlag{
			Name:    "ocr-poll-interval",
			Usage:   "Set OCR job poll interval",
			Value:   2 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("ocr.poll_interval", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.DurationFlag{
			Name:    "ocr-poll-timeout",
			Usage:   "Set OCR job poll timeout",
			Value:   2 * time.Minute,
			Sources: cli.NewValueSourceChain(yaml.YAML("ocr.poll_timeout", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.StringFlag{
			Name:      "ocr-fixture-dir",
			Usage:     "Set directory with TSV statement fixtures, overrides the HTTP provider",
			Sources:   cli.NewValueSourceChain(yaml.YAML("ocr.fixture_dir", altsrc.NewStringPtrSourcer(&config))),
			Validator: validateDirectory,
		},
		&cli.StringFlag{
			Name:    "http-host",
			Usage:   "Set HTTP server host",
			Value:   "localhost",
			Sources: cli.NewValueSourceChain(yaml.YAML("http.host", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.StringFlag{
			Name:    "http-port",
			Usage:   "Set HTTP server port",
			Value:   "8080",
			Sources: cli.NewValueSourceChain(yaml.YAML("http.port", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.DurationFlag{
			Name:    "http-idle-timeout",
			Usage:   "Set HTTP server idle timeout",
			Value:   1 * time.Minute,
			Sources: cli.NewValueSourceChain(yaml.YAML("http.idle_timeout", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.DurationFlag{
			Name:    "http-read-timeout",
			Usage:   "Set HTTP server read timeout",
			Value:   15 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("http.read_timeout", altsrc.NewStringPtrSourcer(&config))),
		},
		&cli.DurationFlag{
			Name:    "http-write-timeout",
			Usage:   "Set HTTP server write timeout",
			Value:   15 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("http.write_timeout", altsrc.NewStringPtrSourcer(&config))),
		},
	}
}

func validateDirectory(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%q does not exist", dir)
		}
		return fmt.Errorf("failed to stat %q: %w", dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", dir)
	}

	return nil
}

func validateConfig(config string) error {
	info, err := os.Stat(config)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%q does not exist", config)
		}
		return fmt.Errorf("failed to stat %q: %w", config, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%q is a directory, not a file", config)
	}

	ext := filepath.Ext(info.Name())
	if ext != ".yml" && ext != ".yaml" {
		return fmt.Errorf("invalid extension %q", config)
	}

	return nil
}
