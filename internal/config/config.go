package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// SourceType identifies how a configured source is read and chunked.
type SourceType string

const (
	SourceTypeSingleFile    SourceType = "single_file"
	SourceTypeMarkdownDir   SourceType = "markdown_dir"
	SourceTypeTranscriptDir SourceType = "transcript_dir"
)

// SourceSpec is one indexable source. Paths starting with s3:// are read from
// the configured bucket, with the remainder used as the key prefix.
type SourceSpec struct {
	Type  SourceType
	Label string
	Path  string
}

// IsS3 reports whether the source lives in object storage.
func (s SourceSpec) IsS3() bool {
	return strings.HasPrefix(s.Path, "s3://")
}

// S3Prefix returns the key prefix for an s3:// source path.
func (s SourceSpec) S3Prefix() string {
	return strings.TrimPrefix(s.Path, "s3://")
}

// SourceList parses MERRINO_SOURCES. Format: semicolon-separated entries of
// "type:label:path", e.g.
//
//	markdown_dir:notes:/home/me/notes;transcript_dir:transcript:/var/agent/sessions
type SourceList []SourceSpec

// Decode implements envconfig.Decoder.
func (sl *SourceList) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	var specs []SourceSpec
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("invalid source %q (want type:label:path)", entry)
		}

		spec := SourceSpec{
			Type:  SourceType(strings.TrimSpace(parts[0])),
			Label: strings.TrimSpace(parts[1]),
			Path:  strings.TrimSpace(parts[2]),
		}
		switch spec.Type {
		case SourceTypeSingleFile, SourceTypeMarkdownDir, SourceTypeTranscriptDir:
		default:
			return fmt.Errorf("invalid source type %q in %q", spec.Type, entry)
		}
		if spec.Label == "" || spec.Path == "" {
			return fmt.Errorf("source %q needs a label and a path", entry)
		}
		specs = append(specs, spec)
	}

	*sl = specs
	return nil
}

type Config struct {
	Port  string `envconfig:"PORT" default:"8900"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// CorpusID scopes every chunk this deployment reads and writes.
	CorpusID string `envconfig:"CORPUS_ID" default:"main"`

	// APIKey, when set, is required as a Bearer token on /api routes.
	APIKey string `envconfig:"API_KEY"`

	EmbedProvider string        `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedDim      int           `envconfig:"EMBED_DIM" default:"384"`
	EmbedTimeout  time.Duration `envconfig:"EMBED_TIMEOUT" default:"30s"`

	OllamaURL   string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel string `envconfig:"OLLAMA_MODEL" default:"nomic-embed-text"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_EMBED_MODEL" default:"text-embedding-3-small"`

	MarkdownMaxChars   int `envconfig:"MARKDOWN_MAX_CHARS" default:"800"`
	TranscriptMaxChars int `envconfig:"TRANSCRIPT_MAX_CHARS" default:"1000"`
	IngestMaxChars     int `envconfig:"INGEST_MAX_CHARS" default:"500"`

	Sources SourceList `envconfig:"SOURCES"`

	// IndexInterval > 0 schedules periodic incremental runs.
	IndexInterval time.Duration `envconfig:"INDEX_INTERVAL" default:"0"`
	// WatchSources enables fsnotify-triggered incremental runs for local dirs.
	WatchSources bool `envconfig:"WATCH_SOURCES" default:"false"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"merrino-memory"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MERRINO", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.EmbedProvider {
	case "ollama":
	case "openai":
		if !c.HasOpenAI() {
			return fmt.Errorf("embed provider is openai but OPENAI_API_KEY is not set")
		}
	default:
		return fmt.Errorf("invalid embed provider %q (want ollama or openai)", c.EmbedProvider)
	}

	if c.EmbedDim <= 0 {
		return fmt.Errorf("embed dim must be positive, got %d", c.EmbedDim)
	}

	for _, src := range c.Sources {
		if src.IsS3() && !c.HasS3() {
			return fmt.Errorf("source %q uses s3:// but S3 credentials are not configured", src.Label)
		}
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}
