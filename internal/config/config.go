package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingCredential = errors.New("missing required credential")
	ErrInvalidConfig     = errors.New("invalid config")
)

type Config struct {
	Server       ServerConfig   `yaml:"server"`
	Store        StoreConfig    `yaml:"store"`
	Database     DatabaseConfig `yaml:"database"`
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	VisionLLM    LLMConfig      `yaml:"vision_llm"`
	RAG          RAGConfig      `yaml:"rag"`
	Backoff      BackoffConfig  `yaml:"backoff"`
	Log          LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr          string   `yaml:"addr"`
	StaticDir     string   `yaml:"static_dir"`
	StaticBaseURL string   `yaml:"static_base_url"`
	AllowOrigins  []string `yaml:"allow_origins"`
}

// StoreConfig selects the vector store backend: "chromem" or "pgvector".
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
	Compress   bool   `yaml:"compress"`
}

// DatabaseConfig is used by the pgvector store. Driver is "pgdriver" or "pq".
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"`
	Debug    bool   `yaml:"debug"`
}

// LLMConfig describes one model endpoint. Provider is "openai", "ollama"
// or "openrouter" (any OpenAI compatible endpoint).
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	Dimensions  int     `yaml:"dimensions"`
	Temperature float64 `yaml:"temperature"`
}

type RAGConfig struct {
	ChunkSize         int           `yaml:"chunk_size"`
	ChunkOverlap      int           `yaml:"chunk_overlap"`
	TopK              int           `yaml:"top_k"`
	Alpha             float64       `yaml:"alpha"`
	FiguresEnabled    bool          `yaml:"figures_enabled"`
	MaxFiguresPerPage int           `yaml:"max_figures_per_page"`
	MaxFigureDim      int           `yaml:"max_figure_dim"`
	Captions          bool          `yaml:"captions"`
	CaptionDelay      time.Duration `yaml:"caption_delay"`
	FigureDir         string        `yaml:"figure_dir"`
	FigureURLPrefix   string        `yaml:"figure_url_prefix"`
}

type BackoffConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns the configuration used when a field is absent from the file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8000",
			StaticDir:     "./static",
			StaticBaseURL: "http://localhost:8000",
		},
		Store: StoreConfig{
			Driver:     "chromem",
			Path:       "./chromemdb",
			Collection: "LectureChunk",
		},
		Database: DatabaseConfig{
			Driver: "pgdriver",
		},
		EmbedLLM: LLMConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		InferenceLLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		RAG: RAGConfig{
			ChunkSize:         500,
			ChunkOverlap:      50,
			TopK:              6,
			Alpha:             0.5,
			FiguresEnabled:    true,
			MaxFiguresPerPage: 1,
			MaxFigureDim:      1600,
			CaptionDelay:      time.Second,
			FigureDir:         "./static/figures",
			FigureURLPrefix:   "/static/figures",
		},
		Backoff: BackoffConfig{
			MaxRetries: 6,
			BaseDelay:  time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// LoadConfig reads the YAML file at path on top of Default, then applies the
// .env file (if envPath exists) and environment overrides, and validates the
// result. An empty path skips the YAML file.
func LoadConfig(path, envPath string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	cfg.applyEnv()

	// vision falls back to the inference model
	if cfg.VisionLLM.Provider == "" {
		cfg.VisionLLM = cfg.InferenceLLM
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for _, llm := range []*LLMConfig{&c.EmbedLLM, &c.InferenceLLM, &c.VisionLLM} {
			if llm.Key == "" && (llm.Provider == "openai" || llm.Provider == "") {
				llm.Key = key
			}
		}
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.InferenceLLM.Model = model
	}
	if url := os.Getenv("STATIC_BASE_URL"); url != "" {
		c.Server.StaticBaseURL = url
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// Validate reports configuration errors that must stop the process before it
// starts serving or indexing.
func (c *Config) Validate() error {
	llms := map[string]LLMConfig{"embed_llm": c.EmbedLLM, "inference_llm": c.InferenceLLM}
	if c.RAG.Captions {
		llms["vision_llm"] = c.VisionLLM
	}
	for name, llm := range llms {
		switch strings.ToLower(llm.Provider) {
		case "openai":
			if llm.Key == "" {
				return fmt.Errorf("%w: %s.key (or OPENAI_API_KEY)", ErrMissingCredential, name)
			}
		case "openrouter":
			if llm.Key == "" {
				return fmt.Errorf("%w: %s.key", ErrMissingCredential, name)
			}
			if llm.BaseURL == "" {
				return fmt.Errorf("%w: %s.base_url is required for openrouter", ErrInvalidConfig, name)
			}
		case "ollama":
		default:
			return fmt.Errorf("%w: %s.provider %q", ErrInvalidConfig, name, llm.Provider)
		}
		if llm.Model == "" {
			return fmt.Errorf("%w: %s.model", ErrInvalidConfig, name)
		}
	}

	switch c.Store.Driver {
	case "chromem":
		if !c.Store.InMemory && c.Store.Path == "" {
			return fmt.Errorf("%w: store.path", ErrInvalidConfig)
		}
	case "pgvector":
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn (or DATABASE_URL)", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("%w: store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("%w: store.collection", ErrInvalidConfig)
	}

	if c.RAG.ChunkSize <= 0 || c.RAG.ChunkOverlap < 0 {
		return fmt.Errorf("%w: rag.chunk_size must be > 0 and rag.chunk_overlap >= 0", ErrInvalidConfig)
	}
	if c.RAG.Alpha < 0 || c.RAG.Alpha > 1 {
		return fmt.Errorf("%w: rag.alpha must be within [0, 1]", ErrInvalidConfig)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("%w: rag.top_k must be > 0", ErrInvalidConfig)
	}
	if c.Backoff.MaxRetries < 0 {
		return fmt.Errorf("%w: backoff.max_retries must be >= 0", ErrInvalidConfig)
	}
	return nil
}
