package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend identifies a vector store implementation.
type Backend string

const (
	// BackendQdrant uses an external Qdrant server over gRPC.
	BackendQdrant Backend = "qdrant"

	// BackendChromem uses the embedded chromem-go database.
	BackendChromem Backend = "chromem"
)

// Config selects and configures the store backend.
type Config struct {
	// Backend is "qdrant" or "chromem". Default: "qdrant".
	Backend Backend `koanf:"backend"`

	Qdrant  QdrantConfig  `koanf:"qdrant"`
	Chromem ChromemConfig `koanf:"chromem"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendQdrant
	}
	c.Qdrant.ApplyDefaults()
}

// Validate validates the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendQdrant:
		return c.Qdrant.Validate()
	case BackendChromem, "":
		return nil
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
}

// New creates a Store for the configured backend.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendQdrant, "":
		return NewQdrantStore(cfg.Qdrant)
	case BackendChromem:
		return NewChromemStore(cfg.Chromem, logger)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}
