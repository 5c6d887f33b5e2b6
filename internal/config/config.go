// Package config provides configuration loading for verifyd.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/healthguardlabs/verifyd/internal/compose"
	"github.com/healthguardlabs/verifyd/internal/embeddings"
	"github.com/healthguardlabs/verifyd/internal/logging"
	"github.com/healthguardlabs/verifyd/internal/memory"
	"github.com/healthguardlabs/verifyd/internal/vectorstore"
	"github.com/healthguardlabs/verifyd/internal/verdict"
)

// ErrInvalidConfig indicates invalid service configuration.
var ErrInvalidConfig = errors.New("invalid config")

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	// Host is the bind address. Default: 0.0.0.0.
	Host string `koanf:"host"`

	// Port is the HTTP port. Default: 8000.
	Port int `koanf:"port"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// EmbeddingsConfig groups the two embedding spaces. Text-space and
// image-space vectors have different dimensionality and are never
// compared against each other.
type EmbeddingsConfig struct {
	Text  embeddings.TextConfig `koanf:"text"`
	Image embeddings.CLIPConfig `koanf:"image"`
}

// Config is the root configuration for verifyd.
type Config struct {
	Server     ServerConfig         `koanf:"server"`
	Logging    logging.Config       `koanf:"logging"`
	Store      vectorstore.Config   `koanf:"store"`
	Embeddings EmbeddingsConfig     `koanf:"embeddings"`
	Generator  compose.OpenAIConfig `koanf:"generator"`
	Memory     memory.Config        `koanf:"memory"`
	Verdict    verdict.Config       `koanf:"verdict"`
}

// ApplyDefaults sets default values for missing fields, recursing into
// every section.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	c.Logging.ApplyDefaults()
	c.Store.ApplyDefaults()
	c.Embeddings.Text.ApplyDefaults()
	c.Embeddings.Image.ApplyDefaults()
	c.Generator.ApplyDefaults()
	c.Memory.ApplyDefaults()
	c.Verdict.ApplyDefaults()
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
