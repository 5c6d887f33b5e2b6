package embeddings

import "fmt"

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model is the embedding model to use.
	// Supported: BAAI/bge-small-en-v1.5 (default), BAAI/bge-base-en-v1.5,
	// sentence-transformers/all-MiniLM-L6-v2.
	Model string `koanf:"model"`

	// CacheDir is the directory to cache model files.
	CacheDir string `koanf:"cache_dir"`

	// MaxLength is the maximum input sequence length. Default: 512.
	MaxLength int `koanf:"max_length"`
}

// TextConfig selects and configures the text-space provider.
type TextConfig struct {
	// Provider is "tei" or "fastembed". Default: "tei".
	Provider string `koanf:"provider"`

	TEI       TEIConfig       `koanf:"tei"`
	FastEmbed FastEmbedConfig `koanf:"fastembed"`
}

// ApplyDefaults sets default values for unset fields.
func (c *TextConfig) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "tei"
	}
	c.TEI.ApplyDefaults()
	if c.FastEmbed.Model == "" {
		c.FastEmbed.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.FastEmbed.MaxLength == 0 {
		c.FastEmbed.MaxLength = 512
	}
}

// NewTextEmbedder creates a text-space embedder based on the configuration.
func NewTextEmbedder(cfg TextConfig) (TextEmbedder, error) {
	switch cfg.Provider {
	case "tei", "":
		return NewTEIEmbedder(cfg.TEI)
	case "fastembed":
		return NewFastEmbedProvider(cfg.FastEmbed)
	default:
		return nil, fmt.Errorf("%w: unknown text provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// NewImageEmbedder creates the image-space embedder. CLIP is the only
// implementation; the constructor exists to keep wiring symmetrical.
func NewImageEmbedder(cfg CLIPConfig) (ImageEmbedder, error) {
	return NewCLIPEmbedder(cfg)
}
