package compose

import (
	"context"

	"go.uber.org/zap"

	"github.com/healthguardlabs/verifyd/internal/observability"
)

// Composer produces the final answer string for a verdict.
//
// With no generator configured, Compose returns the deterministic
// fallback text untouched. With a generator, it requests grounded prose
// and falls back on any failure. Compose never returns an empty string.
type Composer struct {
	generator Generator
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewComposer creates a composer. The generator may be nil, in which
// case Compose always returns the fallback text.
func NewComposer(generator Generator, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{generator: generator, logger: logger}
}

// SetMetrics attaches Prometheus instruments. Metrics may be nil.
func (c *Composer) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// Compose returns the final answer for the given verdict.
//
// Generator errors are caught here and never propagate: the verdict
// pipeline must complete with user-visible output regardless of external
// service health.
func (c *Composer) Compose(ctx context.Context, query, verdict, fallbackText string, evidence []Evidence) string {
	if c.generator == nil {
		return nonEmpty(fallbackText, verdict)
	}

	answer, err := c.generator.Generate(ctx, query, verdict, evidence)
	if err != nil {
		c.logger.Warn("generator failed, using rule-based answer",
			zap.String("verdict", verdict),
			zap.Error(err))
		c.metrics.IncGeneratorFallback()
		return nonEmpty(fallbackText, verdict)
	}
	return answer
}

// nonEmpty guarantees a usable answer when the fallback itself is blank.
func nonEmpty(fallbackText, verdict string) string {
	if fallbackText != "" {
		return fallbackText
	}
	switch verdict {
	case "True":
		return "**Confirmed**: Based on trusted medical data, this appears to be true."
	case "False":
		return "**Debunked**: This claim is contradicted by medical evidence."
	case "Misleading":
		return "This claim is misleading based on available medical evidence."
	default:
		return "I could not verify this claim in my current knowledge base."
	}
}
