package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthguardlabs/verifyd/internal/embeddings"
	"github.com/healthguardlabs/verifyd/internal/memory"
	"github.com/healthguardlabs/verifyd/internal/vectorstore"
	"github.com/healthguardlabs/verifyd/internal/verdict"
)

// Service ingests documents into the evidence collections.
type Service struct {
	vectors vectorstore.Store
	text    embeddings.TextEmbedder
	image   embeddings.ImageEmbedder
	config  verdict.Config
	memory  memory.Config
	logger  *zap.Logger
}

// NewService creates an ingestion service. The collection names come
// from the verdict and memory configs so ingest and query always agree.
func NewService(
	vectors vectorstore.Store,
	text embeddings.TextEmbedder,
	image embeddings.ImageEmbedder,
	verdictCfg verdict.Config,
	memoryCfg memory.Config,
	logger *zap.Logger,
) (*Service, error) {
	if vectors == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if text == nil {
		return nil, fmt.Errorf("text embedder cannot be nil")
	}
	if image == nil {
		return nil, fmt.Errorf("image embedder cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	verdictCfg.ApplyDefaults()
	memoryCfg.ApplyDefaults()

	return &Service{
		vectors: vectors,
		text:    text,
		image:   image,
		config:  verdictCfg,
		memory:  memoryCfg,
		logger:  logger,
	}, nil
}

// EnsureCollections creates the four collections if absent. Facts,
// misinformation, and memory share the text dimension; images use the
// image-space dimension.
func (s *Service) EnsureCollections(ctx context.Context) error {
	textDim := s.text.Dimension()
	imageDim := s.image.Dimension()

	for _, c := range []struct {
		name string
		dim  int
	}{
		{s.config.FactsCollection, textDim},
		{s.config.MisinfoCollection, textDim},
		{s.config.ImagesCollection, imageDim},
		{s.memory.Collection, textDim},
	} {
		if err := s.vectors.EnsureCollection(ctx, c.name, c.dim); err != nil {
			return fmt.Errorf("ensuring collection %s: %w", c.name, err)
		}
	}
	return nil
}

// IngestFacts loads verified facts. Returns the number of documents
// stored; a document that fails validation or embedding is skipped and
// logged, not fatal.
func (s *Service) IngestFacts(ctx context.Context, docs []TextDoc) (int, error) {
	return s.ingestText(ctx, s.config.FactsCollection, "fact", docs)
}

// IngestMyths loads known misinformation. Knowing what is fake matters
// as much as knowing what is real.
func (s *Service) IngestMyths(ctx context.Context, docs []TextDoc) (int, error) {
	return s.ingestText(ctx, s.config.MisinfoCollection, "misinformation", docs)
}

func (s *Service) ingestText(ctx context.Context, collection, veracity string, docs []TextDoc) (int, error) {
	points := make([]vectorstore.Point, 0, len(docs))
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			s.logger.Warn("skipping invalid document", zap.Error(err))
			continue
		}
		vector, err := s.text.EmbedText(ctx, doc.Body)
		if err != nil {
			s.logger.Warn("skipping document: embedding failed",
				zap.String("doc_id", doc.DocID),
				zap.Error(err))
			continue
		}
		points = append(points, vectorstore.Point{
			ID:      PointID(doc.DocID),
			Vector:  vector,
			Payload: doc.payload(veracity),
		})
	}

	if len(points) == 0 {
		return 0, nil
	}
	if err := s.vectors.Upsert(ctx, collection, points); err != nil {
		return 0, fmt.Errorf("upserting into %s: %w", collection, err)
	}

	s.logger.Info("ingested documents",
		zap.String("collection", collection),
		zap.Int("count", len(points)))
	return len(points), nil
}

// IngestImages loads reference imagery. Images with a readable file are
// embedded from pixels; otherwise the caption is embedded into the same
// image space, so caption-only metadata still becomes searchable.
// Missing files and embedding failures skip the single image.
func (s *Service) IngestImages(ctx context.Context, docs []ImageDoc) (int, error) {
	points := make([]vectorstore.Point, 0, len(docs))
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			s.logger.Warn("skipping invalid image", zap.Error(err))
			continue
		}

		vector, err := s.embedImageDoc(ctx, doc)
		if err != nil {
			s.logger.Warn("skipping image: embedding failed",
				zap.String("img_id", doc.ImgID),
				zap.Error(err))
			continue
		}
		points = append(points, vectorstore.Point{
			ID:      PointID(doc.ImgID),
			Vector:  vector,
			Payload: doc.payload(),
		})
	}

	if len(points) == 0 {
		return 0, nil
	}
	if err := s.vectors.Upsert(ctx, s.config.ImagesCollection, points); err != nil {
		return 0, fmt.Errorf("upserting into %s: %w", s.config.ImagesCollection, err)
	}

	s.logger.Info("ingested images",
		zap.String("collection", s.config.ImagesCollection),
		zap.Int("count", len(points)))
	return len(points), nil
}

func (s *Service) embedImageDoc(ctx context.Context, doc ImageDoc) (embeddings.ImageVector, error) {
	if doc.FilePath != "" {
		if _, err := os.Stat(doc.FilePath); err == nil {
			return s.image.EmbedImage(ctx, doc.FilePath)
		}
		s.logger.Warn("image file not found, embedding caption instead",
			zap.String("img_id", doc.ImgID),
			zap.String("file_path", doc.FilePath))
	}
	return s.image.EmbedTextForImageSpace(ctx, doc.Caption)
}

// Seed loads the bundled starter corpus into all collections.
func (s *Service) Seed(ctx context.Context) (facts, myths, images int, err error) {
	if err = s.EnsureCollections(ctx); err != nil {
		return 0, 0, 0, err
	}
	if facts, err = s.IngestFacts(ctx, SeedFacts()); err != nil {
		return facts, 0, 0, err
	}
	if myths, err = s.IngestMyths(ctx, SeedMyths()); err != nil {
		return facts, myths, 0, err
	}
	if images, err = s.IngestImages(ctx, SeedImages()); err != nil {
		return facts, myths, images, err
	}
	return facts, myths, images, nil
}

// PointID derives the stable point ID for a document identifier.
// Name-based UUIDs make ingestion idempotent: re-ingesting a document
// overwrites the previous point.
func PointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(docID)).String()
}
