package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/healthguardlabs/verifyd/internal/ingest"
)

var ingestVeracity string

// ingestCmd loads documents from a JSONL file
var ingestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl>",
	Short: "Ingest text or image documents from a JSONL file",
	Long: `Ingest documents from a JSON Lines file, one document per line.

Text documents use the TextDoc shape (doc_id, title, body, source,
date, topic, url). Image documents use the ImageDoc shape (img_id,
caption, source, date, topic, file_path) and are detected by the
presence of an img_id field.

Examples:
  # Ingest verified facts
  verifyctl ingest medical_facts.jsonl

  # Ingest known misinformation
  verifyctl ingest --veracity misinformation medical_misinfo.jsonl

  # Ingest image metadata
  verifyctl ingest medical_images.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestVeracity, "veracity", "fact", "veracity for text documents: fact or misinformation")
}

// IngestTextRequest matches internal/httpapi/server.go IngestTextRequest
type IngestTextRequest struct {
	Documents []ingest.TextDoc `json:"documents"`
	Veracity  string           `json:"veracity,omitempty"`
}

// IngestImageRequest matches internal/httpapi/server.go IngestImageRequest
type IngestImageRequest struct {
	Images []ingest.ImageDoc `json:"images"`
}

// IngestResponse matches internal/httpapi/server.go IngestResponse
type IngestResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	var (
		texts  []ingest.TextDoc
		images []ingest.ImageDoc
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		// Image docs are detected by their img_id field.
		var probe struct {
			ImgID string `json:"img_id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}

		if probe.ImgID != "" {
			var img ingest.ImageDoc
			if err := json.Unmarshal(raw, &img); err != nil {
				return fmt.Errorf("line %d: invalid image doc: %w", line, err)
			}
			images = append(images, img)
		} else {
			var doc ingest.TextDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("line %d: invalid text doc: %w", line, err)
			}
			texts = append(texts, doc)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	total := 0
	if len(texts) > 0 {
		var resp IngestResponse
		if err := postJSON("/api/v1/ingest/text", IngestTextRequest{Documents: texts, Veracity: ingestVeracity}, &resp); err != nil {
			return err
		}
		total += resp.Count
	}
	if len(images) > 0 {
		var resp IngestResponse
		if err := postJSON("/api/v1/ingest/images", IngestImageRequest{Images: images}, &resp); err != nil {
			return err
		}
		total += resp.Count
	}

	fmt.Printf("Ingested %d document(s)\n", total)
	return nil
}

// seedCmd loads the bundled starter corpus
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the bundled starter corpus",
	Long: `Load the bundled starter corpus of medical facts, known myths,
and reference image captions into the server.

Examples:
  verifyctl seed`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	var resp IngestResponse

	if err := postJSON("/api/v1/ingest/text", IngestTextRequest{Documents: ingest.SeedFacts()}, &resp); err != nil {
		return err
	}
	facts := resp.Count

	if err := postJSON("/api/v1/ingest/text", IngestTextRequest{Documents: ingest.SeedMyths(), Veracity: "misinformation"}, &resp); err != nil {
		return err
	}
	myths := resp.Count

	if err := postJSON("/api/v1/ingest/images", IngestImageRequest{Images: ingest.SeedImages()}, &resp); err != nil {
		return err
	}
	images := resp.Count

	fmt.Printf("Seeded %d facts, %d myths, %d images\n", facts, myths, images)
	return nil
}
