// Package ingest loads fact, misinformation, and image documents into
// their vector collections with deterministic point IDs, so re-running
// an ingest replaces documents instead of duplicating them.
package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors for document validation.
var (
	// ErrEmptyDocID indicates a document without an identifier.
	ErrEmptyDocID = errors.New("document ID cannot be empty")
	// ErrEmptyBody indicates a text document without a body.
	ErrEmptyBody = errors.New("document body cannot be empty")
	// ErrEmptyCaption indicates an image document without a caption.
	ErrEmptyCaption = errors.New("image caption cannot be empty")
)

// TextDoc is one fact or misinformation document.
type TextDoc struct {
	DocID  string `json:"doc_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Source string `json:"source"`
	Date   string `json:"date"`
	Topic  string `json:"topic"`
	URL    string `json:"url,omitempty"`
}

// Validate checks required fields.
func (d TextDoc) Validate() error {
	if d.DocID == "" {
		return ErrEmptyDocID
	}
	if d.Body == "" {
		return fmt.Errorf("%w: doc %s", ErrEmptyBody, d.DocID)
	}
	return nil
}

// payload renders the document for storage, tagged with its veracity.
func (d TextDoc) payload(veracity string) map[string]any {
	p := map[string]any{
		"doc_id":       d.DocID,
		"title":        d.Title,
		"body":         d.Body,
		"source":       d.Source,
		"date":         d.Date,
		"topic":        d.Topic,
		"content_type": "text",
		"veracity":     veracity,
	}
	if d.URL != "" {
		p["url"] = d.URL
	}
	return p
}

// ImageDoc is one reference image with its caption.
type ImageDoc struct {
	ImgID    string `json:"img_id"`
	Caption  string `json:"caption"`
	Source   string `json:"source"`
	Date     string `json:"date"`
	Topic    string `json:"topic"`
	FilePath string `json:"file_path,omitempty"`
}

// Validate checks required fields.
func (d ImageDoc) Validate() error {
	if d.ImgID == "" {
		return ErrEmptyDocID
	}
	if d.Caption == "" {
		return fmt.Errorf("%w: image %s", ErrEmptyCaption, d.ImgID)
	}
	return nil
}

func (d ImageDoc) payload() map[string]any {
	p := map[string]any{
		"img_id":       d.ImgID,
		"caption":      d.Caption,
		"source":       d.Source,
		"date":         d.Date,
		"topic":        d.Topic,
		"content_type": "image",
		"veracity":     "fact",
	}
	if d.FilePath != "" {
		p["file_path"] = d.FilePath
	}
	return p
}
