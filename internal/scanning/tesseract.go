package scanning

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements TextExtractor with a local tesseract installation
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a Tesseract extractor for the given languages (e.g. "eng")
func NewTesseract(languages ...string) (*Tesseract, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("setting tesseract language: %w", err)
		}
	}
	return &Tesseract{client: client}, nil
}

// ExtractText returns the recognized text of each page, in order
func (t *Tesseract) ExtractText(ctx context.Context, pages [][]byte) ([]string, error) {
	// gosseract clients are not safe for concurrent use
	t.mu.Lock()
	defer t.mu.Unlock()

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := t.client.SetImageFromBytes(page); err != nil {
			return nil, fmt.Errorf("loading page %d: %w", i+1, err)
		}
		text, err := t.client.Text()
		if err != nil {
			return nil, fmt.Errorf("recognizing page %d: %w", i+1, err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// Close releases the tesseract client
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
