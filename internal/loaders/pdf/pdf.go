// Package pdf extracts text from local PDF files for ingestion.
package pdf

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"cryptokb/internal/domain"
)

// pageSeparator joins the per-page texts so page boundaries survive into the
// stored content.
const pageSeparator = "\n\n--- page break ---\n\n"

type Loader struct {
	log *slog.Logger
}

func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{log: logger}
}

// Load reads the file and returns its text plus metadata. The source is the
// file name, not the full path, so a file keeps its identity when the
// directory moves. Pages with no extractable text are dropped.
func (l *Loader) Load(path string) (string, domain.Metadata, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", domain.Metadata{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			l.log.Warn("skipping unreadable pdf page", "file", path, "page", i, "error", err)
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			pages = append(pages, trimmed)
		}
	}
	if len(pages) == 0 {
		return "", domain.Metadata{}, fmt.Errorf("pdf %s has no extractable text", path)
	}

	meta := domain.Metadata{
		Source:    filepath.Base(path),
		Type:      domain.SourcePDF,
		Pages:     len(pages),
		Timestamp: time.Now(),
	}
	l.log.Info("pdf text extracted", "file", meta.Source, "pages", meta.Pages)
	return strings.Join(pages, pageSeparator), meta, nil
}
