package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/assessorai/splegis-crawler/pkg/proposicao"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileFetcher retrieves a document by URL. Satisfied by fetch.Client.
type FileFetcher interface {
	FetchFile(ctx context.Context, url string) ([]byte, error)
}

// Downloader follows a record's download URL and writes the document under
// the storage root. Files are keyed on content ID, so re-crawls of an
// already downloaded proposal are skipped.
type Downloader struct {
	fetcher FileFetcher
	root    string
	logger  zerolog.Logger
}

// NewDownloader creates a downloader writing beneath root.
func NewDownloader(fetcher FileFetcher, root string) *Downloader {
	return &Downloader{
		fetcher: fetcher,
		root:    root,
		logger:  log.With().Str("component", "downloader").Logger(),
	}
}

// Download fetches the record's document and returns the file path relative
// to the storage root. An existing file is reused without refetching.
func (d *Downloader) Download(ctx context.Context, rec proposicao.Record) (string, error) {
	rel := filepath.Join("files", rec.ContentID+".pdf")
	abs := filepath.Join(d.root, rel)

	if _, err := os.Stat(abs); err == nil {
		downloadsTotal.WithLabelValues("skipped").Inc()
		d.logger.Debug().
			Str("content_id", rec.ContentID).
			Str("file", rel).
			Msg("Document already on disk, skipping download")
		return rel, nil
	}

	data, err := d.fetcher.FetchFile(ctx, rec.URL)
	if err != nil {
		downloadsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("fetch document %s: %w", rec.ContentID, err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		downloadsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("create download dir: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		downloadsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("write document %s: %w", rec.ContentID, err)
	}

	downloadsTotal.WithLabelValues("ok").Inc()
	d.logger.Debug().
		Str("content_id", rec.ContentID).
		Str("file", rel).
		Int("bytes", len(data)).
		Msg("Document downloaded")

	return rel, nil
}
