package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/assessorai/splegis-crawler/pkg/proposicao"
	"github.com/assessorai/splegis-crawler/pkg/walker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RecordStore is the persistence half of the pipeline. Satisfied by Store.
type RecordStore interface {
	Save(ctx context.Context, doc *StoredProposal) error
}

// Pipeline receives emitted proposals, downloads their documents and
// persists them. It is the walker's sink.
//
// A failed download does not fail the proposal: the record is stored with
// the failure noted so a later crawl can retry. A failed store write is
// returned to the walker, which counts it against the record limit but
// keeps crawling.
type Pipeline struct {
	store      RecordStore
	downloader *Downloader
	dryRun     bool
	logger     zerolog.Logger
}

var _ walker.Sink = (*Pipeline)(nil)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDryRun makes the pipeline log proposals instead of downloading or
// persisting them.
func WithDryRun() Option {
	return func(p *Pipeline) { p.dryRun = true }
}

// New creates a pipeline. The downloader may be nil to disable document
// downloads.
func New(store RecordStore, downloader *Downloader, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		downloader: downloader,
		logger:     log.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit processes one proposal.
func (p *Pipeline) Emit(ctx context.Context, rec proposicao.Record) error {
	emittedTotal.Inc()

	if p.dryRun {
		p.logger.Info().
			Str("content_id", rec.ContentID).
			Str("process_code", rec.ProcessCode).
			Str("path", rec.Path).
			Str("url", rec.URL).
			Msg("Dry run, proposal not persisted")
		return nil
	}

	doc := toStored(rec)

	if p.downloader != nil {
		rel, err := p.downloader.Download(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			doc.DownloadStatus = "failed"
			doc.DownloadError = err.Error()
			p.logger.Warn().
				Err(err).
				Str("content_id", rec.ContentID).
				Msg("Document download failed, storing proposal without file")
		} else {
			doc.DownloadStatus = "ok"
			doc.FilePath = rel
			doc.DownloadedAt = time.Now().UTC()
		}
	}

	if err := p.store.Save(ctx, doc); err != nil {
		saveErrorsTotal.Inc()
		return fmt.Errorf("save proposal %s: %w", rec.ContentID, err)
	}
	savedTotal.Inc()

	p.logger.Debug().
		Str("content_id", rec.ContentID).
		Str("path", rec.Path).
		Msg("Proposal persisted")

	return nil
}

func toStored(rec proposicao.Record) *StoredProposal {
	return &StoredProposal{
		ContentID:   rec.ContentID,
		ProcessCode: rec.ProcessCode,
		House:       rec.House,
		Title:       rec.Title,
		Type:        rec.Type,
		Number:      rec.Number,
		Year:        rec.Year,
		Authors:     rec.Authors,
		Subject:     rec.Subject,
		URL:         rec.URL,
		Path:        rec.Path,
		ScrapedAt:   rec.ScrapedAt,
	}
}
