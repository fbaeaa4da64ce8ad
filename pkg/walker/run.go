package walker

import (
	"context"
	"fmt"
	"time"

	"github.com/assessorai/splegis-crawler/pkg/proposicao"
)

// Fetcher retrieves one listing page body. Implementations own transport
// concerns: timeouts, retries, pacing and caching.
type Fetcher interface {
	FetchListing(ctx context.Context, req Request) ([]byte, error)
}

// Sink consumes emitted records. Implementations own downloads and storage.
type Sink interface {
	Emit(ctx context.Context, rec proposicao.Record) error
}

// Summary reports the outcome of one walk.
type Summary struct {
	// Pages is the number of listing pages parsed.
	Pages int

	// Emitted is the number of records handed to the sink.
	Emitted int

	// SinkErrors counts records the sink failed to accept.
	SinkErrors int

	// Reason is the termination reason: "limit", "exhausted" or "error".
	Reason string

	// Duration is the total walk duration.
	Duration time.Duration
}

// Run drives the walk sequentially: fetch a page, parse it, emit its
// records, then fetch the next page until the limit is reached or no more
// pages exist. Page N+1's request cannot be built before page N's response,
// so there is never more than one outstanding request.
//
// Sink failures are logged and counted but do not stop the walk; fetch and
// parse failures are terminal.
func (w *Walker) Run(ctx context.Context, fetcher Fetcher, sink Sink) (Summary, error) {
	start := time.Now()
	summary := Summary{Reason: "exhausted"}

	req, step := w.Initial()
	for {
		if err := ctx.Err(); err != nil {
			summary.Reason = "error"
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("walk cancelled: %w", err)
		}

		body, err := fetcher.FetchListing(ctx, req)
		if err != nil {
			summary.Reason = "error"
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("fetch page (start=%d): %w", step.Params.Start, err)
		}

		records, next, err := w.ParsePage(body, step)
		if err != nil {
			summary.Reason = "error"
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("parse page (start=%d): %w", step.Params.Start, err)
		}
		summary.Pages++

		for _, rec := range records {
			if err := sink.Emit(ctx, rec); err != nil {
				if ctx.Err() != nil {
					summary.Reason = "error"
					summary.Duration = time.Since(start)
					return summary, fmt.Errorf("walk cancelled: %w", ctx.Err())
				}
				summary.SinkErrors++
				w.logger.Warn().
					Err(err).
					Str("content_id", rec.ContentID).
					Str("path", rec.Path).
					Msg("Sink rejected record")
				continue
			}
			summary.Emitted++
		}

		if next == nil {
			break
		}
		step = *next
		req = w.BuildRequest(step.Params)
	}

	if w.cfg.Limit > 0 && summary.Emitted+summary.SinkErrors >= w.cfg.Limit {
		summary.Reason = "limit"
	}
	walksCompletedTotal.WithLabelValues(summary.Reason).Inc()

	summary.Duration = time.Since(start)
	w.logger.Info().
		Int("pages", summary.Pages).
		Int("emitted", summary.Emitted).
		Int("sink_errors", summary.SinkErrors).
		Str("reason", summary.Reason).
		Dur("duration", summary.Duration).
		Msg("Walk complete")

	return summary, nil
}
