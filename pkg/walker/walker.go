package walker

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/assessorai/splegis-crawler/pkg/proposicao"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the batch size of the reference deployment.
const DefaultPageSize = 100

// DefaultListingPath is the portal's DataTables listing endpoint.
const DefaultListingPath = "/Pesquisa/PageDataProjeto"

// defaultRefererPath is the search page the portal expects as referer.
const defaultRefererPath = "/Pesquisa/IndexProjeto"

// ErrMalformedResponse is returned when a page body is not valid JSON or
// lacks the records array. The walk halts; retrying the fetch is the
// caller's decision.
var ErrMalformedResponse = errors.New("malformed listing response")

// Prometheus metrics for walk progress.
var (
	pagesParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splegis_pages_parsed_total",
		Help: "Total listing pages parsed",
	})

	recordsEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splegis_records_emitted_total",
		Help: "Total proposal records emitted to the pipeline",
	})

	recordsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splegis_records_skipped_total",
		Help: "Total listing rows skipped by reason",
	}, []string{"reason"})

	walksCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splegis_walks_completed_total",
		Help: "Total completed walks by termination reason",
	}, []string{"reason"})
)

// Config holds the walker configuration.
type Config struct {
	// Source identifies the crawled house (constants for the deployment).
	Source proposicao.Source

	// BaseURL is the portal origin, e.g. "https://splegisconsulta.saopaulo.sp.leg.br".
	BaseURL string

	// ListingPath is the listing endpoint path (default DefaultListingPath).
	ListingPath string

	// Referer overrides the referer header (default: BaseURL + search page).
	Referer string

	// PageSize is the records-per-page batch size (default DefaultPageSize).
	PageSize int

	// DataInicio and DataFim optionally bound the filing date range.
	DataInicio string
	DataFim    string

	// Limit caps the total records emitted. Zero means unbounded.
	Limit int
}

// Walker paginates the listing endpoint and derives proposal records.
// It performs no I/O; fetching is delegated to a Fetcher and emitted
// records to a Sink. A Walker is immutable after construction, so
// independent walks may run concurrently, each threading its own Step.
type Walker struct {
	cfg     Config
	listing *url.URL
	referer string
	logger  zerolog.Logger
}

// New creates a walker for the configured portal and source.
func New(cfg Config) (*Walker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Source.House == "" || cfg.Source.UF == "" || cfg.Source.Slug == "" {
		return nil, fmt.Errorf("source house, uf and slug are required")
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0 (got %d)", cfg.Limit)
	}

	if cfg.ListingPath == "" {
		cfg.ListingPath = DefaultListingPath
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", cfg.BaseURL)
	}

	listing := *base
	listing.Path = cfg.ListingPath

	referer := cfg.Referer
	if referer == "" {
		ref := *base
		ref.Path = defaultRefererPath
		referer = ref.String()
	}

	return &Walker{
		cfg:     cfg,
		listing: &listing,
		referer: referer,
		logger:  log.With().Str("component", "walker").Str("source", cfg.Source.Slug).Logger(),
	}, nil
}

// Initial builds the first page request and the walk's starting step:
// start=0, draw=1, the configured page size and optional date bounds.
func (w *Walker) Initial() (Request, Step) {
	step := Step{
		Params: Params{
			Draw:       1,
			Start:      0,
			Length:     w.cfg.PageSize,
			DataInicio: w.cfg.DataInicio,
			DataFim:    w.cfg.DataFim,
		},
	}
	return w.BuildRequest(step.Params), step
}

// BuildRequest produces the HTTP GET descriptor for a parameter set. The
// AJAX marker and referer are required by the portal and carried forward
// on every follow-up page.
func (w *Walker) BuildRequest(p Params) Request {
	header := http.Header{}
	header.Set("X-Requested-With", "XMLHttpRequest")
	header.Set("Referer", w.referer)

	return Request{
		URL:    w.listing.String(),
		Query:  p.Values(),
		Header: header,
	}
}

// pageEnvelope is the DataTables response shell. Data stays raw so a missing
// array can be told apart from an empty one.
type pageEnvelope struct {
	RecordsFiltered int             `json:"recordsFiltered"`
	Data            json.RawMessage `json:"data"`
}

// ParsePage decodes one listing page and derives its records.
//
// Rows without a process code are skipped silently and do not count against
// the limit. The limit is checked per row, before deriving, so it can cut a
// page short; once reached no next step is produced. Otherwise a next step
// is returned while start+length is still below the filtered total.
func (w *Walker) ParsePage(body []byte, step Step) ([]proposicao.Record, *Step, error) {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Data == nil {
		return nil, nil, fmt.Errorf("%w: missing data array", ErrMalformedResponse)
	}

	var rows []proposicao.RawRecord
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, nil, fmt.Errorf("%w: decode data array: %v", ErrMalformedResponse, err)
	}

	pagesParsedTotal.Inc()

	records := make([]proposicao.Record, 0, len(rows))
	processed := step.Processed
	skipped := 0
	limitHit := false

	for _, raw := range rows {
		if raw.Codigo == "" {
			skipped++
			recordsSkippedTotal.WithLabelValues("missing_code").Inc()
			continue
		}

		if w.cfg.Limit > 0 && processed >= w.cfg.Limit {
			limitHit = true
			break
		}

		rec, err := proposicao.FromRaw(raw, w.cfg.Source, w.listing, time.Now())
		if err != nil {
			skipped++
			recordsSkippedTotal.WithLabelValues("derive_error").Inc()
			w.logger.Warn().
				Err(err).
				Str("codigo", string(raw.Codigo)).
				Msg("Failed to derive record from listing row")
			continue
		}

		records = append(records, rec)
		processed++
		recordsEmittedTotal.Inc()
	}

	w.logger.Info().
		Int("start", step.Params.Start).
		Int("draw", step.Params.Draw).
		Int("rows", len(rows)).
		Int("emitted", len(records)).
		Int("skipped", skipped).
		Int("total_filtered", env.RecordsFiltered).
		Msg("Parsed listing page")

	if limitHit || (w.cfg.Limit > 0 && processed >= w.cfg.Limit) {
		w.logger.Info().
			Int("limit", w.cfg.Limit).
			Msg("Record limit reached, ending pagination")
		return records, nil, nil
	}

	nextStart := step.Params.Start + w.cfg.PageSize
	if nextStart >= env.RecordsFiltered {
		return records, nil, nil
	}

	next := Step{
		Params:    step.Params.Next(),
		Processed: processed,
	}
	return records, &next, nil
}
