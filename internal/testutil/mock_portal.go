// Package testutil provides testing utilities for the SPLegis crawler.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ListingRow is one proposal row served by the mock listing endpoint.
type ListingRow struct {
	Codigo      string        `json:"codigo"`
	Texto       string        `json:"texto"`
	Sigla       string        `json:"sigla"`
	Numero      int           `json:"numero"`
	Ano         int           `json:"ano"`
	Promoventes []AuthorEntry `json:"promoventes"`
	Ementa      string        `json:"ementa"`
	NatoDigital bool          `json:"natodigital"`
}

// AuthorEntry mirrors the portal's promoventes array entries.
type AuthorEntry struct {
	Texto string `json:"texto"`
}

// MockResponse defines the behavior for a fixed mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPortal is a configurable mock of the SPLegis consultation portal. By
// default it serves a seeded set of proposal rows through the DataTables
// listing endpoint, paginated by the request's start/length parameters, and
// a fake PDF for every document download.
type MockPortal struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	rows     []ListingRow

	// Tracking
	RequestCount      int
	ListingCount      int
	DownloadCount     int
	LastRequestHeader http.Header
	LastQuery         map[string]string
}

// NewMockPortal creates a mock portal serving the given rows.
func NewMockPortal(rows []ListingRow) *MockPortal {
	mock := &MockPortal{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		rows:     rows,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				mock.LastQuery[k] = v[0]
			}
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockPortal) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPortal) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPortal) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ListingCount = 0
	m.DownloadCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockPortal) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockPortal) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPortal) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetListingCount returns the number of listing page requests served.
func (m *MockPortal) GetListingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ListingCount
}

// GetDownloadCount returns the number of document downloads served.
func (m *MockPortal) GetDownloadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.DownloadCount
}

func (m *MockPortal) defaultHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/Pesquisa/PageDataProjeto":
		m.serveListing(w, r)
	case strings.HasPrefix(r.URL.Path, "/ArquivoProcesso/GerarArquivoProcessoPorID/"):
		m.serveDownload(w, r)
	default:
		http.NotFound(w, r)
	}
}

// serveListing answers a DataTables page request from the seeded rows.
func (m *MockPortal) serveListing(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.ListingCount++
	rows := m.rows
	m.mu.Unlock()

	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	length, _ := strconv.Atoi(r.URL.Query().Get("length"))
	if length <= 0 {
		length = 100
	}

	page := []ListingRow{}
	if start < len(rows) {
		end := start + length
		if end > len(rows) {
			end = len(rows)
		}
		page = rows[start:end]
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"draw":            r.URL.Query().Get("draw"),
		"recordsTotal":    len(rows),
		"recordsFiltered": len(rows),
		"data":            page,
	})
}

// serveDownload answers a document request with a fake PDF carrying the
// process code, so tests can verify which document was fetched.
func (m *MockPortal) serveDownload(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.DownloadCount++
	m.mu.Unlock()

	code := strings.TrimPrefix(r.URL.Path, "/ArquivoProcesso/GerarArquivoProcessoPorID/")
	w.Header().Set("Content-Type", "application/pdf")
	fmt.Fprintf(w, "%%PDF-1.4 mock document %s", code)
}

// NewRows generates n sequential proposal rows, codes starting at 9000001.
func NewRows(n int) []ListingRow {
	rows := make([]ListingRow, n)
	for i := range rows {
		rows[i] = ListingRow{
			Codigo:      strconv.Itoa(9000001 + i),
			Texto:       fmt.Sprintf("PL %d/2024", i+1),
			Sigla:       "PL",
			Numero:      i + 1,
			Ano:         2024,
			Promoventes: []AuthorEntry{{Texto: "Ver. Exemplo"}},
			Ementa:      fmt.Sprintf("Dispõe sobre o assunto %d.", i+1),
			NatoDigital: i%2 == 0,
		}
	}
	return rows
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Erro interno do servidor",
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 response whose body is not a listing page.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "<html><body>Sessão expirada</body></html>",
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}
