package walker

import (
	"net/http"
	"net/url"
	"strconv"
)

// Fixed listing directives sent with every page request. The portal's
// DataTables endpoint expects the full set even when unused.
const (
	paramTipo      = "1"
	paramOrderCol  = "1"
	paramOrderDir  = "desc"
	paramInTramit  = "false"
	paramSearchVal = ""
	paramSearchRx  = "false"
)

// Params are the query parameters of one listing page request. Values are
// immutable; advancing a page produces a new Params via Next.
type Params struct {
	// Draw is the DataTables draw counter, incremented by 1 per page.
	Draw int

	// Start is the zero-based record offset, incremented by Length per page.
	Start int

	// Length is the fixed page size.
	Length int

	// DataInicio and DataFim are optional filing-date bounds (autuacaoI /
	// autuacaoF). Opaque strings in whatever format the portal accepts.
	DataInicio string
	DataFim    string
}

// Values encodes the parameters as a URL query. Encoding is left to
// url.Values; the portal's own client concatenates raw strings, which breaks
// for values containing '&' or '=', so that behavior is not reproduced.
func (p Params) Values() url.Values {
	v := url.Values{}
	v.Set("draw", strconv.Itoa(p.Draw))
	v.Set("start", strconv.Itoa(p.Start))
	v.Set("length", strconv.Itoa(p.Length))
	v.Set("tipo", paramTipo)
	v.Set("somenteEmTramitacao", paramInTramit)
	v.Set("order[0][column]", paramOrderCol)
	v.Set("order[0][dir]", paramOrderDir)
	v.Set("search[value]", paramSearchVal)
	v.Set("search[regex]", paramSearchRx)
	if p.DataInicio != "" {
		v.Set("autuacaoI", p.DataInicio)
	}
	if p.DataFim != "" {
		v.Set("autuacaoF", p.DataFim)
	}
	return v
}

// Next returns the parameters for the following page: draw advanced by one,
// start advanced by exactly one page length.
func (p Params) Next() Params {
	p.Draw++
	p.Start += p.Length
	return p
}

// Step is the immutable per-page crawl state threaded through ParsePage
// calls: the request parameters for the page plus the count of records
// emitted so far across the whole walk.
type Step struct {
	Params    Params
	Processed int
}

// Request is an HTTP GET descriptor for one listing page, handed to the
// fetch layer. The walker performs no I/O itself.
type Request struct {
	// URL is the absolute listing endpoint URL without query string.
	URL string

	// Query is the encoded page parameter set.
	Query url.Values

	// Header carries the AJAX marker and referer the portal requires.
	Header http.Header
}

// Encode returns the full request URL including the query string.
func (r Request) Encode() string {
	return r.URL + "?" + r.Query.Encode()
}
