// Package proposicao defines the domain model for legislative proposals
// extracted from the SPLegis listing API, and the derivation rules that
// turn a raw listing row into a storable record.
package proposicao

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Download URL templates, relative to the portal origin. Which one applies
// depends on whether the proposal is digital-native: born-digital processes
// include referenced documents, scanned ones need the annex filter.
const (
	downloadPathDigital = "/ArquivoProcesso/GerarArquivoProcessoPorID/%s?referidas=true"
	downloadPathScanned = "/ArquivoProcesso/GerarArquivoProcessoPorID/%s?filtroAnexo=1"
)

// Source identifies the crawled house. Fixed per deployment, never derived
// from response data.
type Source struct {
	// House is the display name (e.g. "Câmara Municipal de São Paulo").
	House string

	// UF is the two-letter federative unit code (e.g. "SP").
	UF string

	// Slug is the source identifier used in storage paths (e.g. "sp-sao-paulo").
	Slug string
}

// ProcessCode is the portal's opaque identifier for a proposal. The listing
// API is inconsistent about its JSON type (number on some deployments,
// string on others), so it decodes from either.
type ProcessCode string

// UnmarshalJSON accepts string, number or null forms of the code.
func (c *ProcessCode) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*c = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*c = ProcessCode(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("process code: %w", err)
	}
	*c = ProcessCode(n.String())
	return nil
}

// Author is one entry of the listing row's promoventes array.
type Author struct {
	Texto string `json:"texto"`
}

// RawRecord is one row of the listing response's data array, as served by
// the portal.
type RawRecord struct {
	Codigo      ProcessCode `json:"codigo"`
	Texto       string      `json:"texto"`
	Sigla       string      `json:"sigla"`
	Numero      int         `json:"numero"`
	Ano         int         `json:"ano"`
	Promoventes []Author    `json:"promoventes"`
	Ementa      string      `json:"ementa"`
	NatoDigital bool        `json:"natodigital"`
}

// Record is the derived output handed to the pipeline. Immutable once built.
type Record struct {
	House     string
	Title     string
	Type      string
	Number    int
	Year      int
	Authors   []string
	Subject   string
	ScrapedAt time.Time

	// ContentID is the hex MD5 digest of the process code. Stable across
	// runs for the same code.
	ContentID string

	// ProcessCode is the portal identifier the record was derived from.
	ProcessCode string

	// URL is the absolute document download URL.
	URL string

	// FileURLs lists the URLs the pipeline must download (currently just URL).
	FileURLs []string

	// Path is the normalized relative storage path:
	// {uf}/{slug}/{normalized-type}-{number}-{year}.md
	Path string
}

// FromRaw derives a Record from a listing row. base is the listing
// endpoint's origin, used to resolve the download URL. The code must be
// non-empty; callers filter code-less rows before deriving.
func FromRaw(raw RawRecord, src Source, base *url.URL, now time.Time) (Record, error) {
	code := string(raw.Codigo)
	if code == "" {
		return Record{}, fmt.Errorf("raw record has no process code")
	}

	download, err := downloadURL(base, code, raw.NatoDigital)
	if err != nil {
		return Record{}, fmt.Errorf("derive download url: %w", err)
	}

	authors := make([]string, 0, len(raw.Promoventes))
	for _, p := range raw.Promoventes {
		authors = append(authors, strings.TrimSpace(p.Texto))
	}

	typ := strings.TrimSpace(raw.Sigla)

	return Record{
		House:       src.House,
		Title:       strings.TrimSpace(raw.Texto),
		Type:        typ,
		Number:      raw.Numero,
		Year:        raw.Ano,
		Authors:     authors,
		Subject:     strings.TrimSpace(raw.Ementa),
		ScrapedAt:   now,
		ContentID:   ContentID(code),
		ProcessCode: code,
		URL:         download,
		FileURLs:    []string{download},
		Path:        StoragePath(src, typ, raw.Numero, raw.Ano),
	}, nil
}

// ContentID returns the deterministic content identifier for a process code:
// the hex MD5 digest of its string form, matching identifiers produced by
// earlier collector runs.
func ContentID(code string) string {
	sum := md5.Sum([]byte(code))
	return hex.EncodeToString(sum[:])
}

// NormalizeType lower-cases a type code and replaces its internal spaces
// with hyphens. Empty codes become "unknown".
func NormalizeType(typ string) string {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return "unknown"
	}
	return strings.ReplaceAll(strings.ToLower(typ), " ", "-")
}

// StoragePath builds the relative markdown path for a proposal.
func StoragePath(src Source, typ string, number, year int) string {
	return fmt.Sprintf("%s/%s/%s-%d-%d.md", src.UF, src.Slug, NormalizeType(typ), number, year)
}

// downloadURL resolves the template for the given code against the portal
// origin. The code is interpolated as a path segment, so it is escaped.
func downloadURL(base *url.URL, code string, natoDigital bool) (string, error) {
	tmpl := downloadPathScanned
	if natoDigital {
		tmpl = downloadPathDigital
	}

	rel, err := url.Parse(fmt.Sprintf(tmpl, url.PathEscape(code)))
	if err != nil {
		return "", err
	}

	resolved := base.ResolveReference(rel)
	if !resolved.IsAbs() {
		return "", fmt.Errorf("resolved url %q is not absolute", resolved)
	}
	return resolved.String(), nil
}
