package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached listing page by endpoint path and query.
type Key struct {
	// Endpoint is the listing endpoint path (e.g. "/Pesquisa/PageDataProjeto").
	Endpoint string

	// Query holds the page request parameters.
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: splegis:page:endpoint:param1=val1:param2=val2
//
// Example:
//
//	splegis:page:Pesquisa/PageDataProjeto:length=100:start=0
//
// The draw counter is excluded: it changes on every request while the result
// window it addresses does not, so keying on it would make every page a miss.
func (k Key) String() string {
	parts := []string{"splegis", "page"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Query) > 0 {
		keys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			if key == "draw" {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Query.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
