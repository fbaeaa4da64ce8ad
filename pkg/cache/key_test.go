package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "endpoint only",
			key: Key{
				Endpoint: "/Pesquisa/PageDataProjeto",
			},
			want: "splegis:page:Pesquisa/PageDataProjeto",
		},
		{
			name: "endpoint with query params (sorted)",
			key: Key{
				Endpoint: "/Pesquisa/PageDataProjeto",
				Query: url.Values{
					"start":  []string{"0"},
					"length": []string{"100"},
				},
			},
			want: "splegis:page:Pesquisa/PageDataProjeto:length=100:start=0",
		},
		{
			name: "draw counter excluded",
			key: Key{
				Endpoint: "/Pesquisa/PageDataProjeto",
				Query: url.Values{
					"draw":   []string{"7"},
					"start":  []string{"600"},
					"length": []string{"100"},
				},
			},
			want: "splegis:page:Pesquisa/PageDataProjeto:length=100:start=600",
		},
		{
			name: "date bounds included",
			key: Key{
				Endpoint: "/Pesquisa/PageDataProjeto",
				Query: url.Values{
					"start":     []string{"0"},
					"autuacaoI": []string{"01/01/2024"},
					"autuacaoF": []string{"31/12/2024"},
				},
			},
			want: "splegis:page:Pesquisa/PageDataProjeto:autuacaoF=31/12/2024:autuacaoI=01/01/2024:start=0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("Key.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestKey_Determinism ensures same input always produces same key
func TestKey_Determinism(t *testing.T) {
	key := Key{
		Endpoint: "/Pesquisa/PageDataProjeto",
		Query: url.Values{
			"start":     []string{"200"},
			"length":    []string{"100"},
			"autuacaoI": []string{"01/01/2024"},
			"tipo":      []string{"1"},
		},
	}

	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		results[i] = key.String()
	}

	first := results[0]
	for i, result := range results {
		if result != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}
}

// TestKey_DrawIndependence verifies that two requests for the same result
// window share a cache slot even across different draw counters.
func TestKey_DrawIndependence(t *testing.T) {
	a := Key{
		Endpoint: "/Pesquisa/PageDataProjeto",
		Query:    url.Values{"draw": []string{"1"}, "start": []string{"0"}},
	}
	b := Key{
		Endpoint: "/Pesquisa/PageDataProjeto",
		Query:    url.Values{"draw": []string{"9"}, "start": []string{"0"}},
	}

	if a.String() != b.String() {
		t.Errorf("keys differ across draw counters: %q vs %q", a.String(), b.String())
	}
}
