package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/source"
)

// NewWikibaseServer serves the payloads of g as a wbgetentities endpoint.
// Absent IDs are reported as missing. The server is closed with the test.
func NewWikibaseServer(t testing.TB, g *Graph) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("action") != "wbgetentities" {
			http.Error(w, "unsupported action", http.StatusBadRequest)
			return
		}

		var ids []entity.ID
		for _, raw := range strings.Split(query.Get("ids"), "|") {
			if raw != "" {
				ids = append(ids, entity.ID(raw))
			}
		}

		var languages []string
		if l := query.Get("languages"); l != "" {
			languages = strings.Split(l, "|")
		}

		payloads, err := g.FetchBatch(r.Context(), ids, source.FetchOptions{Languages: languages})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		entities := make(map[string]any, len(ids))
		for _, id := range ids {
			if p, ok := payloads[id]; ok {
				entities[string(id)] = wirePayload(p)
			} else {
				entities[string(id)] = map[string]any{"id": string(id), "missing": ""}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"entities": entities, "success": 1})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func wirePayload(p *entity.Payload) map[string]any {
	out := map[string]any{
		"id":     string(p.ID),
		"type":   p.Type,
		"ns":     p.Namespace,
		"title":  p.Title,
		"labels": p.Labels,
	}
	if p.DataType != "" {
		out["datatype"] = p.DataType
	}

	claims := make(map[string]any, len(p.Claims))
	for prop, cs := range p.Claims {
		wire := make([]any, 0, len(cs))
		for _, c := range cs {
			wc := map[string]any{
				"id":       c.ID,
				"type":     "statement",
				"rank":     string(c.Rank),
				"mainsnak": wireSnak(c.MainSnak),
			}
			if len(c.Qualifiers) > 0 {
				qualifiers := make(map[string]any, len(c.Qualifiers))
				order := make([]string, 0, len(c.QualifierOrder))
				for _, q := range c.QualifierOrder {
					order = append(order, string(q))
				}
				for q, snaks := range c.Qualifiers {
					ws := make([]any, 0, len(snaks))
					for _, s := range snaks {
						ws = append(ws, wireSnak(s))
					}
					qualifiers[string(q)] = ws
				}
				wc["qualifiers"] = qualifiers
				wc["qualifiers-order"] = order
			}
			wire = append(wire, wc)
		}
		claims[string(prop)] = wire
	}
	if len(claims) > 0 {
		out["claims"] = claims
	}

	return out
}

func wireSnak(s entity.Snak) map[string]any {
	out := map[string]any{
		"snaktype": s.SnakType,
		"property": string(s.Property),
		"datatype": s.DataType,
	}
	if s.Value.Kind == entity.KindItem {
		out["datavalue"] = map[string]any{
			"type": "wikibase-entityid",
			"value": map[string]any{
				"entity-type": "item",
				"id":          string(s.Value.Item),
			},
		}
	}
	return out
}
