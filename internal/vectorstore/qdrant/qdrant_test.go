package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdb/internal/domain"
	"ragdb/internal/vectorstore"
	"ragdb/internal/vectorstore/storetest"
)

type fakePoint struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant implements the handful of endpoints Storage calls, scoring with dot product.
type fakeQdrant struct {
	mu      sync.Mutex
	created bool
	apiKey  string
	points  map[string]fakePoint
}

func filterBook(body map[string]any) string {
	f, _ := body["filter"].(map[string]any)
	must, _ := f["must"].([]any)
	if len(must) == 0 {
		return ""
	}
	m, _ := must[0].(map[string]any)["match"].(map[string]any)
	v, _ := m["value"].(string)
	return v
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.apiKey != "" && r.Header.Get("api-key") != f.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/collections/test")
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	write := func(v any) { _ = json.NewEncoder(w).Encode(map[string]any{"result": v}) }

	switch {
	case path == "" && r.Method == http.MethodGet:
		if !f.created {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		write(map[string]any{"status": "green"})
	case path == "" && r.Method == http.MethodPut:
		f.created = true
		write(true)
	case path == "/points" && r.Method == http.MethodPost:
		var found []map[string]any
		for _, id := range body["ids"].([]any) {
			if _, ok := f.points[id.(string)]; ok {
				found = append(found, map[string]any{"id": id})
			}
		}
		write(found)
	case path == "/points" && r.Method == http.MethodPut:
		raw, _ := json.Marshal(body["points"])
		var pts []fakePoint
		_ = json.Unmarshal(raw, &pts)
		for _, p := range pts {
			f.points[p.ID] = p
		}
		write(map[string]any{"status": "completed"})
	case path == "/points/search":
		var q []float64
		raw, _ := json.Marshal(body["vector"])
		_ = json.Unmarshal(raw, &q)
		type hit struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		hits := []hit{}
		for _, p := range f.points {
			s := 0.0
			for i := range q {
				if i < len(p.Vector) {
					s += q[i] * p.Vector[i]
				}
			}
			hits = append(hits, hit{Score: s, Payload: p.Payload})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if limit := int(body["limit"].(float64)); limit < len(hits) {
			hits = hits[:limit]
		}
		write(hits)
	case path == "/points/count":
		n := 0
		for _, p := range f.points {
			if p.Payload["book"] == filterBook(body) {
				n++
			}
		}
		write(map[string]any{"count": n})
	case path == "/points/scroll":
		var pts []map[string]any
		for _, p := range f.points {
			pts = append(pts, map[string]any{"id": p.ID, "payload": map[string]any{"book": p.Payload["book"]}})
		}
		write(map[string]any{"points": pts, "next_page_offset": nil})
	case path == "/points/delete":
		book := filterBook(body)
		for id, p := range f.points {
			if p.Payload["book"] == book {
				delete(f.points, id)
			}
		}
		write(map[string]any{"status": "completed"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFake(t *testing.T) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{apiKey: "qk", points: map[string]fakePoint{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		_, srv := newFake(t)
		s := NewStorage(Config{URL: srv.URL, APIKey: "qk", Collection: "test", Dimension: 3})
		require.NoError(t, s.Init(context.Background()))
		return s
	})
}

func TestInitCreatesCollectionOnce(t *testing.T) {
	f, srv := newFake(t)
	s := NewStorage(Config{URL: srv.URL, APIKey: "qk", Collection: "test", Dimension: 4})
	require.NoError(t, s.Init(context.Background()))
	assert.True(t, f.created)
	require.NoError(t, s.Init(context.Background()))
}

func TestInitWithoutDimensionFails(t *testing.T) {
	_, srv := newFake(t)
	s := NewStorage(Config{URL: srv.URL, APIKey: "qk", Collection: "test"})
	assert.Error(t, s.Init(context.Background()))
}

func TestWrongAPIKey(t *testing.T) {
	_, srv := newFake(t)
	s := NewStorage(Config{URL: srv.URL, APIKey: "nope", Collection: "test", Dimension: 2})
	assert.Error(t, s.Init(context.Background()))
}

func TestPointIDIsStableUUID(t *testing.T) {
	assert.Equal(t, PointID("abc"), PointID("abc"))
	assert.NotEqual(t, PointID("abc"), PointID("abd"))
	assert.Len(t, PointID("abc"), 36)
}

func TestToDistance(t *testing.T) {
	assert.InDelta(t, -0.9, NewStorage(Config{Metric: vectorstore.Dot}).toDistance(0.9), 1e-9)
	assert.InDelta(t, 0.1, NewStorage(Config{Metric: vectorstore.Cosine}).toDistance(0.9), 1e-9)
	assert.InDelta(t, 0.9, NewStorage(Config{Metric: vectorstore.Euclidean}).toDistance(0.9), 1e-9)
}
