package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"ragdb/internal/domain"
	"ragdb/internal/vectorstore"
)

// pointNamespace derives stable point UUIDs from chunk IDs.
var pointNamespace = uuid.MustParse("6f1c3a52-8d0e-4b7c-9a55-2f0e4c1d7b90")

// Storage is a minimal REST client to Qdrant. Each chunk is one point whose
// payload carries the chunk ID, text, book and page.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	metric     vectorstore.Metric
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Metric     vectorstore.Metric
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Metric == "" {
		cfg.Metric = vectorstore.Dot
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		metric:     cfg.Metric,
		client:     &http.Client{Timeout: timeout},
	}
}

func qdrantDistance(m vectorstore.Metric) string {
	switch m {
	case vectorstore.Cosine:
		return "Cosine"
	case vectorstore.Euclidean:
		return "Euclid"
	default:
		return "Dot"
	}
}

// toDistance converts a Qdrant score to the smaller-is-better distance used by the other stores.
func (s *Storage) toDistance(score float64) float64 {
	switch s.metric {
	case vectorstore.Cosine:
		return 1 - score
	case vectorstore.Euclidean:
		return score
	default:
		return -score
	}
}

// PointID maps a chunk ID to the UUID used as Qdrant point ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func bookFilter(name string) map[string]any {
	return map[string]any{"must": []map[string]any{{"key": "book", "match": map[string]any{"value": name}}}}
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// Init creates the collection if missing.
func (s *Storage) Init(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}
	if s.dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": qdrantDistance(s.metric),
		},
	}
	_, err = s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	return err
}

func (s *Storage) SaveBook(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) (domain.SaveStats, error) {
	if err := vectorstore.CheckBatch(chunks, vectors); err != nil {
		return domain.SaveStats{}, err
	}
	exists, err := s.BookExists(ctx, name)
	if err != nil {
		return domain.SaveStats{}, err
	}
	if exists {
		return domain.SaveStats{}, fmt.Errorf("%w: %s", domain.ErrBookExists, name)
	}

	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = PointID(ch.ID)
	}
	var existing struct {
		Result []struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points"),
		map[string]any{"ids": ids, "with_payload": false, "with_vector": false}, &existing); err != nil {
		return domain.SaveStats{}, err
	}
	taken := make(map[string]struct{}, len(existing.Result))
	for _, p := range existing.Result {
		taken[p.ID] = struct{}{}
	}

	var stats domain.SaveStats
	points := make([]map[string]any, 0, len(chunks))
	for i, ch := range chunks {
		if _, ok := taken[ids[i]]; ok {
			stats.Skipped++
			continue
		}
		points = append(points, map[string]any{
			"id":     ids[i],
			"vector": vectors[i],
			"payload": map[string]any{
				"chunk_id": ch.ID,
				"text":     ch.Text,
				"book":     name,
				"page":     ch.PageNum,
			},
		})
		stats.Inserted++
	}
	if len(points) == 0 {
		return stats, nil
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return domain.SaveStats{}, err
	}
	return stats, nil
}

type scoredPoint struct {
	Score   float64 `json:"score"`
	Payload struct {
		ChunkID string `json:"chunk_id"`
		Text    string `json:"text"`
		Book    string `json:"book"`
		Page    int    `json:"page"`
	} `json:"payload"`
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		d := vectorstore.Round3(s.toDistance(r.Score))
		results = append(results, vectorstore.Result(s.metric, r.Payload.ChunkID, r.Payload.Text, r.Payload.Page, r.Payload.Book, d))
	}
	return results, nil
}

func (s *Storage) BookExists(ctx context.Context, name string) (bool, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"),
		map[string]any{"filter": bookFilter(name), "exact": true}, &resp); err != nil {
		return false, err
	}
	return resp.Result.Count > 0, nil
}

// ListBooks scrolls through every point's book payload.
func (s *Storage) ListBooks(ctx context.Context) ([]domain.Book, error) {
	counts := map[string]int{}
	var offset any
	for {
		req := map[string]any{"limit": 256, "with_payload": []string{"book"}, "with_vector": false}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload struct {
						Book string `json:"book"`
					} `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			counts[p.Payload.Book]++
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]domain.Book, len(names))
	for i, n := range names {
		out[i] = domain.Book{ID: int64(i + 1), Name: n, Chunks: counts[n]}
	}
	return out, nil
}

func (s *Storage) DeleteBook(ctx context.Context, name string) error {
	exists, err := s.BookExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: book %s", domain.ErrNotFound, name)
	}
	_, err = s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), map[string]any{"filter": bookFilter(name)}, nil)
	return err
}

func (s *Storage) Close() error { return nil }

func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
