package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage names used with ObserveStage.
const (
	StageEmbed  = "embed"
	StageSearch = "search"
	StageRerank = "rerank"
	StageLLM    = "llm"
	StageSave   = "save"
)

// Collector holds the pipeline metrics. A nil *Collector records nothing.
type Collector struct {
	registry        *prometheus.Registry
	chunksIngested  prometheus.Counter
	chunksSkipped   prometheus.Counter
	embedBatches    prometheus.Counter
	questions       *prometheus.CounterVec
	tokens          *prometheus.CounterVec
	rerankFallbacks prometheus.Counter
	stageDuration   *prometheus.HistogramVec
}

// New registers the metrics on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		chunksIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "ragdb_chunks_ingested_total",
			Help: "Chunks written to the vector store",
		}),
		chunksSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "ragdb_chunks_skipped_total",
			Help: "Chunks skipped because their ID already existed",
		}),
		embedBatches: f.NewCounter(prometheus.CounterOpts{
			Name: "ragdb_embedding_batches_total",
			Help: "Embedding batches sent to the embedder",
		}),
		questions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragdb_questions_total",
			Help: "Questions answered",
		}, []string{"mode"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragdb_llm_tokens_total",
			Help: "LLM tokens consumed",
		}, []string{"kind"}),
		rerankFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "ragdb_rerank_fallbacks_total",
			Help: "Reranker failures that fell back to vector order",
		}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ragdb_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

func (c *Collector) AddIngested(n int) {
	if c != nil && n > 0 {
		c.chunksIngested.Add(float64(n))
	}
}

func (c *Collector) AddSkipped(n int) {
	if c != nil && n > 0 {
		c.chunksSkipped.Add(float64(n))
	}
}

func (c *Collector) IncEmbedBatch() {
	if c != nil {
		c.embedBatches.Inc()
	}
}

func (c *Collector) IncQuestion(mode string) {
	if c != nil {
		c.questions.WithLabelValues(mode).Inc()
	}
}

func (c *Collector) AddTokens(prompt, completion int) {
	if c == nil {
		return
	}
	c.tokens.WithLabelValues("prompt").Add(float64(prompt))
	c.tokens.WithLabelValues("completion").Add(float64(completion))
}

func (c *Collector) IncRerankFallback() {
	if c != nil {
		c.rerankFallbacks.Inc()
	}
}

// ObserveStage records time elapsed since start for stage.
func (c *Collector) ObserveStage(stage string, start time.Time) {
	if c != nil {
		c.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
