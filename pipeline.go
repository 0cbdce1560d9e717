package textloom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Provider is the interface for LLM backends. Implementations own their
// request/response schema translation and classify their own failures as
// retryable or fatal via ProviderError.
type Provider interface {
	Submit(ctx context.Context, req Request) (*Completion, error)
}

// Request contains the parameters for one provider call. Texts holds one or
// more span texts batched into a single prompt.
type Request struct {
	Task        Task
	Texts       []string
	SourceLang  string
	TargetLang  string
	Model       string
	Temperature float32
	MaxTokens   int
	ExtraPrompt string
	RTL         bool // the texts (or the target language) are right-to-left
}

// Completion is a provider response: one result per request text, plus
// token usage.
type Completion struct {
	Texts     []string
	TokensIn  int
	TokensOut int
}

// ResponseCache is the interface for completion caching. Lookup is a pure
// function of the key; implementations must be safe for concurrent use.
type ResponseCache interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}

// ContentProcessor extracts text spans from a document and reinjects
// transformed spans at their recorded placements.
type ContentProcessor interface {
	Extract(content string) (parsed interface{}, spans []TextSpan, placement PlacementMap, err error)
	Apply(parsed interface{}, spans []TextSpan, placement PlacementMap) (string, error)
	ContentType() string
}

// Pipeline orchestrates extraction, cache-checked provider calls, and
// reinjection for one document at a time. The cache is the only state
// shared across invocations.
type Pipeline struct {
	provider    Provider
	cache       ResponseCache
	processors  map[string]ContentProcessor
	retry       RetryConfig
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithCache sets the response cache.
func WithCache(cache ResponseCache) PipelineOption {
	return func(p *Pipeline) {
		p.cache = cache
	}
}

// WithProcessor registers a content processor.
func WithProcessor(processor ContentProcessor) PipelineOption {
	return func(p *Pipeline) {
		p.processors[processor.ContentType()] = processor
	}
}

// WithRetryConfig sets the retry/backoff policy for provider calls.
func WithRetryConfig(cfg RetryConfig) PipelineOption {
	return func(p *Pipeline) {
		p.retry = cfg
	}
}

// WithBatchSize sets the maximum number of spans joined into one prompt.
// Batch boundaries never split a span.
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithConcurrency sets the maximum number of provider calls in flight.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the structured logger used by the pipeline.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a Pipeline backed by the given provider.
func NewPipeline(provider Provider, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		provider:    provider,
		processors:  make(map[string]ContentProcessor),
		retry:       DefaultRetryConfig(),
		batchSize:   10,
		concurrency: 4,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ProcessHTML processes an HTML document according to opts.
func (p *Pipeline) ProcessHTML(ctx context.Context, html string, opts ProcessingOptions) (*ProcessingResult, error) {
	return p.Process(ctx, html, "html", opts)
}

// Process runs the full pipeline for content of the given type: extract,
// resolve each span from cache or a retried provider call, reinject. The
// result is all-or-nothing; any surfaced error means no document was
// produced.
func (p *Pipeline) Process(ctx context.Context, content, contentType string, opts ProcessingOptions) (*ProcessingResult, error) {
	opts = opts.withDefaults()
	start := time.Now()
	stats := Stats{InvocationID: uuid.NewString()}

	log := p.logger.With(
		slog.String("invocation", stats.InvocationID),
		slog.String("task", string(opts.Task)),
		slog.String("model", opts.Model),
	)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// Translating into the source language is a no-op.
	if opts.Task == TaskTranslate && SameBaseLang(opts.SourceLang, opts.TargetLang) {
		log.Debug("source and target language match, passing content through")
		stats.ProcessingTime = time.Since(start)
		return &ProcessingResult{HTML: content, Stats: stats}, nil
	}

	proc, ok := p.processors[contentType]
	if !ok {
		return nil, fmt.Errorf("no processor registered for content type %q", contentType)
	}

	parsed, spans, placement, err := proc.Extract(content)
	if err != nil {
		return nil, err
	}
	stats.SpansTotal = len(spans)

	if len(spans) == 0 {
		log.Debug("no extractable text found")
		stats.ProcessingTime = time.Since(start)
		return &ProcessingResult{HTML: content, Stats: stats}, nil
	}

	results := make([]string, len(spans))
	useCache := opts.UseCache && p.cache != nil

	// Cache lookup, then dedup the misses by normalized key so identical
	// texts cost one provider slot.
	missSpans := make(map[string][]int)
	var missOrder []string
	for _, s := range spans {
		key := CacheKey(s.Text, opts)
		if useCache {
			if v, ok := p.cache.Get(key); ok {
				results[s.ID] = v
				stats.CacheHits++
				continue
			}
		}
		if _, seen := missSpans[key]; !seen {
			missOrder = append(missOrder, key)
		}
		missSpans[key] = append(missSpans[key], s.ID)
	}

	log.Debug("extraction complete",
		slog.Int("spans", len(spans)),
		slog.Int("cache_hits", stats.CacheHits),
		slog.Int("unique_misses", len(missOrder)),
	)

	if len(missOrder) > 0 {
		if p.provider == nil {
			return nil, &ProviderError{Message: "no provider configured"}
		}
		if err := p.submitMisses(ctx, spans, opts, missOrder, missSpans, results, &stats, useCache); err != nil {
			if opts.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
				return nil, &TimeoutError{Task: opts.Task, Model: opts.Model, Elapsed: time.Since(start), Cause: err}
			}
			log.Error("provider submission failed", slog.Any("error", err))
			return nil, err
		}
	}

	transformed := make([]TextSpan, len(spans))
	for i, s := range spans {
		transformed[i] = s
		transformed[i].Text = results[i]
	}

	out, err := proc.Apply(parsed, transformed, placement)
	if err != nil {
		return nil, err
	}

	if contentType == "html" && opts.Task == TaskTranslate && !opts.PreserveFormatting {
		out = setDocumentLanguage(out, opts.TargetLang)
	}

	stats.ProcessingTime = time.Since(start)
	log.Info("processing complete",
		slog.Int("spans", stats.SpansTotal),
		slog.Int("cache_hits", stats.CacheHits),
		slog.Int("provider_calls", stats.ProviderCalls),
		slog.Int("retries", stats.Retries),
		slog.Duration("elapsed", stats.ProcessingTime),
	)

	return &ProcessingResult{HTML: out, Stats: stats}, nil
}

// submitMisses batches the unique cache misses and submits the batches
// concurrently. Results land in the results slice indexed by span ID, so
// final ordering never depends on call-completion order.
func (p *Pipeline) submitMisses(
	ctx context.Context,
	spans []TextSpan,
	opts ProcessingOptions,
	missOrder []string,
	missSpans map[string][]int,
	results []string,
	stats *Stats,
	useCache bool,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	var mu sync.Mutex

	for begin := 0; begin < len(missOrder); begin += p.batchSize {
		end := begin + p.batchSize
		if end > len(missOrder) {
			end = len(missOrder)
		}
		keys := missOrder[begin:end]

		g.Go(func() error {
			texts := make([]string, len(keys))
			rtl := IsRTL(opts.TargetLang)
			for i, k := range keys {
				rep := spans[missSpans[k][0]]
				texts[i] = rep.Text
				if rep.RTL() {
					rtl = true
				}
			}

			req := Request{
				Task:        opts.Task,
				Texts:       texts,
				SourceLang:  opts.SourceLang,
				TargetLang:  opts.TargetLang,
				Model:       opts.Model,
				Temperature: opts.Temperature,
				MaxTokens:   opts.MaxTokens,
				ExtraPrompt: opts.ExtraPrompt,
				RTL:         rtl,
			}

			comp, retries, err := WithRetry(gctx, p.retry, func() (*Completion, error) {
				return p.provider.Submit(gctx, req)
			})

			mu.Lock()
			stats.Retries += retries
			mu.Unlock()

			if err != nil {
				return tagAttempts(err, retries+1)
			}
			if len(comp.Texts) != len(keys) {
				return &CountMismatchError{Expected: len(keys), Got: len(comp.Texts)}
			}

			mu.Lock()
			stats.TokensIn += comp.TokensIn
			stats.TokensOut += comp.TokensOut
			stats.ProviderCalls++
			mu.Unlock()

			for i, k := range keys {
				for _, id := range missSpans[k] {
					results[id] = comp.Texts[i]
				}
				if useCache {
					_ = p.cache.Set(k, comp.Texts[i]) // best effort
				}
			}

			return nil
		})
	}

	return g.Wait()
}

// setDocumentLanguage rewrites lang and dir on the root <html> element to
// match the target language. Span-level attributes are never touched.
func setDocumentLanguage(html, targetLang string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	htmlTag := doc.Find("html")
	if htmlTag.Length() == 0 {
		return html
	}
	htmlTag.SetAttr("lang", ToHTMLLang(targetLang))
	htmlTag.SetAttr("dir", GetDirection(targetLang))

	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}
