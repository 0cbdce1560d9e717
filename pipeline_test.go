package textloom

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeProcessor splits content on "|" so orchestration can be tested
// without real HTML parsing.
type fakeProcessor struct {
	dir string
}

func (f *fakeProcessor) Extract(content string) (interface{}, []TextSpan, PlacementMap, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, nil, &ExtractionError{Message: "empty document"}
	}
	parts := strings.Split(content, "|")
	spans := make([]TextSpan, len(parts))
	placement := make(PlacementMap, len(parts))
	for i, p := range parts {
		spans[i] = TextSpan{ID: i, Text: p, Path: NodePath{i}, Dir: f.dir}
		placement[i] = NodePath{i}
	}
	return parts, spans, placement, nil
}

func (f *fakeProcessor) Apply(parsed interface{}, spans []TextSpan, placement PlacementMap) (string, error) {
	if len(spans) != len(placement) {
		return "", &ReinjectionError{Message: "span count mismatch", Expected: len(placement), Got: len(spans)}
	}
	out := make([]string, len(spans))
	for _, s := range spans {
		out[s.ID] = s.Text
	}
	return strings.Join(out, "|"), nil
}

func (f *fakeProcessor) ContentType() string { return "text" }

// scriptedProvider records requests and applies a transform per text.
type scriptedProvider struct {
	mu        sync.Mutex
	requests  []Request
	transform func(string) string
	failures  int
	failErr   error
}

func (s *scriptedProvider) Submit(ctx context.Context, req Request) (*Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.failures > 0 {
		s.failures--
		return nil, s.failErr
	}
	texts := make([]string, len(req.Texts))
	for i, t := range req.Texts {
		if s.transform != nil {
			texts[i] = s.transform(t)
		} else {
			texts[i] = t
		}
	}
	return &Completion{Texts: texts, TokensIn: len(req.Texts), TokensOut: len(req.Texts)}, nil
}

func (s *scriptedProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedProvider) lastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

// mapCache is a recording in-process cache for orchestration tests.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	gets int
	sets int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func upper(s string) string { return strings.ToUpper(s) }

func TestPipeline_MissingProcessor(t *testing.T) {
	p := NewPipeline(&scriptedProvider{})
	_, err := p.Process(context.Background(), "hello", "html", ProcessingOptions{Task: TaskParaphrase})
	if err == nil || !strings.Contains(err.Error(), "no processor registered") {
		t.Fatalf("expected missing processor error, got %v", err)
	}
}

func TestPipeline_NoOpTranslate(t *testing.T) {
	prov := &scriptedProvider{transform: upper}
	p := NewPipeline(prov, WithProcessor(&fakeProcessor{}))

	result, err := p.Process(context.Background(), "hello|world", "text", ProcessingOptions{
		Task:       TaskTranslate,
		SourceLang: "en",
		TargetLang: "en_US",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HTML != "hello|world" {
		t.Errorf("same-language translate should pass content through, got %q", result.HTML)
	}
	if prov.callCount() != 0 {
		t.Errorf("expected zero provider calls, got %d", prov.callCount())
	}
}

func TestPipeline_ExtractionErrorPropagates(t *testing.T) {
	p := NewPipeline(&scriptedProvider{}, WithProcessor(&fakeProcessor{}))
	_, err := p.Process(context.Background(), "   ", "text", ProcessingOptions{Task: TaskParaphrase})

	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestPipeline_TransformsSpans(t *testing.T) {
	prov := &scriptedProvider{transform: upper}
	p := NewPipeline(prov, WithProcessor(&fakeProcessor{}))

	result, err := p.Process(context.Background(), "hello|world", "text", ProcessingOptions{Task: TaskParaphrase})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HTML != "HELLO|WORLD" {
		t.Errorf("got %q", result.HTML)
	}
	if result.Stats.SpansTotal != 2 {
		t.Errorf("expected 2 spans, got %d", result.Stats.SpansTotal)
	}
	if result.Stats.InvocationID == "" {
		t.Error("expected an invocation id")
	}
}

func TestPipeline_DeduplicatesIdenticalTexts(t *testing.T) {
	prov := &scriptedProvider{transform: upper}
	p := NewPipeline(prov, WithProcessor(&fakeProcessor{}))

	result, err := p.Process(context.Background(), "echo|other|echo", "text", ProcessingOptions{Task: TaskParaphrase})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HTML != "ECHO|OTHER|ECHO" {
		t.Errorf("got %q", result.HTML)
	}
	if prov.callCount() != 1 {
		t.Fatalf("expected 1 provider call, got %d", prov.callCount())
	}
	if got := len(prov.lastRequest().Texts); got != 2 {
		t.Errorf("duplicates should collapse to 2 unique texts, got %d", got)
	}
}

func TestPipeline_Batching(t *testing.T) {
	prov := &scriptedProvider{transform: upper}
	p := NewPipeline(prov, WithProcessor(&fakeProcessor{}), WithBatchSize(2), WithConcurrency(1))

	result, err := p.Process(context.Background(), "a|b|c|d|e", "text", ProcessingOptions{Task: TaskParaphrase})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HTML != "A|B|C|D|E" {
		t.Errorf("got %q", result.HTML)
	}
	if result.Stats.ProviderCalls != 3 {
		t.Errorf("5 spans at batch size 2 should take 3 calls, got %d", result.Stats.ProviderCalls)
	}
}

func TestPipeline_CacheRoundTrip(t *testing.T) {
	prov := &scriptedProvider{transform: upper}
	cache := newMapCache()
	p := NewPipeline(prov, WithProcessor(&fakeProcessor{}), WithCache(cache))

	opts := ProcessingOptions{Task: TaskParaphrase, UseCache: true}

	first, err := p.Process(context.Background(), "hello|world", "text", opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Stats.CacheHits != 0 {
		t.Errorf("first run should miss, got %d hits", first.Stats.CacheHits)
	}

	second, err := p.Process(context.Background(), "hello|world", "text", opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Stats.CacheHits != second.Stats.SpansTotal {
		t.Errorf("second run should hit for every span: hits=%d spans=%d",
			second.Stats.CacheHits, second.Stats.SpansTotal)
	}
	if second.Stats.ProviderCalls != 0 {
		t.Errorf("second run should not call the provider, got %d calls", second.Stats.ProviderCalls)
	}
	if prov.callCount() != 1 {
		t.Errorf("provider should have been called once in total, got %d", prov.callCount())
	}
	if first.HTML != second.HTML {
		t.Errorf("cached run must be byte-identical: %q vs %q", first.HTML, second.HTML)
	}
}

func TestPipeline_CacheBypass(t *testing.T) {
	prov := &scriptedProvider{transform: upper}
	cache := newMapCache()
	p := NewPipeline(prov, WithProcessor(&fakeProcessor{}), WithCache(cache))

	opts := ProcessingOptions{Task: TaskParaphrase, UseCache: false}

	for i := 0; i < 2; i++ {
		result, err := p.Process(context.Background(), "hello|world", "text", opts)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if result.Stats.CacheHits != 0 {
			t.Errorf("run %d: bypass should never hit, got %d", i, result.Stats.CacheHits)
		}
	}
	if cache.gets != 0 || cache.sets != 0 {
		t.Errorf("bypass should not touch the cache: gets=%d sets=%d", cache.gets, cache.sets)
	}
	if prov.callCount() != 2 {
		t.Errorf("expected 2 provider calls, got %d", prov.callCount())
	}
}

func TestPipeline_NilProviderWithMisses(t *testing.T) {
	p := NewPipeline(nil, WithProcessor(&fakeProcessor{}))
	_, err := p.Process(context.Background(), "hello", "text", ProcessingOptions{Task: TaskParaphrase})

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestPipeline_CountMismatchIsFatal(t *testing.T) {
	prov := &oversizedProvider{}
	p := NewPipeline(prov, WithProcessor(&fakeProcessor{}))

	result, err := p.Process(context.Background(), "hello|world", "text", ProcessingOptions{Task: TaskParaphrase})
	if result != nil {
		t.Error("no result should be produced on mismatch")
	}
	var cm *CountMismatchError
	if !errors.As(err, &cm) {
		t.Fatalf("expected CountMismatchError, got %v", err)
	}
	if cm.Expected != 2 || cm.Got != 3 {
		t.Errorf("unexpected counts: %+v", cm)
	}
}

// oversizedProvider always returns one extra text.
type oversizedProvider struct{}

func (o *oversizedProvider) Submit(ctx context.Context, req Request) (*Completion, error) {
	texts := append(append([]string{}, req.Texts...), "surplus")
	return &Completion{Texts: texts}, nil
}

func TestPipeline_ReinjectionMismatchIsFatal(t *testing.T) {
	p := NewPipeline(&scriptedProvider{}, WithProcessor(&driftingProcessor{}))

	result, err := p.Process(context.Background(), "hello", "text", ProcessingOptions{Task: TaskParaphrase})
	if result != nil {
		t.Error("no result should be produced on reinjection mismatch")
	}
	var re *ReinjectionError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReinjectionError, got %v", err)
	}
}

// driftingProcessor reports one more placement than it has spans.
type driftingProcessor struct {
	fakeProcessor
}

func (d *driftingProcessor) Extract(content string) (interface{}, []TextSpan, PlacementMap, error) {
	parsed, spans, placement, err := d.fakeProcessor.Extract(content)
	if err != nil {
		return nil, nil, nil, err
	}
	placement = append(placement, NodePath{99})
	return parsed, spans, placement, nil
}

func TestPipeline_RetriesCounted(t *testing.T) {
	prov := &scriptedProvider{
		transform: upper,
		failures:  2,
		failErr:   &ProviderError{Message: "overloaded", Retryable: true},
	}
	p := NewPipeline(prov,
		WithProcessor(&fakeProcessor{}),
		WithRetryConfig(fastRetryConfig(3)),
	)

	result, err := p.Process(context.Background(), "hello", "text", ProcessingOptions{Task: TaskParaphrase})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Retries != 2 {
		t.Errorf("expected 2 retries recorded, got %d", result.Stats.Retries)
	}
	if result.HTML != "HELLO" {
		t.Errorf("got %q", result.HTML)
	}
}

func TestPipeline_FatalProviderErrorAbortsAfterOneAttempt(t *testing.T) {
	prov := &scriptedProvider{
		failures: 10,
		failErr:  &ProviderError{Message: "invalid api key", Retryable: false},
	}
	p := NewPipeline(prov,
		WithProcessor(&fakeProcessor{}),
		WithRetryConfig(fastRetryConfig(3)),
	)

	result, err := p.Process(context.Background(), "hello", "text", ProcessingOptions{Task: TaskParaphrase})
	if result != nil {
		t.Error("no result should be produced on fatal provider error")
	}
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if prov.callCount() != 1 {
		t.Errorf("fatal error should abort after 1 attempt, got %d", prov.callCount())
	}
}

func TestPipeline_Timeout(t *testing.T) {
	p := NewPipeline(&slowProvider{delay: time.Second},
		WithProcessor(&fakeProcessor{}),
		WithRetryConfig(fastRetryConfig(0)),
	)

	_, err := p.Process(context.Background(), "hello", "text", ProcessingOptions{
		Task:    TaskParaphrase,
		Timeout: 20 * time.Millisecond,
	})

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout should wrap context.DeadlineExceeded")
	}
}

// slowProvider stalls until the context is cancelled or delay elapses.
type slowProvider struct {
	delay time.Duration
}

func (s *slowProvider) Submit(ctx context.Context, req Request) (*Completion, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
		return &Completion{Texts: req.Texts}, nil
	}
}

func TestPipeline_RTLFlagFromTargetLanguage(t *testing.T) {
	prov := &scriptedProvider{}
	p := NewPipeline(prov, WithProcessor(&fakeProcessor{}))

	_, err := p.Process(context.Background(), "hello", "text", ProcessingOptions{
		Task:       TaskTranslate,
		SourceLang: "en",
		TargetLang: "he_IL",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prov.lastRequest().RTL {
		t.Error("request should be flagged RTL for a right-to-left target")
	}
}

func TestPipeline_RTLFlagFromSpanDirection(t *testing.T) {
	prov := &scriptedProvider{}
	p := NewPipeline(prov, WithProcessor(&fakeProcessor{dir: "rtl"}))

	// Target language is LTR here, so the flag can only come from the spans.
	_, err := p.Process(context.Background(), "שלום", "text", ProcessingOptions{
		Task:       TaskParaphrase,
		SourceLang: "en",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prov.lastRequest().RTL {
		t.Error("request should be flagged RTL when spans carry dir=rtl")
	}
}

func TestSetDocumentLanguage(t *testing.T) {
	in := `<html lang="en"><head></head><body><p>hi</p></body></html>`
	out := setDocumentLanguage(in, "he_IL")

	if !strings.Contains(out, `lang="he-IL"`) {
		t.Errorf("expected lang rewrite, got %s", out)
	}
	if !strings.Contains(out, `dir="rtl"`) {
		t.Errorf("expected dir rewrite, got %s", out)
	}
	if !strings.Contains(out, "<p>hi</p>") {
		t.Errorf("body should be untouched, got %s", out)
	}
}
