package textloom_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/textloom/textloom"
	"github.com/textloom/textloom/cache"
	"github.com/textloom/textloom/processor"
	"github.com/textloom/textloom/provider"
)

func benchmarkDocument(paragraphs int) string {
	var b strings.Builder
	b.WriteString("<html><body><h1>Benchmark document</h1>")
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "<p>Paragraph number %d with some moderately long text content.</p>", i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func BenchmarkProcessHTML(b *testing.B) {
	input := benchmarkDocument(20)
	p := textloom.NewPipeline(provider.NewEchoProvider(),
		textloom.WithProcessor(processor.NewHTMLProcessor()),
		textloom.WithLogger(quietLogger()),
	)
	opts := textloom.ProcessingOptions{Task: textloom.TaskParaphrase}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.ProcessHTML(context.Background(), input, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkProcessHTML_Cached(b *testing.B) {
	input := benchmarkDocument(20)
	p := textloom.NewPipeline(provider.NewEchoProvider(),
		textloom.WithProcessor(processor.NewHTMLProcessor()),
		textloom.WithCache(cache.NewInMemoryCache(0)),
		textloom.WithLogger(quietLogger()),
	)
	opts := textloom.ProcessingOptions{Task: textloom.TaskParaphrase, UseCache: true}

	// Warm the cache outside the timed loop.
	if _, err := p.ProcessHTML(context.Background(), input, opts); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.ProcessHTML(context.Background(), input, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExtract(b *testing.B) {
	input := benchmarkDocument(50)
	proc := processor.NewHTMLProcessor()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, _, err := proc.Extract(input); err != nil {
			b.Fatal(err)
		}
	}
}
