// Command textloom rewrites the text of HTML files with an LLM backend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/textloom/textloom"
	"github.com/textloom/textloom/cache"
	"github.com/textloom/textloom/processor"
	"github.com/textloom/textloom/provider"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = textloom.Version
	commit    = textloom.GitCommit
	buildDate = textloom.BuildDate
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("textloom", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Flags
	task := fs.String("task", "paraphrase", "Task: translate, paraphrase, summarize, custom")
	sourceLang := fs.String("source", "en", "Source language code (e.g., en, he_IL)")
	targetLang := fs.String("lang", "", "Target language code (required for translate)")
	model := fs.String("model", "gpt-4o-mini", "Model identifier (selects the backend)")
	temperature := fs.Float64("temperature", 0.7, "Sampling temperature")
	maxTokens := fs.Int("max-tokens", 2048, "Per-call output token bound")
	extraPrompt := fs.String("prompt", "", "Extra instructions for -task custom")
	output := fs.String("output", "", "Output file (default: stdout)")
	outputShort := fs.String("o", "", "Output file (short for --output)")
	apiKey := fs.String("api-key", "", "API key (default: backend env var)")
	baseURL := fs.String("base-url", "", "Custom backend endpoint")
	cacheTTL := fs.Int("cache-ttl", 3600, "Cache TTL in seconds (0 to disable the cache)")
	timeout := fs.Duration("timeout", 0, "Overall processing deadline (0 = none)")
	batchSize := fs.Int("batch", 10, "Maximum spans per prompt")
	preserve := fs.Bool("preserve-formatting", false, "Never adjust document-level lang/dir attributes")
	showVersion := fs.Bool("version", false, "Show version")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	dryRun := fs.Bool("dry-run", false, "Show what would be processed without calling a backend")
	jsonOutput := fs.Bool("json", false, "Output result as JSON")
	diffFile := fs.String("diff", "", "Compare with a previous version and show changes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "%s %s\n", textloom.Name, version)
		if commit != "unknown" && commit != "" {
			fmt.Fprintf(stdout, "  commit:  %s\n", commit)
		}
		if buildDate != "unknown" && buildDate != "" {
			fmt.Fprintf(stdout, "  built:   %s\n", buildDate)
		}
		return nil
	}

	// Handle -o alias for --output
	if *outputShort != "" && *output == "" {
		*output = *outputShort
	}

	taskValue := textloom.Task(*task)
	switch taskValue {
	case textloom.TaskTranslate, textloom.TaskParaphrase, textloom.TaskSummarize, textloom.TaskCustom:
	default:
		return fmt.Errorf("unknown task %q", *task)
	}

	if taskValue == textloom.TaskTranslate && *targetLang == "" {
		fs.Usage()
		return fmt.Errorf("--lang is required for -task translate")
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	if *quiet {
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel}))

	// Get input
	var input string
	var inputName string

	if fs.NArg() == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		input = string(data)
		inputName = "stdin"
	} else {
		inputPath := fs.Arg(0)
		data, err := os.ReadFile(inputPath) // #nosec G304 - CLI tool reads user-specified files
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		input = string(data)
		inputName = filepath.Base(inputPath)
	}

	if *diffFile != "" {
		return runDiff(input, *diffFile, inputName, stdout, *jsonOutput)
	}

	if *dryRun {
		return runDryRun(input, inputName, stdout, *jsonOutput)
	}

	// Pick the backend from the model identifier
	p, err := provider.FromModel(*model, provider.Config{
		APIKey:  *apiKey,
		BaseURL: *baseURL,
	})
	if err != nil {
		return err
	}

	pipeOpts := []textloom.PipelineOption{
		textloom.WithProcessor(processor.NewHTMLProcessor()),
		textloom.WithBatchSize(*batchSize),
		textloom.WithLogger(logger),
	}

	useCache := *cacheTTL > 0
	if useCache {
		pipeOpts = append(pipeOpts, textloom.WithCache(cache.NewInMemoryCache(*cacheTTL)))
	}

	pipe := textloom.NewPipeline(p, pipeOpts...)

	opts := textloom.ProcessingOptions{
		Task:               taskValue,
		SourceLang:         *sourceLang,
		TargetLang:         *targetLang,
		Model:              *model,
		Temperature:        float32(*temperature),
		MaxTokens:          *maxTokens,
		ExtraPrompt:        *extraPrompt,
		PreserveFormatting: *preserve,
		UseCache:           useCache,
		Timeout:            *timeout,
	}

	if !*quiet {
		fmt.Fprintf(stderr, "Processing %s (%s, model %s)...\n", inputName, taskValue, *model)
	}

	result, err := pipe.ProcessHTML(context.Background(), input, opts)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	// Output
	var out io.Writer = stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if *jsonOutput {
		return outputJSON(out, result)
	}

	fmt.Fprint(out, result.HTML)

	if !*quiet {
		s := result.Stats
		fmt.Fprintf(stderr, "\nDone in %v\n", s.ProcessingTime.Round(time.Millisecond))
		fmt.Fprintf(stderr, "  Spans found:    %d\n", s.SpansTotal)
		fmt.Fprintf(stderr, "  From cache:     %d\n", s.CacheHits)
		fmt.Fprintf(stderr, "  Provider calls: %d\n", s.ProviderCalls)
		fmt.Fprintf(stderr, "  Retries:        %d\n", s.Retries)
		fmt.Fprintf(stderr, "  Tokens in/out:  %d/%d\n", s.TokensIn, s.TokensOut)
	}

	return nil
}

// outputJSON writes the processed document and stats as JSON.
func outputJSON(w io.Writer, result *textloom.ProcessingResult) error {
	type jsonOutput struct {
		HTML  string `json:"html"`
		Stats struct {
			TokensIn       int     `json:"tokens_in"`
			TokensOut      int     `json:"tokens_out"`
			ProcessingSecs float64 `json:"processing_time_seconds"`
			CacheHits      int     `json:"cache_hits"`
			Retries        int     `json:"retries"`
			SpansTotal     int     `json:"spans_total"`
			ProviderCalls  int     `json:"provider_calls"`
			InvocationID   string  `json:"invocation_id"`
		} `json:"stats"`
	}

	out := jsonOutput{HTML: result.HTML}
	out.Stats.TokensIn = result.Stats.TokensIn
	out.Stats.TokensOut = result.Stats.TokensOut
	out.Stats.ProcessingSecs = result.Stats.ProcessingTime.Seconds()
	out.Stats.CacheHits = result.Stats.CacheHits
	out.Stats.Retries = result.Stats.Retries
	out.Stats.SpansTotal = result.Stats.SpansTotal
	out.Stats.ProviderCalls = result.Stats.ProviderCalls
	out.Stats.InvocationID = result.Stats.InvocationID

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// runDryRun shows what would be processed without calling a backend.
func runDryRun(input, inputName string, stdout io.Writer, jsonOut bool) error {
	proc := processor.NewHTMLProcessor()
	_, spans, _, err := proc.Extract(input)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}

	if jsonOut {
		type dryRunOutput struct {
			InputFile string   `json:"input_file"`
			SpanCount int      `json:"span_count"`
			Texts     []string `json:"texts"`
		}

		texts := make([]string, len(spans))
		for i, s := range spans {
			texts[i] = s.Text
		}

		out := dryRunOutput{
			InputFile: inputName,
			SpanCount: len(spans),
			Texts:     texts,
		}

		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(stdout, "Dry run: %s\n", inputName)
	fmt.Fprintf(stdout, "Found %d processable text spans:\n\n", len(spans))

	for _, s := range spans {
		text := s.Text
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		fmt.Fprintf(stdout, "%3d. %q\n", s.ID+1, text)
		if s.Dir != "" || s.Lang != "" {
			fmt.Fprintf(stdout, "     dir=%q lang=%q\n", s.Dir, s.Lang)
		}
	}

	return nil
}

// runDiff compares the new content with a previous version and reports the
// spans that would need a fresh provider call.
func runDiff(newContent, oldPath, inputName string, stdout io.Writer, jsonOut bool) error {
	oldData, err := os.ReadFile(oldPath) // #nosec G304 - CLI tool reads user-specified files
	if err != nil {
		return fmt.Errorf("reading previous version: %w", err)
	}

	proc := processor.NewHTMLProcessor()

	_, oldSpans, _, err := proc.Extract(string(oldData))
	if err != nil {
		return fmt.Errorf("parsing previous version: %w", err)
	}

	_, newSpans, _, err := proc.Extract(newContent)
	if err != nil {
		return fmt.Errorf("parsing new version: %w", err)
	}

	diff := textloom.DiffSpansWithPosition(oldSpans, newSpans)
	stats := diff.Stats()

	if jsonOut {
		type diffOutput struct {
			InputFile    string `json:"input_file"`
			PreviousFile string `json:"previous_file"`
			Stats        struct {
				Added     int `json:"added"`
				Removed   int `json:"removed"`
				Modified  int `json:"modified"`
				Unchanged int `json:"unchanged"`
			} `json:"stats"`
			NeedsProcessing []string `json:"needs_processing"`
		}

		out := diffOutput{
			InputFile:    inputName,
			PreviousFile: filepath.Base(oldPath),
		}
		out.Stats.Added = stats.Added
		out.Stats.Removed = stats.Removed
		out.Stats.Modified = stats.Modified
		out.Stats.Unchanged = stats.Unchanged

		for _, s := range diff.NeedsProcessing() {
			out.NeedsProcessing = append(out.NeedsProcessing, s.Text)
		}

		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(stdout, "Diff: %s vs %s\n\n", inputName, filepath.Base(oldPath))
	fmt.Fprintf(stdout, "Summary:\n")
	fmt.Fprintf(stdout, "  Unchanged: %d\n", stats.Unchanged)
	fmt.Fprintf(stdout, "  Added:     %d\n", stats.Added)
	fmt.Fprintf(stdout, "  Removed:   %d\n", stats.Removed)
	fmt.Fprintf(stdout, "  Modified:  %d\n", stats.Modified)

	needs := diff.NeedsProcessing()
	if len(needs) > 0 {
		fmt.Fprintf(stdout, "\nSpans needing a fresh provider call:\n")
		for i, s := range needs {
			text := s.Text
			if len(text) > 60 {
				text = text[:57] + "..."
			}
			fmt.Fprintf(stdout, "%3d. %q\n", i+1, text)
		}
	}

	return nil
}
