package textloom

import (
	"strconv"
	"strings"
	"time"
)

// Task selects the transformation applied to extracted text.
type Task string

const (
	// TaskTranslate translates text from SourceLang to TargetLang.
	TaskTranslate Task = "translate"
	// TaskParaphrase rewrites text in the same language with different wording.
	TaskParaphrase Task = "paraphrase"
	// TaskSummarize condenses text while keeping the key points.
	TaskSummarize Task = "summarize"
	// TaskCustom applies the instructions in ProcessingOptions.ExtraPrompt.
	TaskCustom Task = "custom"
)

// ProcessingOptions configures one pipeline invocation. Treated as immutable
// once passed to Process.
type ProcessingOptions struct {
	Task               Task
	SourceLang         string        // language of the input text (default: "en")
	TargetLang         string        // translation target; defaults to SourceLang for non-translate tasks
	Model              string        // model identifier forwarded to the provider
	Temperature        float32       // sampling temperature (default: 0.7)
	MaxTokens          int           // per-call output token bound (default: 2048)
	ExtraPrompt        string        // instructions for TaskCustom
	PreserveFormatting bool          // when true, document-level lang/dir attributes are never adjusted
	UseCache           bool          // read and write the response cache for this invocation
	Timeout            time.Duration // overall invocation deadline (0 = none)
}

// withDefaults fills unset option fields.
func (o ProcessingOptions) withDefaults() ProcessingOptions {
	if o.Task == "" {
		o.Task = TaskParaphrase
	}
	if o.SourceLang == "" {
		o.SourceLang = "en"
	}
	if o.TargetLang == "" {
		o.TargetLang = o.SourceLang
	}
	if o.Temperature == 0 {
		o.Temperature = 0.7
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 2048
	}
	return o
}

// NodePath locates a node as the sequence of child indices from the document
// root. Paths stay valid as long as the tree is not structurally mutated,
// which extraction guarantees.
type NodePath []int

// Clone returns an independent copy of the path.
func (p NodePath) Clone() NodePath {
	c := make(NodePath, len(p))
	copy(c, p)
	return c
}

// String renders the path as a slash-joined index list.
func (p NodePath) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, "/")
}

// TextSpan is one extractable run of text from a single HTML text node.
// IDs are sequential in document order.
type TextSpan struct {
	ID       int      // sequence index, stable within one extraction
	Text     string   // trimmed text content
	Leading  string   // whitespace preceding Text in the original node
	Trailing string   // whitespace following Text in the original node
	Path     NodePath // structural location of the owning text node
	Dir      string   // dir attribute in effect at the container ("", "ltr", "rtl")
	Lang     string   // lang attribute in effect at the container
}

// RTL reports whether the span's container renders right-to-left, either via
// an explicit dir attribute or an RTL lang attribute.
func (s TextSpan) RTL() bool {
	if s.Dir != "" {
		return strings.EqualFold(s.Dir, "rtl")
	}
	return IsRTL(s.Lang)
}

// PlacementMap maps span IDs (the slice index) to node paths. Every span
// produced by extraction appears exactly once.
type PlacementMap []NodePath

// Stats aggregates usage and timing for one invocation.
type Stats struct {
	TokensIn       int           // prompt tokens across all provider calls
	TokensOut      int           // completion tokens across all provider calls
	ProcessingTime time.Duration // wall-clock time for the invocation
	CacheHits      int           // spans served from the response cache
	Retries        int           // provider retries performed
	SpansTotal     int           // extractable spans found
	ProviderCalls  int           // live provider calls issued
	InvocationID   string        // correlates log lines for this invocation
}

// ProcessingResult is the outcome of a successful invocation.
type ProcessingResult struct {
	HTML  string
	Stats Stats
}

// IgnoredTags contains HTML tags whose content is never extracted.
var IgnoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"code":     true,
	"pre":      true,
	"textarea": true,
	"noscript": true,
}
