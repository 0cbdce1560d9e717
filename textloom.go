// Package textloom rewrites the human-readable text of an HTML document
// with an LLM backend while leaving the markup untouched.
//
// Textloom extracts text spans from a parsed document, sends them through
// an AI provider (OpenAI, Gemini, or a local HTTP model) to be translated,
// paraphrased, or summarized, then reinjects the results into the exact
// original tree positions. Right-to-left content keeps its direction and
// language attributes.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/textloom/textloom"
//	    "github.com/textloom/textloom/cache"
//	    "github.com/textloom/textloom/processor"
//	    "github.com/textloom/textloom/provider"
//	)
//
//	func main() {
//	    p := provider.NewOpenAIProvider(provider.OpenAIConfig{
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    })
//
//	    pipe := textloom.NewPipeline(p,
//	        textloom.WithCache(cache.NewInMemoryCache(3600)),
//	        textloom.WithProcessor(processor.NewHTMLProcessor()),
//	    )
//
//	    result, err := pipe.ProcessHTML(context.Background(), "<p>Hello World</p>", textloom.ProcessingOptions{
//	        Task:       textloom.TaskTranslate,
//	        SourceLang: "en",
//	        TargetLang: "es_ES",
//	        UseCache:   true,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(result.HTML) // <p>Hola Mundo</p>
//	}
package textloom
