package processor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/textloom/textloom"
	"golang.org/x/net/html"
)

// HTMLProcessor extracts text spans from HTML documents and reinjects
// transformed text at the recorded node paths. Extraction never mutates the
// tree; Apply only rewrites text node data.
type HTMLProcessor struct {
	ignoredTags   map[string]bool
	minTextLength int
}

// NewHTMLProcessor creates an HTML processor with the default ignored tags.
func NewHTMLProcessor() *HTMLProcessor {
	return &HTMLProcessor{
		ignoredTags:   textloom.IgnoredTags,
		minTextLength: 1,
	}
}

// NewHTMLProcessorWithIgnoredTags creates an HTML processor with custom
// ignored tags.
func NewHTMLProcessorWithIgnoredTags(tags []string) *HTMLProcessor {
	ignored := make(map[string]bool)
	for _, tag := range tags {
		ignored[strings.ToLower(tag)] = true
	}
	return &HTMLProcessor{
		ignoredTags:   ignored,
		minTextLength: 1,
	}
}

// SetMinTextLength sets the minimum trimmed length (in runes) a text node
// must have to become a span.
func (p *HTMLProcessor) SetMinTextLength(n int) {
	if n > 0 {
		p.minTextLength = n
	}
}

// parsedHTML holds the parsed document between Extract and Apply.
type parsedHTML struct {
	doc  *goquery.Document
	root *html.Node
}

// Extract parses HTML and produces the ordered spans plus the placement map
// that relocates each span without holding a live node reference. Reinjecting
// each span's own text reproduces the serialized input byte for byte.
func (p *HTMLProcessor) Extract(content string) (interface{}, []textloom.TextSpan, textloom.PlacementMap, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, nil, &textloom.ExtractionError{Message: "empty document"}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, nil, nil, &textloom.ExtractionError{Message: "failed to parse HTML", Cause: err}
	}
	root := doc.Nodes[0]

	var spans []textloom.TextSpan
	var placement textloom.PlacementMap

	var walk func(n *html.Node, path textloom.NodePath, dir, lang string)
	walk = func(n *html.Node, path textloom.NodePath, dir, lang string) {
		switch n.Type {
		case html.CommentNode, html.DoctypeNode:
			return

		case html.ElementNode:
			if p.ignoredTags[strings.ToLower(n.Data)] {
				return
			}
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "data-no-transform":
					return
				case "dir":
					dir = attr.Val
				case "lang":
					lang = attr.Val
				}
			}

		case html.TextNode:
			body := strings.TrimLeftFunc(n.Data, unicode.IsSpace)
			leading := n.Data[:len(n.Data)-len(body)]
			text := strings.TrimRightFunc(body, unicode.IsSpace)
			trailing := body[len(text):]

			if len([]rune(text)) >= p.minTextLength {
				span := textloom.TextSpan{
					ID:       len(spans),
					Text:     text,
					Leading:  leading,
					Trailing: trailing,
					Path:     path.Clone(),
					Dir:      dir,
					Lang:     lang,
				}
				spans = append(spans, span)
				placement = append(placement, span.Path)
			}
			return
		}

		idx := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, append(path, idx), dir, lang)
			idx++
		}
	}

	walk(root, nil, "", "")

	return &parsedHTML{doc: doc, root: root}, spans, placement, nil
}

// Apply writes the transformed span texts back at their placements and
// serializes the document. Every span ID must appear exactly once in the
// placement map; any mismatch is a programming error and fails the call.
func (p *HTMLProcessor) Apply(parsed interface{}, spans []textloom.TextSpan, placement textloom.PlacementMap) (string, error) {
	ph, ok := parsed.(*parsedHTML)
	if !ok {
		return "", &textloom.ReinjectionError{Message: "invalid parsed content type"}
	}

	if len(spans) != len(placement) {
		return "", &textloom.ReinjectionError{
			Message:  "span count does not match placement map",
			Expected: len(placement),
			Got:      len(spans),
		}
	}

	seen := make([]bool, len(placement))
	for _, s := range spans {
		if s.ID < 0 || s.ID >= len(placement) {
			return "", &textloom.ReinjectionError{Message: fmt.Sprintf("span id %d absent from placement map", s.ID)}
		}
		if seen[s.ID] {
			return "", &textloom.ReinjectionError{Message: fmt.Sprintf("span id %d appears more than once", s.ID)}
		}
		seen[s.ID] = true

		n := resolvePath(ph.root, placement[s.ID])
		if n == nil || n.Type != html.TextNode {
			return "", &textloom.ReinjectionError{Message: "path does not resolve to a text node: " + placement[s.ID].String()}
		}

		n.Data = s.Leading + s.Text + s.Trailing
	}

	out, err := ph.doc.Html()
	if err != nil {
		return "", fmt.Errorf("serializing document: %w", err)
	}
	return out, nil
}

// ContentType returns "html".
func (p *HTMLProcessor) ContentType() string {
	return "html"
}

// Serialize renders the parsed document without modifying it. Useful for
// comparing identity reinjection against the serializer's own output.
func (p *HTMLProcessor) Serialize(parsed interface{}) (string, error) {
	ph, ok := parsed.(*parsedHTML)
	if !ok {
		return "", &textloom.ReinjectionError{Message: "invalid parsed content type"}
	}
	return ph.doc.Html()
}

// resolvePath walks child indices from the document root.
func resolvePath(root *html.Node, path textloom.NodePath) *html.Node {
	n := root
	for _, idx := range path {
		c := n.FirstChild
		for i := 0; c != nil && i < idx; i++ {
			c = c.NextSibling
		}
		if c == nil {
			return nil
		}
		n = c
	}
	return n
}

// Verify HTMLProcessor implements ContentProcessor
var _ ContentProcessor = (*HTMLProcessor)(nil)
