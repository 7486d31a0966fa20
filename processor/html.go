package processor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ZaguanLabs/docdedup"
)

const (
	noTranslateAttr = "data-no-translate"
	maxSiblingText  = 100
)

// HTMLProcessor extracts and applies translations to HTML content.
type HTMLProcessor struct {
	ignoredTags map[string]bool
}

// NewHTMLProcessor creates a new HTML processor with default ignored tags.
func NewHTMLProcessor() *HTMLProcessor {
	return &HTMLProcessor{
		ignoredTags: docdedup.IgnoredTags,
	}
}

// NewHTMLProcessorWithIgnoredTags creates a new HTML processor with custom ignored tags.
func NewHTMLProcessorWithIgnoredTags(tags []string) *HTMLProcessor {
	ignored := make(map[string]bool)
	for _, tag := range tags {
		ignored[strings.ToLower(tag)] = true
	}
	return &HTMLProcessor{
		ignoredTags: ignored,
	}
}

// Extract parses HTML and returns one segment per distinct text.
func (p *HTMLProcessor) Extract(content string) (interface{}, []Segment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, nil, &docdedup.ProcessorError{
			Message:     "failed to parse HTML",
			Cause:       err,
			ContentType: docdedup.ContentHTML,
		}
	}

	var segments []Segment
	seen := make(map[string]bool)

	p.eachText(doc, func(n *html.Node, trimmed string) {
		hash := docdedup.HashText(trimmed)
		if seen[hash] {
			return
		}
		seen[hash] = true

		seg := Segment{
			ID:       fmt.Sprintf("node-%d", len(segments)),
			Text:     trimmed,
			Hash:     hash,
			Kind:     "html_text",
			Context:  buildContext(n),
			Metadata: map[string]string{},
		}
		if n.Parent != nil {
			seg.Metadata["parent_tag"] = n.Parent.Data
		}
		segments = append(segments, seg)
	})

	return doc, segments, nil
}

// Apply writes translations into the parsed document and serializes it.
func (p *HTMLProcessor) Apply(parsed interface{}, segments []Segment, translations map[string]string) (string, error) {
	doc, ok := parsed.(*goquery.Document)
	if !ok {
		return "", &docdedup.ProcessorError{
			Message:     "invalid parsed content type",
			ContentType: docdedup.ContentHTML,
		}
	}

	p.eachText(doc, func(n *html.Node, trimmed string) {
		if translated, ok := translations[docdedup.HashText(trimmed)]; ok {
			n.Data = preserveWhitespace(n.Data, translated)
		}
	})

	out, err := doc.Html()
	if err != nil {
		return "", &docdedup.ProcessorError{
			Message:     "failed to serialize HTML",
			Cause:       err,
			ContentType: docdedup.ContentHTML,
		}
	}

	return out, nil
}

// ContentType returns "html".
func (p *HTMLProcessor) ContentType() string {
	return docdedup.ContentHTML
}

// eachText calls fn for every non-blank text node outside ignored subtrees.
func (p *HTMLProcessor) eachText(doc *goquery.Document, fn func(n *html.Node, trimmed string)) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && p.skip(n) {
			return
		}

		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				fn(n, trimmed)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range doc.Nodes {
		walk(n)
	}
}

func (p *HTMLProcessor) skip(n *html.Node) bool {
	if p.ignoredTags[strings.ToLower(n.Data)] {
		return true
	}
	for _, attr := range n.Attr {
		if attr.Key == noTranslateAttr {
			return true
		}
	}
	return false
}

// buildContext describes where a text node sits, to help the provider
// disambiguate short strings.
func buildContext(n *html.Node) string {
	parent := n.Parent
	if parent == nil {
		return ""
	}

	var parts []string

	var classAttr, idAttr string
	for _, attr := range parent.Attr {
		switch attr.Key {
		case "class":
			classAttr = attr.Val
		case "id":
			idAttr = attr.Val
		}
	}

	switch {
	case classAttr != "":
		parts = append(parts, fmt.Sprintf("in <%s class=\"%s\">", parent.Data, classAttr))
	case idAttr != "":
		parts = append(parts, fmt.Sprintf("in <%s id=\"%s\">", parent.Data, idAttr))
	default:
		parts = append(parts, fmt.Sprintf("in <%s>", parent.Data))
	}

	// Up to 3 sibling texts
	var siblings []string
	for sib := parent.FirstChild; sib != nil && len(siblings) < 3; sib = sib.NextSibling {
		if sib == n || sib.Type != html.TextNode {
			continue
		}
		if text := strings.TrimSpace(sib.Data); text != "" && len(text) < maxSiblingText {
			siblings = append(siblings, text)
		}
	}
	if len(siblings) > 0 {
		parts = append(parts, "with: "+strings.Join(siblings, ", "))
	}

	// Up to 3 ancestors, outermost first
	var ancestors []string
	ancestor := parent.Parent
	for i := 0; i < 3 && ancestor != nil; i++ {
		if ancestor.Type == html.ElementNode && ancestor.Data != "html" && ancestor.Data != "body" {
			ancestors = append([]string{ancestor.Data}, ancestors...)
		}
		ancestor = ancestor.Parent
	}
	if len(ancestors) > 0 {
		parts = append(parts, "inside: "+strings.Join(ancestors, " > "))
	}

	return strings.Join(parts, " | ")
}

// preserveWhitespace keeps the original leading and trailing whitespace
// around translated.
func preserveWhitespace(original, translated string) string {
	const ws = " \t\n\r"
	leading := original[:len(original)-len(strings.TrimLeft(original, ws))]
	trailing := original[len(strings.TrimRight(original, ws)):]
	return leading + translated + trailing
}

// Verify HTMLProcessor implements ContentProcessor
var _ ContentProcessor = (*HTMLProcessor)(nil)
