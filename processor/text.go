package processor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ZaguanLabs/docdedup"
)

// paragraphBreak matches a blank line, including whitespace-only lines.
var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n(?:[ \t\r]*\n)*`)

// TextProcessor translates plain text paragraph by paragraph. Paragraph
// breaks and surrounding whitespace are kept as they are.
type TextProcessor struct{}

// NewTextProcessor creates a plain text processor.
func NewTextProcessor() *TextProcessor {
	return &TextProcessor{}
}

// parsedText is the document cut into alternating paragraph and break chunks.
type parsedText struct {
	chunks  []string
	isBreak []bool
}

// Extract splits content into paragraphs and returns one segment per
// distinct paragraph.
func (p *TextProcessor) Extract(content string) (interface{}, []Segment, error) {
	parsed := splitParagraphs(content)

	var paragraphs []string
	for i, chunk := range parsed.chunks {
		if !parsed.isBreak[i] && strings.TrimSpace(chunk) != "" {
			paragraphs = append(paragraphs, chunk)
		}
	}

	var segments []Segment
	seen := make(map[string]bool)
	for i, para := range paragraphs {
		trimmed := strings.TrimSpace(para)
		hash := docdedup.HashText(trimmed)
		if seen[hash] {
			continue
		}
		seen[hash] = true

		segments = append(segments, Segment{
			ID:      fmt.Sprintf("para-%d", i),
			Text:    trimmed,
			Hash:    hash,
			Kind:    "paragraph",
			Context: fmt.Sprintf("paragraph %d of %d", i+1, len(paragraphs)),
			Metadata: map[string]string{
				"index": fmt.Sprint(i),
			},
		})
	}

	return parsed, segments, nil
}

// Apply replaces every paragraph that has a translation.
func (p *TextProcessor) Apply(parsed interface{}, segments []Segment, translations map[string]string) (string, error) {
	pt, ok := parsed.(*parsedText)
	if !ok {
		return "", &docdedup.ProcessorError{
			Message:     "invalid parsed content type",
			ContentType: docdedup.ContentText,
		}
	}

	var b strings.Builder
	for i, chunk := range pt.chunks {
		if !pt.isBreak[i] {
			if trimmed := strings.TrimSpace(chunk); trimmed != "" {
				if translated, ok := translations[docdedup.HashText(trimmed)]; ok {
					chunk = preserveWhitespace(chunk, translated)
				}
			}
		}
		b.WriteString(chunk)
	}

	return b.String(), nil
}

// ContentType returns "text".
func (p *TextProcessor) ContentType() string {
	return docdedup.ContentText
}

func splitParagraphs(content string) *parsedText {
	pt := &parsedText{}
	last := 0
	for _, loc := range paragraphBreak.FindAllStringIndex(content, -1) {
		pt.chunks = append(pt.chunks, content[last:loc[0]], content[loc[0]:loc[1]])
		pt.isBreak = append(pt.isBreak, false, true)
		last = loc[1]
	}
	pt.chunks = append(pt.chunks, content[last:])
	pt.isBreak = append(pt.isBreak, false)
	return pt
}

// Verify TextProcessor implements ContentProcessor
var _ ContentProcessor = (*TextProcessor)(nil)
