package docdedup

import (
	"context"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultBatchSize is the number of segments sent to a provider per call.
const DefaultBatchSize = 40

// AIProvider is the interface for AI translation backends.
type AIProvider interface {
	Translate(ctx context.Context, req TranslateRequest) ([]string, error)
}

// TranslateRequest contains the parameters for one provider call.
type TranslateRequest struct {
	Texts         []string
	TargetLang    string
	SourceLang    string
	ExcludedTerms []string
	Context       string
	TextContexts  []string
	Glossary      map[string]string
	Style         TranslationStyle
}

// SegmentCache memoizes translated segments across documents.
type SegmentCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
}

// ContentProcessor splits a document into segments and reassembles it.
type ContentProcessor interface {
	Extract(content string) (interface{}, []Segment, error)
	Apply(parsed interface{}, segments []Segment, translations map[string]string) (string, error)
	ContentType() string
}

// SegmentTranslator translates whole documents segment by segment.
type SegmentTranslator struct {
	provider      AIProvider
	serviceID     string
	cache         SegmentCache
	excludedTerms []string
	context       string
	glossary      map[string]string
	style         TranslationStyle
	batchSize     int
	concurrency   int
	processors    map[string]ContentProcessor
}

// TranslatorOption is a functional option for configuring the SegmentTranslator.
type TranslatorOption func(*SegmentTranslator)

// WithServiceID names the provider configuration; it is part of segment cache keys.
func WithServiceID(id string) TranslatorOption {
	return func(t *SegmentTranslator) {
		t.serviceID = id
	}
}

// WithSegmentCache sets the segment cache.
func WithSegmentCache(cache SegmentCache) TranslatorOption {
	return func(t *SegmentTranslator) {
		t.cache = cache
	}
}

// WithExcludedTerms sets terms that should not be translated.
func WithExcludedTerms(terms []string) TranslatorOption {
	return func(t *SegmentTranslator) {
		t.excludedTerms = terms
	}
}

// WithContext sets the global translation context.
func WithContext(ctx string) TranslatorOption {
	return func(t *SegmentTranslator) {
		t.context = ctx
	}
}

// WithGlossary sets preferred translations for specific phrases.
func WithGlossary(glossary map[string]string) TranslatorOption {
	return func(t *SegmentTranslator) {
		t.glossary = glossary
	}
}

// WithStyle sets the translation style/register.
func WithStyle(style TranslationStyle) TranslatorOption {
	return func(t *SegmentTranslator) {
		t.style = style
	}
}

// WithBatchSize caps how many segments go into one provider call.
func WithBatchSize(n int) TranslatorOption {
	return func(t *SegmentTranslator) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

// WithConcurrency sets how many provider calls may run at once.
func WithConcurrency(n int) TranslatorOption {
	return func(t *SegmentTranslator) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithProcessor registers a content processor.
func WithProcessor(processor ContentProcessor) TranslatorOption {
	return func(t *SegmentTranslator) {
		t.processors[processor.ContentType()] = processor
	}
}

// NewSegmentTranslator creates a SegmentTranslator backed by provider.
func NewSegmentTranslator(provider AIProvider, opts ...TranslatorOption) *SegmentTranslator {
	t := &SegmentTranslator{
		provider:    provider,
		style:       StyleNeutral,
		batchSize:   DefaultBatchSize,
		concurrency: 1,
		processors:  make(map[string]ContentProcessor),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// ServiceID returns the configured service identifier.
func (t *SegmentTranslator) ServiceID() string {
	return t.serviceID
}

// Scope identifies everything in t that shapes the output for contentType:
// the service ID, the content type and, when any is set, a digest of the
// context, excluded terms, glossary and style. It is the service field of
// document keys and of segment cache keys.
func (t *SegmentTranslator) Scope(contentType string) string {
	scope := t.serviceID + ";" + contentType
	if digest := t.optionsDigest(); digest != "" {
		scope += ";opts=" + digest
	}
	return scope
}

// optionsDigest hashes the prompt options in a canonical order. It is empty
// when every option has its default value.
func (t *SegmentTranslator) optionsDigest() string {
	style := t.style
	if style == StyleNeutral {
		style = ""
	}
	if t.context == "" && len(t.excludedTerms) == 0 && len(t.glossary) == 0 && style == "" {
		return ""
	}

	terms := append([]string(nil), t.excludedTerms...)
	sort.Strings(terms)

	sources := make([]string, 0, len(t.glossary))
	for source := range t.glossary {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var b strings.Builder
	b.WriteString("context\x00" + t.context + "\x00")
	b.WriteString("style\x00" + string(style) + "\x00")
	for _, term := range terms {
		b.WriteString("exclude\x00" + term + "\x00")
	}
	for _, source := range sources {
		b.WriteString("glossary\x00" + source + "\x00" + t.glossary[source] + "\x00")
	}
	return hashBytes([]byte(b.String()))[:16]
}

// sweeper is implemented by segment caches that can drop expired entries.
type sweeper interface {
	Sweep() int
}

// SweepCache drops expired entries from the segment cache when it supports
// that and returns how many were removed.
func (t *SegmentTranslator) SweepCache() int {
	if s, ok := t.cache.(sweeper); ok {
		return s.Sweep()
	}
	return 0
}

// HasProcessor reports whether a processor is registered for contentType.
func (t *SegmentTranslator) HasProcessor(contentType string) bool {
	_, ok := t.processors[contentType]
	return ok
}

// Translate translates content of the given type from sourceLang to targetLang.
func (t *SegmentTranslator) Translate(ctx context.Context, content, contentType, sourceLang, targetLang string) (*Translated, error) {
	if SameLanguage(sourceLang, targetLang) {
		return &Translated{Content: content}, nil
	}

	processor, ok := t.processors[contentType]
	if !ok {
		return nil, &ProcessorError{
			Message:     "no processor registered for content type",
			ContentType: contentType,
		}
	}

	parsed, segments, err := processor.Extract(content)
	if err != nil {
		return nil, err
	}

	if len(segments) == 0 {
		return &Translated{Content: content}, nil
	}

	translations, cachedCount, translatedCount, err := t.translateSegments(ctx, segments, t.Scope(contentType), sourceLang, targetLang)
	if err != nil {
		return nil, err
	}

	result, err := processor.Apply(parsed, segments, translations)
	if err != nil {
		return nil, err
	}

	if contentType == ContentHTML {
		result = setHTMLAttributes(result, targetLang)
	}

	return &Translated{
		Content:         result,
		TranslatedCount: translatedCount,
		CachedCount:     cachedCount,
		TotalSegments:   len(segments),
	}, nil
}

// translateSegments resolves every segment hash to a translation, using the
// segment cache where possible and the provider in batches otherwise.
func (t *SegmentTranslator) translateSegments(ctx context.Context, segments []Segment, scope, sourceLang, targetLang string) (map[string]string, int, int, error) {
	translations := make(map[string]string, len(segments))
	var misses []Segment
	seen := make(map[string]bool)
	cachedCount := 0

	for _, seg := range segments {
		if seen[seg.Hash] {
			continue
		}
		seen[seg.Hash] = true

		if t.cache != nil {
			if cached, ok := t.cache.Get(ctx, SegmentKey(seg.Hash, sourceLang, targetLang, scope)); ok {
				translations[seg.Hash] = cached
				cachedCount++
				continue
			}
		}
		misses = append(misses, seg)
	}

	if len(misses) == 0 {
		return translations, cachedCount, 0, nil
	}
	if t.provider == nil {
		return nil, 0, 0, &ProviderError{Message: "no provider configured"}
	}

	batches := splitBatches(misses, t.batchSize)
	err := runBatches(ctx, batches, t.concurrency, func(ctx context.Context, b *batch) error {
		texts := make([]string, len(b.segments))
		textContexts := make([]string, len(b.segments))
		for i, seg := range b.segments {
			texts[i] = seg.Text
			textContexts[i] = seg.Context
		}

		results, err := t.provider.Translate(ctx, TranslateRequest{
			Texts:         texts,
			TargetLang:    targetLang,
			SourceLang:    sourceLang,
			ExcludedTerms: t.excludedTerms,
			Context:       t.context,
			TextContexts:  textContexts,
			Glossary:      t.glossary,
			Style:         t.style,
		})
		if err != nil {
			return err
		}
		if len(results) != len(b.segments) {
			return &CountMismatchError{Expected: len(b.segments), Got: len(results)}
		}
		b.results = results
		return nil
	})
	if err != nil {
		return nil, 0, 0, err
	}

	translatedCount := 0
	for _, b := range batches {
		for i, seg := range b.segments {
			translations[seg.Hash] = b.results[i]
			if t.cache != nil {
				_ = t.cache.Set(ctx, SegmentKey(seg.Hash, sourceLang, targetLang, scope), b.results[i]) // segment cache is best-effort
			}
			translatedCount++
		}
	}

	return translations, cachedCount, translatedCount, nil
}

// setHTMLAttributes sets lang and dir attributes on the <html> tag.
func setHTMLAttributes(html, targetLang string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	htmlTag := doc.Find("html")
	if htmlTag.Length() > 0 {
		htmlTag.SetAttr("lang", ToHTMLLang(targetLang))
		htmlTag.SetAttr("dir", GetDirection(targetLang))
	}

	result, err := doc.Html()
	if err != nil {
		return html
	}

	return result
}
