package docdedup

// TranslationStyle controls the tone and formality of translations.
type TranslationStyle string

const (
	// StyleFormal uses formal, professional language suitable for official documents.
	StyleFormal TranslationStyle = "formal"
	// StyleNeutral uses a neutral, professional tone suitable for general content.
	StyleNeutral TranslationStyle = "neutral"
	// StyleCasual uses casual, conversational language.
	StyleCasual TranslationStyle = "casual"
	// StyleTechnical uses precise, technical language for documentation and papers.
	StyleTechnical TranslationStyle = "technical"
)

// Content types understood by the processors.
const (
	ContentText = "text"
	ContentHTML = "html"
)

// Segment is one translatable unit of a document.
type Segment struct {
	ID       string            // Position-based identifier
	Text     string            // Original text content (trimmed)
	Hash     string            // HashText of Text
	Kind     string            // "paragraph", "html_text", ...
	Context  string            // Disambiguation hint for the provider
	Metadata map[string]string // Additional info (parent tag, paragraph index, ...)
}

// Translated is the result of translating one document body.
type Translated struct {
	Content         string // Translated content
	TranslatedCount int    // Segments sent to the provider
	CachedCount     int    // Segments served from the segment cache
	TotalSegments   int    // Translatable segments found
}

// RTLLanguages contains language codes that use right-to-left text direction.
var RTLLanguages = map[string]bool{
	"ar": true, // Arabic
	"he": true, // Hebrew
	"fa": true, // Persian/Farsi
	"ur": true, // Urdu
	"ps": true, // Pashto
	"sd": true, // Sindhi
	"ug": true, // Uyghur
}

// IgnoredTags contains HTML tags whose content should not be translated.
var IgnoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"code":     true,
	"pre":      true,
	"textarea": true,
	"noscript": true,
}
