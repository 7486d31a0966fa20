package docdedup

import (
	"fmt"
	"strings"
)

// LanguageNames maps locale and short codes to names used in provider prompts.
var LanguageNames = map[string]string{
	"en":    "English",
	"en_US": "English (United States)",
	"en_GB": "English (United Kingdom)",
	"de":    "German",
	"es":    "Spanish",
	"es_ES": "Spanish (Spain)",
	"es_MX": "Spanish (Mexico)",
	"fr":    "French",
	"it":    "Italian",
	"ja":    "Japanese",
	"ko":    "Korean",
	"pt_BR": "Portuguese (Brazil)",
	"pt_PT": "Portuguese (Portugal)",
	"ru":    "Russian",
	"ar":    "Arabic",
	"he":    "Hebrew",
	"zh":    "Chinese (Simplified)",
	"zh_CN": "Chinese (Simplified)",
	"zh_TW": "Chinese (Traditional)",
	"zh_HK": "Chinese (Traditional, Hong Kong)",
}

// localeHints disambiguates variants a model tends to mix up.
var localeHints = map[string]string{
	"zh_CN": "Use Simplified Chinese characters and mainland conventions.",
	"zh_TW": "Use Traditional Chinese characters and Taiwanese vocabulary.",
	"zh_HK": "Use Traditional Chinese characters and Hong Kong vocabulary.",
	"pt_BR": "Use Brazilian Portuguese spelling and vocabulary.",
	"pt_PT": "Use European Portuguese spelling and vocabulary.",
	"es_MX": "Use Mexican Spanish vocabulary.",
	"en_GB": "Use British spelling.",
}

var styleDescriptions = map[TranslationStyle]string{
	StyleFormal:    "Use a formal, professional register.",
	StyleNeutral:   "Use a neutral, professional register.",
	StyleCasual:    "Use a casual, conversational register.",
	StyleTechnical: "Use precise technical terminology; keep formulas, identifiers and citations unchanged.",
}

// GetLanguageName returns the human-readable name for a language code.
// Falls back to the code itself if not found.
func GetLanguageName(langCode string) string {
	code := NormalizeLocale(langCode)
	if name, ok := LanguageNames[code]; ok {
		return name
	}
	if name, ok := LanguageNames[BaseLanguage(code)]; ok {
		return name
	}
	return langCode
}

// GetLocaleClarification returns an extra prompt hint for a locale, or "".
func GetLocaleClarification(langCode string) string {
	return localeHints[NormalizeLocale(langCode)]
}

// GetStyleDescription returns the prompt text for a style, defaulting to neutral.
func GetStyleDescription(style TranslationStyle) string {
	if desc, ok := styleDescriptions[style]; ok {
		return desc
	}
	return styleDescriptions[StyleNeutral]
}

// ParseStyle returns the style named by s. An empty s is StyleNeutral.
func ParseStyle(s string) (TranslationStyle, error) {
	if s == "" {
		return StyleNeutral, nil
	}
	style := TranslationStyle(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styleDescriptions[style]; !ok {
		return "", fmt.Errorf("unknown style %q (want formal, neutral, casual or technical)", s)
	}
	return style, nil
}

// GetDirection returns "rtl" for right-to-left languages, "ltr" otherwise.
func GetDirection(langCode string) string {
	if RTLLanguages[BaseLanguage(langCode)] {
		return "rtl"
	}
	return "ltr"
}

// IsRTL returns true if the language uses right-to-left text direction.
func IsRTL(langCode string) bool {
	return GetDirection(langCode) == "rtl"
}

// BaseLanguage extracts the lowercase base code (e.g., "en" from "en_US" or "en-US").
func BaseLanguage(langCode string) string {
	code := NormalizeLocale(langCode)
	return strings.ToLower(strings.Split(code, "_")[0])
}

// SameLanguage reports whether two codes share a base language, in which case
// translation can be bypassed.
func SameLanguage(a, b string) bool {
	return a != "" && BaseLanguage(a) == BaseLanguage(b)
}

// NormalizeLocale converts a language code to the standard format (e.g., "es-ES" → "es_ES").
func NormalizeLocale(langCode string) string {
	return strings.ReplaceAll(strings.TrimSpace(langCode), "-", "_")
}

// ToHTMLLang converts a locale code to HTML lang attribute format (e.g., "es_ES" → "es-ES").
func ToHTMLLang(langCode string) string {
	return strings.ReplaceAll(langCode, "_", "-")
}
