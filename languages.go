package textloom

import "strings"

// LanguageNames maps language/locale codes to human-readable names used in
// prompts.
var LanguageNames = map[string]string{
	"en":    "English",
	"en_US": "English (United States)",
	"en_GB": "English (United Kingdom)",
	"de":    "German",
	"de_DE": "German (Germany)",
	"es":    "Spanish",
	"es_ES": "Spanish (Spain)",
	"es_MX": "Spanish (Mexico)",
	"fr":    "French",
	"fr_FR": "French (France)",
	"it":    "Italian",
	"ja":    "Japanese",
	"pt_BR": "Portuguese (Brazil)",
	"zh_CN": "Chinese (Simplified)",
	"zh_TW": "Chinese (Traditional)",
	"ru":    "Russian",
	"pl":    "Polish",
	"nl":    "Dutch",
	"tr":    "Turkish",
	"ko":    "Korean",
	"hi":    "Hindi",

	// RTL languages
	"ar":    "Arabic",
	"ar_SA": "Arabic (Saudi Arabia)",
	"he":    "Hebrew",
	"he_IL": "Hebrew (Israel)",
	"fa":    "Persian",
	"fa_IR": "Persian (Iran)",
	"ur":    "Urdu",
	"ur_PK": "Urdu (Pakistan)",
}

// RTLLanguages contains base language codes that render right-to-left.
var RTLLanguages = map[string]bool{
	"ar": true, // Arabic
	"he": true, // Hebrew
	"fa": true, // Persian/Farsi
	"ur": true, // Urdu
	"ps": true, // Pashto
	"sd": true, // Sindhi
	"ug": true, // Uyghur
	"yi": true, // Yiddish
}

// GetLanguageName returns a human-readable name for a language code,
// falling back to the base language and finally the code itself.
func GetLanguageName(lang string) string {
	if name, ok := LanguageNames[lang]; ok {
		return name
	}
	if name, ok := LanguageNames[normalizeBaseLang(lang)]; ok {
		return name
	}
	return lang
}

// IsRTL reports whether the language renders right-to-left.
func IsRTL(lang string) bool {
	return RTLLanguages[normalizeBaseLang(lang)]
}

// GetDirection returns the HTML dir attribute value for a language.
func GetDirection(lang string) string {
	if IsRTL(lang) {
		return "rtl"
	}
	return "ltr"
}

// ToHTMLLang converts a locale code to the BCP 47 form used in HTML lang
// attributes (e.g. "he_IL" -> "he-IL").
func ToHTMLLang(lang string) string {
	return strings.ReplaceAll(lang, "_", "-")
}

// SameBaseLang reports whether two language codes share a base language
// (e.g. "en" and "en_US").
func SameBaseLang(a, b string) bool {
	return normalizeBaseLang(a) == normalizeBaseLang(b)
}

// normalizeBaseLang extracts the lowercase base language code
// (e.g. "en" from "en_US" or "en-US").
func normalizeBaseLang(lang string) string {
	lang = strings.ReplaceAll(lang, "-", "_")
	if i := strings.IndexByte(lang, '_'); i >= 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}
