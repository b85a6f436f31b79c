package urlnorm

import (
	"net/url"
	"strings"
)

// DefaultLanguage is used when neither the TLD nor the path carries a hint.
const DefaultLanguage = "en"

var languageNames = map[string]string{
	"en": "English",
	"no": "Norwegian",
	"nb": "Norwegian Bokmål",
	"nn": "Norwegian Nynorsk",
	"sv": "Swedish",
	"da": "Danish",
	"fi": "Finnish",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"ru": "Russian",
	"ar": "Arabic",
	"pl": "Polish",
	"cs": "Czech",
}

// tldLanguages is checked in order; the first matching suffix wins.
var tldLanguages = []struct {
	suffix string
	code   string
}{
	{".no", "no"},
	{".se", "sv"},
	{".dk", "da"},
	{".fi", "fi"},
	{".de", "de"},
	{".fr", "fr"},
	{".es", "es"},
	{".it", "it"},
	{".pt", "pt"},
	{".nl", "nl"},
	{".be", "nl"},
	{".jp", "ja"},
	{".cn", "zh"},
	{".kr", "ko"},
	{".ru", "ru"},
	{".com", "en"},
	{".org", "en"},
	{".net", "en"},
	{".edu", "en"},
	{".gov", "en"},
}

// pathLanguageCodes is the ordered list probed in URL paths.
var pathLanguageCodes = []string{
	"en", "no", "nb", "nn", "fr", "de", "es", "it", "pt", "zh",
	"ja", "ru", "ar", "ko", "sv", "da", "fi", "nl", "pl", "cs",
}

// categorySkipCodes are path segments ignored when picking a category.
var categorySkipCodes = map[string]struct{}{
	"en": {}, "no": {}, "nb": {}, "nn": {}, "fr": {}, "de": {}, "es": {},
	"it": {}, "pt": {}, "zh": {}, "ja": {}, "ru": {}, "ar": {}, "ko": {},
}

// BaseLanguage derives a language code from the host's top-level domain.
func BaseLanguage(host string) string {
	lower := strings.ToLower(host)
	if i := strings.LastIndexByte(lower, ':'); i >= 0 && !strings.Contains(lower[i:], "]") {
		lower = lower[:i]
	}
	for _, entry := range tldLanguages {
		if strings.HasSuffix(lower, entry.suffix) {
			return entry.code
		}
	}
	return DefaultLanguage
}

// LanguageName returns the display name for a code, or the capitalized code.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	if code == "" {
		return ""
	}
	return strings.ToUpper(code[:1]) + code[1:]
}

// Language returns the display name of the page language. Path hints win over
// the base language derived from the domain.
func Language(pageURL, baseLanguage string) string {
	path := strings.ToLower(pathOf(pageURL))
	for _, code := range pathLanguageCodes {
		if strings.Contains(path, "/"+code+"/") ||
			strings.Contains(path, "/"+code+"-") ||
			strings.HasSuffix(path, "/"+code) ||
			strings.HasPrefix(path, code+"/") {
			return LanguageName(code)
		}
	}
	return LanguageName(baseLanguage)
}

// Category returns the first path segment that is not a language code.
func Category(pageURL string) string {
	path := strings.Trim(pathOf(pageURL), "/")
	if path == "" {
		return "home"
	}
	parts := strings.Split(path, "/")
	for _, part := range parts {
		lower := strings.ToLower(part)
		if part == "" {
			continue
		}
		if _, skip := categorySkipCodes[lower]; !skip {
			return lower
		}
	}
	if parts[0] != "" {
		return strings.ToLower(parts[0])
	}
	return "home"
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
