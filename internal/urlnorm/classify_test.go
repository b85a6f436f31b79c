package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseLanguage(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"www.vg.no":        "no",
		"example.se":       "sv",
		"shop.example.be":  "nl",
		"example.co.jp":    "ja",
		"example.com":      "en",
		"example.io":       "en",
		"example.de:8080":  "de",
		"EXAMPLE.FR":       "fr",
		"[::1]":            "en",
		"localhost:1234":   "en",
		"university.edu":   "en",
		"ministry.gov":     "en",
		"example.ru":       "ru",
		"example.cn":       "zh",
		"news.example.kr":  "ko",
		"example.pt":       "pt",
		"example.dk":       "da",
		"helsinki.fi":      "fi",
		"example.nl":       "nl",
		"example.it":       "it",
		"example.es":       "es",
		"charity.org":      "en",
		"provider.net":     "en",
		"plain-hostname":   "en",
		"example.com:8443": "en",
	}
	for host, want := range tests {
		require.Equal(t, want, BaseLanguage(host), host)
	}
}

func TestLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		base string
		want string
	}{
		{url: "https://example.com/en/about", base: "no", want: "English"},
		{url: "https://example.com/no", base: "en", want: "Norwegian"},
		{url: "https://example.com/products/de-de/item", base: "en", want: "German"},
		{url: "https://example.com/about", base: "sv", want: "Swedish"},
		{url: "https://example.com/NB/nyheter", base: "en", want: "Norwegian Bokmål"},
		{url: "https://example.com/", base: "xx", want: "Xx"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Language(tt.url, tt.base), tt.url)
	}
}

func TestCategory(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://example.com/":                "home",
		"https://example.com":                 "home",
		"https://example.com/Products/shoes":  "products",
		"https://example.com/en/blog/post-1":  "blog",
		"https://example.com/en/no":           "en",
		"https://example.com/sv/nyheter":      "sv",
		"https://example.com/en/?page=2":      "en",
		"https://example.com/de/fr/karriere/": "karriere",
	}
	for raw, want := range tests {
		require.Equal(t, want, Category(raw), raw)
	}
}

func TestLanguageName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Czech", LanguageName("cs"))
	require.Equal(t, "Tr", LanguageName("tr"))
	require.Empty(t, LanguageName(""))
}
