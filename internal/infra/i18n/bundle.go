package i18n

import (
	"io/fs"
	"strings"
)

// Bundle holds one Translator per shipped language and picks one by
// Accept-Language. Unknown or missing languages fall back to the default.
type Bundle struct {
	def    string
	byLang map[string]*Translator
}

func NewBundle(fsys fs.FS, defaultLang string, langs ...string) (*Bundle, error) {
	b := &Bundle{def: defaultLang, byLang: map[string]*Translator{}}
	for _, lang := range append([]string{defaultLang}, langs...) {
		if _, ok := b.byLang[lang]; ok {
			continue
		}
		tr, err := NewTranslator(fsys, lang)
		if err != nil {
			return nil, err
		}
		b.byLang[lang] = tr
	}
	return b, nil
}

// For resolves an Accept-Language header value to a Translator. Only the
// primary subtag of each entry is considered; quality weights are ignored
// because the catalog has two languages.
func (b *Bundle) For(acceptLanguage string) *Translator {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(part)
		if i := strings.IndexByte(tag, ';'); i >= 0 {
			tag = tag[:i]
		}
		if i := strings.IndexByte(tag, '-'); i >= 0 {
			tag = tag[:i]
		}
		if tr, ok := b.byLang[strings.ToLower(tag)]; ok {
			return tr
		}
	}
	return b.byLang[b.def]
}

// Default returns the deployment's default-language translator.
func (b *Bundle) Default() *Translator {
	return b.byLang[b.def]
}
