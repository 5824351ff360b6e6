package assets

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultExtension is used when the source carries no recognised image extension
const DefaultExtension = ".png"

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// BaseName derives the filesystem-safe base name for a brand and model.
// Characters other than ASCII letters, digits, whitespace, '-' and '_' are
// dropped, the result is trimmed and whitespace becomes '_'.
func BaseName(brand, model string) string {
	var b strings.Builder
	for _, r := range brand + "_" + model {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '_' || r == '-' || unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}

	name := strings.TrimSpace(b.String())
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name)

	if name == "" {
		return "image"
	}
	return name
}

// Extension picks the stored extension from the source's trailing extension.
func Extension(source string) string {
	p := source
	if isRemote(source) {
		if u, err := url.Parse(source); err == nil {
			p = u.Path
		}
		p = path.Base(p)
	} else {
		p = filepath.Base(p)
	}

	ext := strings.ToLower(path.Ext(p))
	if ext == "" || ext == p || !allowedExtensions[ext] {
		return DefaultExtension
	}
	return ext
}

// FileName is the managed file name for an image of brand/model taken from source
func FileName(source, brand, model string) string {
	return BaseName(brand, model) + Extension(source)
}

func isRemote(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
