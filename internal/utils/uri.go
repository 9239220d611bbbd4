package utils

import (
	"net/url"
	"path"
	"strings"

	"github.com/wdlsema/wdlsema/internal/config"
)

// NormalizeImportURI implements the import normalization rule of spec §6:
// percent-decode, drop query and fragment, lower-case the scheme, and
// preserve case everywhere else. It returns the canonical URI (used as the
// graph node key) and the namespace candidate derived from it (basename
// without extension) before any explicit `as` alias is applied.
func NormalizeImportURI(raw string) (canonical, namespace string) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}

	if u, err := url.Parse(decoded); err == nil && u.Scheme != "" {
		u.Scheme = strings.ToLower(u.Scheme)
		u.RawQuery = ""
		u.Fragment = ""
		u.RawFragment = ""
		return u.String(), basenameNoExt(u.Path)
	}

	p := decoded
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return p, basenameNoExt(p)
}

func basenameNoExt(p string) string {
	return config.TrimSourceExt(path.Base(p))
}

// IsValidIdentifier reports whether s is a legal WDL identifier per the
// grammar: an ASCII letter or underscore followed by ASCII letters, digits
// or underscores.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		if i > 0 && c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}
