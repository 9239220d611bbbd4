package utils

import "testing"

func TestNormalizeImportURI(t *testing.T) {
	tests := []struct {
		raw       string
		canonical string
		namespace string
	}{
		{"foo.wdl", "foo.wdl", "foo"},
		{"foo", "foo", "foo"},
		{"qux/baz.wdl", "qux/baz.wdl", "baz"},
		{"../x/qux/baz.wdl", "../x/qux/baz.wdl", "baz"},
		{"bad-file-name.wdl", "bad-file-name.wdl", "bad-file-name"},
		{"https://example.com/wf/md5sum.wdl", "https://example.com/wf/md5sum.wdl", "md5sum"},
		{"HTTPS://example.com/Star.wdl", "https://example.com/Star.wdl", "Star"},
		{"https://example.com/wf/md5sum.wdl#frag", "https://example.com/wf/md5sum.wdl", "md5sum"},
		{"https://example.com/wf/star.wdl?query=foo", "https://example.com/wf/star.wdl", "star"},
		{"https://example.com/wf/%73tar.wdl", "https://example.com/wf/star.wdl", "star"},
		{"star.wdl?query=x", "star.wdl", "star"},
		{"a/b.wdl#frag", "a/b.wdl", "b"},
	}
	for _, tt := range tests {
		canonical, namespace := NormalizeImportURI(tt.raw)
		if canonical != tt.canonical || namespace != tt.namespace {
			t.Errorf("NormalizeImportURI(%q) = (%q, %q), want (%q, %q)",
				tt.raw, canonical, namespace, tt.canonical, tt.namespace)
		}
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"foo", "_foo", "foo_bar", "f123"}
	invalid := []string{"", "1abc", "bad-name", "a.b", "a b", "星名"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = true, want false", s)
		}
	}
}
