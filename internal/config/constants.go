package config

import "strings"

// Version is the current wdlsema module version.
var Version = "0.1.0"

const SourceFileExt = ".wdl"

// HasSourceExt reports whether path ends in a recognized WDL source
// extension.
func HasSourceExt(path string) bool {
	return strings.HasSuffix(path, SourceFileExt)
}

// TrimSourceExt strips a trailing WDL source extension from name, if
// present.
func TrimSourceExt(name string) string {
	return strings.TrimSuffix(name, SourceFileExt)
}

// SupportedVersions are the WDL release versions the analyzer understands,
// oldest first.
var SupportedVersions = []string{"1.0", "1.1", "1.2"}

// DevelopmentVersion is the floating "development" release tag. Documents
// declaring it are analyzed with 1.2 semantics.
const DevelopmentVersion = "development"

// DefaultVersion is used when a fallback is configured and the document's
// version header is missing or unrecognized.
const DefaultVersion = "1.2"

// IsTestMode indicates the process is running under `go test`. No package
// currently reads it.
var IsTestMode = false

// DefaultFetchConcurrency bounds how many documents the graph scheduler will
// fetch from the caller-provided source at once, when the caller does not
// override it explicitly.
var DefaultFetchConcurrency = 4

// VersionAtLeast reports whether version a is the same as or newer than b,
// among SupportedVersions. Unknown versions compare as older than every
// known version so callers fail closed (the function becomes unavailable)
// rather than silently accepting it.
func VersionAtLeast(a, b string) bool {
	ai := versionIndex(a)
	bi := versionIndex(b)
	if ai < 0 || bi < 0 {
		return false
	}
	return ai >= bi
}

func versionIndex(v string) int {
	if v == DevelopmentVersion {
		v = DefaultVersion
	}
	for i, sv := range SupportedVersions {
		if sv == v {
			return i
		}
	}
	return -1
}
