package crawler

import (
	"strings"
)

var artifactSeparators = strings.NewReplacer("/", "_", "?", "_", "&", "_", "=", "_", ":", "_", "#", "_")

// ArtifactBaseName derives the deterministic file stem for a seed URL:
// the URL without its scheme, with path and query separators replaced by
// underscores.
func ArtifactBaseName(seedURL string) string {
	base := artifactSeparators.Replace(StripScheme(strings.TrimSpace(seedURL)))
	base = strings.TrimRight(base, "_")
	if base == "" {
		return "seed"
	}
	return base
}

// DataArtifactName is the per-seed structured artifact file name.
func DataArtifactName(seedURL string) string {
	return ArtifactBaseName(seedURL) + "_data.json"
}

// RawArtifactName is the per-seed raw extraction text file name.
func RawArtifactName(seedURL string) string {
	return ArtifactBaseName(seedURL) + "_raw.txt"
}
