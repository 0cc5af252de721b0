package tags

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Kind describes what sort of image tag the pipeline supplied. The classification is purely
// informational: tags are always passed through to the manifest verbatim.
type Kind string

const (
	// BuildNumber is a bare integer, the tag format produced by pipeline build counters.
	BuildNumber Kind = "build"
	// SemanticVersion is a full MAJOR.MINOR.PATCH version, optionally prefixed with "v".
	SemanticVersion Kind = "semver"
	// Opaque is anything else, such as a git sha or "latest".
	Opaque Kind = "opaque"
)

func Classify(tag string) Kind {
	if _, err := strconv.Atoi(tag); err == nil {
		return BuildNumber
	}

	if _, err := semver.StrictNewVersion(strings.TrimPrefix(tag, "v")); err == nil {
		return SemanticVersion
	}

	return Opaque
}
