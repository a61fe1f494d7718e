package httpapi

import (
	"strconv"

	"github.com/vaultspace/artifactd/pkg/version"
)

// parseVersionSelector maps the "version" query parameter to a
// version.Selector: "" (absent) is Null, "latest" is Latest, "stage" is
// Stage, an unsigned integer is an Index, anything else is a Label.
func parseVersionSelector(raw string) version.Selector {
	switch raw {
	case "":
		return version.Null{}
	case "latest":
		return version.Latest{}
	case "stage":
		return version.Stage{}
	}
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return version.Index(n)
	}
	return version.Label(raw)
}
