package build

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/conneroisu/kiln/internal/project"
)

// CheckEnvironment compares installed package versions against minimums
// and returns one warning per stale package. Unparseable versions are
// skipped.
func CheckEnvironment(pkg project.PackageJSON, minimums map[string]string) []string {
	names := make([]string, 0, len(minimums))
	for name := range minimums {
		names = append(names, name)
	}
	sort.Strings(names)

	var warnings []string
	for _, name := range names {
		declared, ok := pkg.DependencyVersion(name)
		if !ok {
			continue
		}
		have := canonical(declared)
		want := canonical(minimums[name])
		if have == "" || want == "" {
			continue
		}
		if semver.Compare(have, want) < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"%s %s is older than the minimum supported version %s. Upgrade it to avoid stale build output.",
				name, declared, minimums[name]))
		}
	}
	return warnings
}

// canonical turns an npm version or simple range into a semver string, or
// "" when it cannot be read.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "^~>=v ")
	if v == "" {
		return ""
	}
	v = "v" + v
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}
