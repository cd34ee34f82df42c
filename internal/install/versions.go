package install

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// CompareVersions orders version ids. Ids that are valid semantic versions
// (with "v" implied) use semver precedence. Anything else is compared
// numerically segment by segment, falling back to string comparison for
// non-numeric segments. Missing segments count as zero, so "1.0" equals
// "1.0.0".
func CompareVersions(a, b string) int {
	if sa, sb := "v"+strings.TrimPrefix(a, "v"), "v"+strings.TrimPrefix(b, "v"); semver.IsValid(sa) && semver.IsValid(sb) {
		return semver.Compare(sa, sb)
	}
	pa := splitVersion(a)
	pb := splitVersion(b)
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		sa, sb := "0", "0"
		if i < len(pa) {
			sa = pa[i]
		}
		if i < len(pb) {
			sb = pb[i]
		}
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

func splitVersion(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '+' || r == '_'
	})
}

func compareSegment(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(a, b)
}
