package evs

import (
	"sort"

	"github.com/Masterminds/semver"
)

var emptyVersion = Version{}

// Version is a concrete, totally ordered version identifier. The zero value
// is the "empty" version, used as a non-value marker throughout; it is never
// a member of any candidate set.
type Version struct {
	sv *semver.Version
}

// NewVersion parses body as a semantic version.
func NewVersion(body string) (Version, error) {
	sv, err := semver.NewVersion(body)
	if err != nil {
		return emptyVersion, err
	}
	return Version{sv: sv}, nil
}

func (v Version) String() string {
	if v.sv == nil {
		return ""
	}
	return v.sv.String()
}

// Empty indicates whether v is the zero, non-value Version.
func (v Version) Empty() bool {
	return v.sv == nil
}

// Compare returns -1, 0 or 1 as v sorts below, equal to, or above o.
// The empty version sorts below everything.
func (v Version) Compare(o Version) int {
	if v.sv == nil || o.sv == nil {
		switch {
		case v.sv == o.sv:
			return 0
		case v.sv == nil:
			return -1
		default:
			return 1
		}
	}
	return v.sv.Compare(o.sv)
}

func (v Version) LessThan(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) GreaterThan(o Version) bool {
	return v.Compare(o) > 0
}

func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// nextPatch returns the immediate patch successor of v. Boundary
// normalization leans on it: strict lower bounds and inclusive upper bounds
// are both rewritten against the next patch step.
func nextPatch(v Version) Version {
	nv := v.sv.IncPatch()
	return Version{sv: &nv}
}

// containsVersion reports membership of v in the descending-sorted vs.
func containsVersion(vs []Version, v Version) bool {
	i := sort.Search(len(vs), func(i int) bool {
		return !vs[i].GreaterThan(v)
	})
	return i < len(vs) && vs[i].Equal(v)
}

// intersectVersions returns the intersection of two descending-sorted version
// slices, itself descending-sorted. The inputs are not modified.
func intersectVersions(a, b []Version) []Version {
	var out []Version
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := a[i].Compare(b[j]); {
		case c == 0:
			out = append(out, a[i])
			i++
			j++
		case c > 0:
			i++
		default:
			j++
		}
	}
	return out
}
