package evs

// Solution is the outcome of a successful solve: one selection map per
// group. A single-version solve always yields exactly one group. A project
// appearing in more than one group resolves to multiple simultaneously
// installed versions.
type Solution struct {
	Groups []map[ProjectRoot]Version
}

// Multi indicates whether the solution required more than one version slot
// for at least one project.
func (s Solution) Multi() bool {
	return len(s.Groups) > 1
}

// Selected returns every version chosen for pr across all groups, in group
// order. Empty means the project was not part of the solve closure.
func (s Solution) Selected(pr ProjectRoot) []Version {
	var out []Version
	for _, g := range s.Groups {
		if v, has := g[pr]; has {
			out = append(out, v)
		}
	}
	return out
}
