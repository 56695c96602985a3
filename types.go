package evs

// ProjectRoot is the opaque identifier for a resolvable project, unique
// within a Session. It carries no path or network semantics here; mapping a
// root to an actual source location is the registry's concern.
type ProjectRoot string

// EdgeKind discriminates the two kinds of boundary discovery requests that
// can be made against a registry for a requirement range.
type EdgeKind uint8

const (
	// LowEdge requests resolution of a range's lower boundary: the exact
	// boundary version if it exists, else the lowest existing version above
	// it, plus the highest existing non-yanked version.
	LowEdge EdgeKind = iota
	// HighEdge requests resolution of a range's upper boundary: the version
	// directly below it, with yank-adjacent versions as needed.
	HighEdge
)

func (k EdgeKind) String() string {
	if k == HighEdge {
		return "high"
	}
	return "low"
}

// RegistryRequest describes a single boundary discovery request to be made
// against the registry. Requests are produced by the planner and are the only
// shape in which the core ever asks for network data.
type RegistryRequest struct {
	Root  ProjectRoot
	Range Range
	Kind  EdgeKind
}

// key returns a stable identity for deduplication and request coalescing.
func (r RegistryRequest) key() string {
	return string(r.Root) + "|" + r.Kind.String() + "|" + r.Range.String()
}

// EdgeRecord is one element of a registry response: a concrete version known
// to exist for the requested project, its yank status, and that version's
// dependency manifest.
type EdgeRecord struct {
	Version Version
	Yanked  bool
	Deps    map[ProjectRoot]Range
}

// dependency is a single requirement edge: a (project, version) pair declared
// that it needs dep within rng. Edges are tracked individually; they are
// never destructively merged with sibling edges on the same dep.
type dependency struct {
	depender ProjectRoot
	version  Version
	dep      ProjectRoot
	rng      Range
}

// atom pairs a project with one concrete version of it.
type atom struct {
	root ProjectRoot
	v    Version
}

func (a atom) String() string {
	return string(a.root) + "@" + a.v.String()
}
