package evs

import (
	"io"
	"os"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// ManifestName is the well-known filename of a root resolution manifest.
const ManifestName = "Edges.toml"

// Manifest is the parsed form of a root manifest: the project and concrete
// version being resolved for, plus its declared requirement edges. Bounds
// are declared as explicit fields; this layer deliberately has no range
// syntax of its own.
//
//	[root]
//	  name = "example.net/app"
//	  version = "2.3.0"
//
//	[[requirement]]
//	  dep = "example.net/lib"
//	  lower = "1.0.0"
//	  lower-inclusive = true
//	  upper = "2.0.0"
type Manifest struct {
	Root         ProjectRoot
	RootVersion  Version
	Requirements []Requirement
}

// Requirement is one declared requirement edge of the root.
type Requirement struct {
	Dep   ProjectRoot
	Range Range
}

type rawTOMLManifest struct {
	Root         rawTOMLRoot          `toml:"root"`
	Requirements []rawTOMLRequirement `toml:"requirement"`
}

type rawTOMLRoot struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type rawTOMLRequirement struct {
	Dep            string `toml:"dep"`
	Lower          string `toml:"lower"`
	LowerInclusive bool   `toml:"lower-inclusive"`
	Upper          string `toml:"upper"`
	UpperInclusive bool   `toml:"upper-inclusive"`
}

// ReadManifest decodes and validates a root manifest.
func ReadManifest(r io.Reader) (*Manifest, error) {
	var raw rawTOMLManifest
	if err := toml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "unable to parse the manifest as TOML")
	}

	if raw.Root.Name == "" {
		return nil, errors.New("manifest declares no root project name")
	}
	rv, err := NewVersion(raw.Root.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest root version %q is unparseable", raw.Root.Version)
	}

	m := &Manifest{
		Root:        ProjectRoot(raw.Root.Name),
		RootVersion: rv,
	}
	for _, rr := range raw.Requirements {
		if rr.Dep == "" {
			return nil, errors.New("manifest requirement declares no dependency name")
		}
		var lo, hi Version
		if rr.Lower != "" {
			if lo, err = NewVersion(rr.Lower); err != nil {
				return nil, errors.Wrapf(err, "lower bound %q on %s is unparseable", rr.Lower, rr.Dep)
			}
		}
		if rr.Upper != "" {
			if hi, err = NewVersion(rr.Upper); err != nil {
				return nil, errors.Wrapf(err, "upper bound %q on %s is unparseable", rr.Upper, rr.Dep)
			}
		}
		rng, err := NewRange(lo, rr.LowerInclusive, hi, rr.UpperInclusive)
		if err != nil {
			return nil, errors.Wrapf(err, "requirement on %s is malformed", rr.Dep)
		}
		m.Requirements = append(m.Requirements, Requirement{
			Dep:   ProjectRoot(rr.Dep),
			Range: rng,
		})
	}
	return m, nil
}

// ReadManifestFile reads a manifest from path.
func ReadManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open manifest %s", path)
	}
	defer f.Close()
	return ReadManifest(f)
}

// Declare registers every requirement edge of the manifest with the session.
func (m *Manifest) Declare(s *Session) error {
	for _, req := range m.Requirements {
		if err := s.DeclareRequirement(m.Root, m.RootVersion, req.Dep, req.Range); err != nil {
			return err
		}
	}
	return nil
}
