package evs

import (
	"github.com/sirupsen/logrus"
)

// solver runs one solving attempt over an explicit snapshot of reduced
// edges and a seed universe. Attempts are pure with respect to session
// state: a failed or abandoned attempt leaves nothing behind but its return
// value, so the session can solve eagerly between fetch rounds at will.
type solver struct {
	l     *logrus.Logger
	edges []concreteEdge
	seed  *universe
}

func (s *solver) solve() (Solution, error) {
	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"edges":    len(s.edges),
			"projects": len(s.seed.base),
		}).Debug("Beginning single-version propagation")
	}

	sel, fail := propagate(s.edges, s.seed.fork())
	if fail == nil {
		if s.l.Level >= logrus.InfoLevel {
			s.l.WithField("projects", len(sel)).Info("Single-version propagation reached fixpoint")
		}
		return Solution{Groups: []map[ProjectRoot]Version{sel}}, nil
	}

	if s.l.Level >= logrus.InfoLevel {
		s.l.WithFields(logrus.Fields{
			"name": fail.Name,
		}).Info("Single-version propagation failed, falling back to group solving")
	}

	groups, gfail := solveGroups(s.edges, s.seed)
	if gfail != nil {
		if s.l.Level >= logrus.InfoLevel {
			s.l.WithField("name", gfail.Name).Info("Group solving failed; dependency has no compatible versions at all")
		}
		return Solution{}, gfail
	}

	if s.l.Level >= logrus.InfoLevel {
		s.l.WithField("groups", len(groups)).Info("Group solving succeeded")
	}
	return Solution{Groups: selections(groups)}, nil
}
