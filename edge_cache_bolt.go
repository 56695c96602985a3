package evs

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/gofrs/flock"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BoltEdgeCache persists ingested edge records across sessions in a BoltDB
// file. Layout:
//
//	Bucket: "edges:<project>"
//	Keys: "<version>"
//	Values: JSON {yanked, deps}
//
//	Bucket: "log"
//	Keys: fixed-width sequence number
//	Values: JSON {root, version, yanked, deps}
//
// The log bucket is an append-only journal of every record in ingest order,
// and is what warm-start replays, so a replay observes records in the order
// the original session learned them. The per-project buckets exist for
// point lookups and are derived data.
//
// Coverage marks are deliberately not cached: boundary coverage is a claim
// about a live response to a live request, and replaying it from disk would
// let a stale cache suppress requests the registry never answered.
type BoltEdgeCache struct {
	db *bolt.DB
	fl *flock.Flock
	l  *logrus.Logger
}

const cacheLogBucket = "log"

// journalEntry is one cached record with its owning project.
type journalEntry struct {
	Root   ProjectRoot
	Record EdgeRecord
}

type rawCachedEdge struct {
	Root    string              `json:"root,omitempty"`
	Version string              `json:"version"`
	Yanked  bool                `json:"yanked,omitempty"`
	Deps    map[string]rawRange `json:"deps,omitempty"`
}

// NewBoltEdgeCache opens (creating if needed) the edge cache under dir. The
// directory is guarded by an advisory lock file; a second process holding
// the cache is reported as an error rather than waited on.
func NewBoltEdgeCache(dir string, l *logrus.Logger) (*BoltEdgeCache, error) {
	if l == nil {
		l = logrus.New()
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, errors.Wrapf(err, "failed to create edge cache directory %s", dir)
	}

	fl := flock.New(filepath.Join(dir, "evs.lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to acquire lock on edge cache directory %s", dir)
	}
	if !locked {
		return nil, errors.Errorf("edge cache directory %s is locked by another process", dir)
	}

	db, err := bolt.Open(filepath.Join(dir, "edges.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		fl.Unlock()
		return nil, errors.Wrapf(err, "failed to open edge cache database in %s", dir)
	}

	return &BoltEdgeCache{db: db, fl: fl, l: l}, nil
}

// Close releases the database and the directory lock. Must not be called
// concurrently with any other method.
func (c *BoltEdgeCache) Close() error {
	err := errors.Wrap(c.db.Close(), "error closing edge cache database")
	if uerr := c.fl.Unlock(); uerr != nil && err == nil {
		err = errors.Wrap(uerr, "error releasing edge cache lock")
	}
	return err
}

// put records freshly ingested edges for pr. Records already present are
// journaled again harmlessly; replay goes through the same idempotent ingest
// as live responses.
func (c *BoltEdgeCache) put(pr ProjectRoot, recs []EdgeRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		eb, err := tx.CreateBucketIfNotExists([]byte("edges:" + string(pr)))
		if err != nil {
			return errors.Wrapf(err, "failed to create edge bucket for %s", pr)
		}
		lb, err := tx.CreateBucketIfNotExists([]byte(cacheLogBucket))
		if err != nil {
			return errors.Wrap(err, "failed to create journal bucket")
		}

		for _, rec := range recs {
			val, err := encodeCachedEdge("", rec)
			if err != nil {
				return err
			}
			if err := eb.Put([]byte(rec.Version.String()), val); err != nil {
				return errors.Wrapf(err, "failed to put edge %s", rec.Version)
			}

			jval, err := encodeCachedEdge(pr, rec)
			if err != nil {
				return err
			}
			seq, err := lb.NextSequence()
			if err != nil {
				return errors.Wrap(err, "failed to generate journal sequence")
			}
			k := make(nuts.Key, nuts.KeyLen(math.MaxUint64))
			k.Put(seq)
			if err := lb.Put(k, jval); err != nil {
				return errors.Wrap(err, "failed to append journal entry")
			}
		}
		return nil
	})
}

// load returns the cached records for a single project, if any.
func (c *BoltEdgeCache) load(pr ProjectRoot) ([]EdgeRecord, error) {
	var recs []EdgeRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("edges:" + string(pr)))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			_, rec, err := decodeCachedEdge(v)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load cached edges for %s", pr)
	}
	return recs, nil
}

// loadAll replays the journal in original ingest order.
func (c *BoltEdgeCache) loadAll() ([]journalEntry, error) {
	var entries []journalEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(cacheLogBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			pr, rec, err := decodeCachedEdge(v)
			if err != nil {
				return err
			}
			entries = append(entries, journalEntry{Root: pr, Record: rec})
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to replay edge cache journal")
	}
	return entries, nil
}

func encodeCachedEdge(pr ProjectRoot, rec EdgeRecord) ([]byte, error) {
	raw := rawCachedEdge{
		Root:    string(pr),
		Version: rec.Version.String(),
		Yanked:  rec.Yanked,
	}
	if len(rec.Deps) > 0 {
		raw.Deps = make(map[string]rawRange, len(rec.Deps))
		for dep, rng := range rec.Deps {
			raw.Deps[string(dep)] = encodeRawRange(rng)
		}
	}
	b, err := json.Marshal(raw)
	return b, errors.Wrapf(err, "failed to encode edge %s", rec.Version)
}

func decodeCachedEdge(b []byte) (ProjectRoot, EdgeRecord, error) {
	var raw rawCachedEdge
	if err := json.Unmarshal(b, &raw); err != nil {
		return "", EdgeRecord{}, errors.Wrap(err, "failed to decode cached edge")
	}
	v, err := NewVersion(raw.Version)
	if err != nil {
		return "", EdgeRecord{}, errors.Wrapf(err, "cached edge has unparseable version %q", raw.Version)
	}
	rec := EdgeRecord{Version: v, Yanked: raw.Yanked}
	if len(raw.Deps) > 0 {
		rec.Deps = make(map[ProjectRoot]Range, len(raw.Deps))
		for dep, rr := range raw.Deps {
			rng, err := rr.toRange()
			if err != nil {
				return "", EdgeRecord{}, errors.Wrapf(err, "cached edge %s has bad range on %s", raw.Version, dep)
			}
			rec.Deps[ProjectRoot(dep)] = rng
		}
	}
	return ProjectRoot(raw.Root), rec, nil
}

func encodeRawRange(rng Range) rawRange {
	var rr rawRange
	if rng.lo != nil {
		rr.Lower = rng.lo.v.String()
		rr.LowerInc = rng.lo.inc
	}
	if rng.hi != nil {
		rr.Upper = rng.hi.v.String()
		rr.UpperInc = rng.hi.inc
	}
	return rr
}
