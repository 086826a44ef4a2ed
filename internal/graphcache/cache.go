// Package graphcache persists parsed street graphs in BadgerDB so repeated
// runs skip shapefile parsing.
package graphcache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rotisserie/eris"

	"github.com/sells-group/saferoute/internal/graph"
)

const keyPrefix = "graph:"

// Cache is a BadgerDB-backed graph cache. Entries are keyed by graph name
// and a source fingerprint, so a changed source file misses.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (or creates) a cache in dir. ttl ≤ 0 keeps entries forever.
func Open(dir string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.ValueLogFileSize = 64 << 20
	return open(opts, ttl)
}

// OpenInMemory opens a cache that lives only as long as the process.
func OpenInMemory(ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, ttl)
}

func open(opts badger.Options, ttl time.Duration) (*Cache, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, eris.Wrap(err, "graphcache: open badger")
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Get returns the cached graph for name at fingerprint fp.
func (c *Cache) Get(name, fp string) (*graph.StreetGraph, bool, error) {
	g := graph.New(name)
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name, fp))
		if err != nil {
			return err
		}
		return item.Value(g.UnmarshalJSON)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "graphcache: get %s", name)
	}
	return g, true, nil
}

// Put stores g under name and fingerprint fp.
func (c *Cache) Put(name, fp string, g *graph.StreetGraph) error {
	data, err := g.MarshalJSON()
	if err != nil {
		return eris.Wrapf(err, "graphcache: encode %s", name)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(name, fp), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return eris.Wrapf(err, "graphcache: put %s", name)
	}
	return nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Fingerprint identifies the current version of a source file by size and
// modification time.
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", eris.Wrapf(err, "graphcache: stat %s", path)
	}
	return fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano()), nil
}

func key(name, fp string) []byte {
	return []byte(keyPrefix + name + ":" + fp)
}
