// Package cache stores compiled scripts by content. A script's key
// covers its normalized blocks, its hat id and everything in the compile
// options that changes the output, so a hit can be used as is.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/compiler"
	"github.com/chazu/blockjit/compiler/hash"
)

var log = commonlog.GetLogger("blockjit.cache")

// Key identifies one compiled script.
type Key [32]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// keyInput is encoded canonically and hashed into a Key.
type keyInput struct {
	Script  []byte `cbor:"1,keyasint"`
	Hat     string `cbor:"2,keyasint"`
	Options string `cbor:"3,keyasint"`
}

// KeyFor derives the key of the script under hatID.
func KeyFor(t *block.Target, hatID string, opts compiler.Options) (Key, error) {
	h := hash.HashScript(t.Blocks, hatID)
	data, err := encMode.Marshal(keyInput{
		Script:  h[:],
		Hat:     hatID,
		Options: opts.Fingerprint(),
	})
	if err != nil {
		return Key{}, err
	}
	return sha256.Sum256(data), nil
}

// Store holds encoded scripts by key.
type Store interface {
	Get(k Key) ([]byte, bool, error)
	Put(k Key, data []byte) error
	Len() (int, error)
	Close() error
}

// Stats counts cache lookups.
type Stats struct {
	Hits   uint64
	Misses uint64
	Errors uint64
}

// Cache implements compiler.Cache over a Store. Store failures are
// logged and treated as misses; a broken cache never fails a compile.
type Cache struct {
	store Store

	hits   atomic.Uint64
	misses atomic.Uint64
	errors atomic.Uint64
}

var _ compiler.Cache = (*Cache)(nil)

// New creates a cache over store.
func New(store Store) *Cache {
	return &Cache{store: store}
}

// Get returns the cached script, retargeted to t. Scripts with identical
// blocks in different sprites share one entry.
func (c *Cache) Get(t *block.Target, hatID string, opts compiler.Options) (*compiler.CompiledScript, bool) {
	k, err := KeyFor(t, hatID, opts)
	if err != nil {
		c.fail("key", err)
		return nil, false
	}
	data, ok, err := c.store.Get(k)
	if err != nil {
		c.fail("get", err)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		log.Debugf("miss %s/%s %s", t.Name, hatID, k)
		return nil, false
	}
	s, err := UnmarshalScript(data)
	if err != nil {
		c.fail("decode", err)
		return nil, false
	}
	c.hits.Add(1)
	log.Debugf("hit %s/%s %s", t.Name, hatID, k)
	s.Target = t.Name
	return s, true
}

// Put stores s under the key of the script it was compiled from.
func (c *Cache) Put(t *block.Target, hatID string, opts compiler.Options, s *compiler.CompiledScript) {
	k, err := KeyFor(t, hatID, opts)
	if err != nil {
		c.fail("key", err)
		return
	}
	data, err := MarshalScript(s)
	if err != nil {
		c.fail("encode", err)
		return
	}
	if err := c.store.Put(k, data); err != nil {
		c.fail("put", err)
	}
}

func (c *Cache) fail(op string, err error) {
	c.errors.Add(1)
	log.Warningf("cache %s: %s", op, err)
}

// Stats returns lookup counts so far.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Errors: c.errors.Load()}
}

// Close closes the store.
func (c *Cache) Close() error {
	return c.store.Close()
}
