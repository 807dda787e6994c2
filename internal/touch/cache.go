package touch

import (
	"sync/atomic"
	"time"

	"github.com/jf994/miro-behavior/internal/types"
)

// Cache holds the most recent sensor snapshot.
//
// One writer (the sensor ingestion goroutine) replaces the whole snapshot,
// any number of readers load it. Snapshots are swapped through an atomic
// pointer, so a reader never sees head zones from one event and body zones
// from another.
type Cache struct {
	current atomic.Pointer[types.Snapshot]
	seq     atomic.Uint64
	rejects atomic.Uint64

	now func() time.Time
}

// NewCache returns a cache whose initial snapshot has every zone untouched
func NewCache() *Cache {
	c := &Cache{now: time.Now}
	c.current.Store(&types.Snapshot{})
	return c
}

// Update decodes r and, on success, replaces the snapshot.
// On a DecodeError the previous snapshot is kept.
func (c *Cache) Update(r types.RawReading) error {
	flags, err := DecodeReading(r)
	if err != nil {
		c.rejects.Add(1)
		return err
	}
	c.Store(flags)
	return nil
}

// Store replaces the snapshot with already decoded flags
func (c *Cache) Store(flags types.SensorFlags) {
	c.current.Store(&types.Snapshot{
		Flags:     flags,
		Seq:       c.seq.Add(1),
		UpdatedAt: c.now(),
	})
}

// Load returns the latest complete snapshot
func (c *Cache) Load() types.Snapshot {
	return *c.current.Load()
}

// Rejected returns how many readings failed to decode
func (c *Cache) Rejected() uint64 {
	return c.rejects.Load()
}
