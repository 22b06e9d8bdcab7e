package tablet

import (
	"encoding/json"
	"sync"

	"github.com/arkilian/tabletmeta/pkg/schemapb"
	"github.com/spaolacci/murmur3"
)

const schemaMapShards = 16

// SchemaMap deduplicates structurally identical tablet schemas. A large
// deployment holds one descriptor per tablet; most tablets of a table
// share the same layout, so interning bounds total schema memory to one
// instance per distinct structure.
//
// Entries are keyed by a content hash of the canonical encoded form and
// compared with structural equality on collision. Get-or-insert is
// atomic per structural content: two concurrent callers decoding equal
// descriptors observe the same instance. Every instance handed out is
// reference-counted; Release is the drop notification that deregisters
// the entry on last release.
type SchemaMap struct {
	shards [schemaMapShards]schemaMapShard
}

type schemaMapShard struct {
	mu      sync.Mutex
	buckets map[uint64][]*TabletSchema
}

// SchemaMapStats summarizes the interned population.
type SchemaMapStats struct {
	// NumItems is the number of distinct interned schemas.
	NumItems int
	// MemUsage is the accounted memory of all interned schemas.
	MemUsage int64
	// SavedMemUsage is the memory avoided by sharing: the sum over all
	// entries of (refs-1) times the entry's usage.
	SavedMemUsage int64
}

// NewSchemaMap creates an empty interning map.
func NewSchemaMap() *SchemaMap {
	m := &SchemaMap{}
	for i := range m.shards {
		m.shards[i].buckets = make(map[uint64][]*TabletSchema)
	}
	return m
}

// GetOrCreate decodes the descriptor and interns the result. If an
// equal schema is already registered, the freshly decoded instance is
// discarded and the existing shared instance is returned with its
// reference count bumped; otherwise the new instance is registered and
// returned. Decode failures register nothing.
func (m *SchemaMap) GetOrCreate(pb *schemapb.TabletSchemaPB) (*TabletSchema, error) {
	s, err := SchemaFromPB(pb)
	if err != nil {
		return nil, err
	}
	return m.intern(s), nil
}

// Intern registers an already constructed, unpublished schema,
// returning either it or the previously registered equal instance.
func (m *SchemaMap) Intern(s *TabletSchema) *TabletSchema {
	return m.intern(s)
}

func (m *SchemaMap) intern(s *TabletSchema) *TabletSchema {
	hash := contentHash(s)
	shard := &m.shards[hash%schemaMapShards]

	shard.mu.Lock()
	defer shard.mu.Unlock()
	for _, existing := range shard.buckets[hash] {
		if existing.Equals(s) {
			existing.refs++
			return existing
		}
	}
	s.schemaMap = m
	s.internHash = hash
	s.refs = 1
	shard.buckets[hash] = append(shard.buckets[hash], s)
	return s
}

// Retain bumps the reference count of an interned schema for an
// additional independent owner. No-op for unshared schemas.
func (s *TabletSchema) Retain() {
	if s.schemaMap == nil {
		return
	}
	shard := &s.schemaMap.shards[s.internHash%schemaMapShards]
	shard.mu.Lock()
	s.refs++
	shard.mu.Unlock()
}

// Release drops one owner's reference. The last release deregisters the
// schema from its SchemaMap. No-op for unshared schemas; safe to run
// concurrently with lookups and registrations.
func (s *TabletSchema) Release() {
	if s.schemaMap == nil {
		return
	}
	shard := &s.schemaMap.shards[s.internHash%schemaMapShards]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	s.refs--
	if s.refs > 0 {
		return
	}
	bucket := shard.buckets[s.internHash]
	for i, entry := range bucket {
		if entry == s {
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			break
		}
	}
	if len(bucket) == 0 {
		delete(shard.buckets, s.internHash)
	} else {
		shard.buckets[s.internHash] = bucket
	}
	// Detach the back-reference so a stale handle's Retain or Release
	// after deregistration is a no-op instead of resurrecting the entry.
	s.schemaMap = nil
}

// Stats returns a snapshot of the interned population. Shards are
// locked one at a time, so the snapshot is per-shard consistent.
func (m *SchemaMap) Stats() SchemaMapStats {
	var stats SchemaMapStats
	for i := range m.shards {
		shard := &m.shards[i]
		shard.mu.Lock()
		for _, bucket := range shard.buckets {
			for _, s := range bucket {
				usage := s.MemUsage()
				stats.NumItems++
				stats.MemUsage += usage
				if s.refs > 1 {
					stats.SavedMemUsage += (s.refs - 1) * usage
				}
			}
		}
		shard.mu.Unlock()
	}
	return stats
}

// contentHash hashes the canonical encoded form of the schema's content.
// Every field Equals ignores is zeroed first, keeping the hash and the
// equality relation consistent: equal content always hashes equally.
func contentHash(s *TabletSchema) uint64 {
	pb := s.ToPB()
	pb.ID = 0
	pb.SchemaVersion = nil
	pb.NumRowsPerRowBlock = 0
	pb.NextColumnUniqueID = 0
	encoded, err := json.Marshal(pb)
	if err != nil {
		// Descriptor structs always marshal; an error here means memory
		// corruption, not input data.
		panic(err)
	}
	return murmur3.Sum64(encoded)
}
