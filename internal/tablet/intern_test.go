package tablet

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaMap_DedupEqualSchemas(t *testing.T) {
	m := NewSchemaMap()

	first, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)

	// Same structure, different identity: must return the same instance.
	pb := testSchemaPB()
	pb.ID = 777
	second, err := m.GetOrCreate(pb)
	require.NoError(t, err)

	assert.Same(t, first, second, "structurally equal schemas must intern to one instance")
	assert.True(t, first.Shared())
	assert.Equal(t, 1, m.Stats().NumItems)
}

func TestSchemaMap_DistinctSchemasStayDistinct(t *testing.T) {
	m := NewSchemaMap()

	a, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)

	pb := testSchemaPB()
	pb.Columns[1].Name = "B2"
	b, err := m.GetOrCreate(pb)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, m.Stats().NumItems)

	// Each is independently destructible without affecting the other.
	a.Release()
	assert.Equal(t, 1, m.Stats().NumItems)
	if got := b.FieldIndexByName("B2"); got != 1 {
		t.Errorf("surviving schema damaged by releasing the other: %d", got)
	}
	b.Release()
	assert.Equal(t, 0, m.Stats().NumItems)
}

func TestSchemaMap_ReleaseCountsOwners(t *testing.T) {
	m := NewSchemaMap()

	first, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)
	second, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)
	require.Same(t, first, second)

	// Two owners: one release keeps the entry registered.
	first.Release()
	assert.Equal(t, 1, m.Stats().NumItems)

	third, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)
	assert.Same(t, first, third)

	second.Release()
	third.Release()
	assert.Equal(t, 0, m.Stats().NumItems)

	// After the last release, a new GetOrCreate registers a new instance.
	fresh, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	fresh.Release()
}

func TestSchemaMap_RetainAddsOwner(t *testing.T) {
	m := NewSchemaMap()

	s, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)

	s.Retain()
	s.Release()
	assert.Equal(t, 1, m.Stats().NumItems, "retained schema must survive one release")
	s.Release()
	assert.Equal(t, 0, m.Stats().NumItems)
}

func TestSchemaMap_StaleHandleAfterDeregistration(t *testing.T) {
	m := NewSchemaMap()

	s, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)
	s.Release()
	require.Equal(t, 0, m.Stats().NumItems)
	assert.False(t, s.Shared(), "deregistered schema must drop its map reference")

	// Extra Release/Retain on the stale handle must be no-ops: they must
	// not drive the count negative or resurrect the deregistered entry.
	s.Release()
	s.Retain()
	assert.Equal(t, 0, m.Stats().NumItems)

	// A fresh equal schema interns independently of the stale handle.
	fresh, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
	assert.Equal(t, 1, m.Stats().NumItems)
	fresh.Release()
	assert.Equal(t, 0, m.Stats().NumItems)
}

func TestSchemaMap_ReleaseUnsharedIsNoop(t *testing.T) {
	s := mustSchema(t, testSchemaPB())
	assert.False(t, s.Shared())
	s.Release() // must not panic
	s.Retain()  // must not panic
}

func TestSchemaMap_DecodeFailureRegistersNothing(t *testing.T) {
	m := NewSchemaMap()

	pb := testSchemaPB()
	pb.Columns[2].UniqueID = 0
	_, err := m.GetOrCreate(pb)
	require.Error(t, err)
	assert.Equal(t, 0, m.Stats().NumItems)
}

func TestSchemaMap_ConcurrentGetOrCreate(t *testing.T) {
	m := NewSchemaMap()

	const goroutines = 32
	results := make([]*TabletSchema, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			s, err := m.GetOrCreate(testSchemaPB())
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			results[i] = s
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, m.Stats().NumItems, "concurrent equal interning must yield one instance")
	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}

	// Concurrent releases, the last one deregisters.
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i].Release()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, m.Stats().NumItems)
}

func TestSchemaMap_StatsTracksSavedMemory(t *testing.T) {
	m := NewSchemaMap()

	first, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, int64(0), stats.SavedMemUsage)
	assert.Equal(t, first.MemUsage(), stats.MemUsage)

	second, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)
	require.Same(t, first, second)

	stats = m.Stats()
	assert.Equal(t, first.MemUsage(), stats.SavedMemUsage, "one duplicate saves one instance's usage")
}

func TestSchemaMap_InternedSchemaIsReadOnly(t *testing.T) {
	m := NewSchemaMap()

	s, err := m.GetOrCreate(testSchemaPB())
	require.NoError(t, err)

	err = s.SetNumShortKeyColumns(2)
	require.Error(t, err, "interned schemas must reject mutation")
}
