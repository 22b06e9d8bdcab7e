package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/tabletmeta/internal/storage"
	"github.com/arkilian/tabletmeta/internal/tablet"
	"github.com/arkilian/tabletmeta/pkg/schemapb"
)

func TestSnapshotExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	src := newTestCatalog(t)
	require.NoError(t, src.PutSchema(ctx, testDescriptor(1, 0)))
	require.NoError(t, src.PutSchema(ctx, testDescriptor(1, 1)))
	require.NoError(t, src.PutSchema(ctx, testDescriptor(2, 0)))

	require.NoError(t, ExportSnapshot(ctx, src, store, "snapshots/catalog.snap"))

	dst := newTestCatalog(t)
	restored, err := ImportSnapshot(ctx, dst, store, "snapshots/catalog.snap")
	require.NoError(t, err)
	assert.Equal(t, 3, restored)

	for _, key := range []struct {
		id      int64
		version int
	}{{1, 0}, {1, 1}, {2, 0}} {
		got, err := dst.GetSchema(ctx, key.id, key.version)
		require.NoError(t, err)

		want, err := src.GetSchema(ctx, key.id, key.version)
		require.NoError(t, err)

		ws, err := tablet.SchemaFromPB(want)
		require.NoError(t, err)
		gs, err := tablet.SchemaFromPB(got)
		require.NoError(t, err)
		assert.True(t, ws.Equals(gs))
	}
}

func TestSnapshotImportSkipsExisting(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	src := newTestCatalog(t)
	require.NoError(t, src.PutSchema(ctx, testDescriptor(1, 0)))
	require.NoError(t, src.PutSchema(ctx, testDescriptor(2, 0)))
	require.NoError(t, ExportSnapshot(ctx, src, store, "catalog.snap"))

	dst := newTestCatalog(t)
	require.NoError(t, dst.PutSchema(ctx, testDescriptor(1, 0)))

	restored, err := ImportSnapshot(ctx, dst, store, "catalog.snap")
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
}

// flakyGetCatalog fails every GetSchema with a transient error and
// records whether PutSchema was reached.
type flakyGetCatalog struct {
	Catalog
	getErr error
	puts   int
}

func (f *flakyGetCatalog) GetSchema(ctx context.Context, schemaID int64, version int) (*schemapb.TabletSchemaPB, error) {
	return nil, f.getErr
}

func (f *flakyGetCatalog) PutSchema(ctx context.Context, pb *schemapb.TabletSchemaPB) error {
	f.puts++
	return nil
}

func TestSnapshotImportPropagatesTransientGetErrors(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	src := newTestCatalog(t)
	require.NoError(t, src.PutSchema(ctx, testDescriptor(1, 0)))
	require.NoError(t, ExportSnapshot(ctx, src, store, "catalog.snap"))

	// A failing read must abort the import, not be treated as "missing"
	// and overwritten.
	transient := errors.New("database is locked")
	dst := &flakyGetCatalog{getErr: transient}
	restored, err := ImportSnapshot(ctx, dst, store, "catalog.snap")
	assert.True(t, errors.Is(err, transient))
	assert.Equal(t, 0, restored)
	assert.Equal(t, 0, dst.puts)
}

func TestSnapshotImportMissingObject(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	dst := newTestCatalog(t)
	_, err = ImportSnapshot(context.Background(), dst, store, "does-not-exist.snap")
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))
}
