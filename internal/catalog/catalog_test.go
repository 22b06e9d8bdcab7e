package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/tabletmeta/internal/tablet"
	"github.com/arkilian/tabletmeta/pkg/schemapb"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	cat, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func testDescriptor(id int64, version int) *schemapb.TabletSchemaPB {
	return &schemapb.TabletSchemaPB{
		ID:                 id,
		KeysType:           "DUP_KEYS",
		NumShortKeyColumns: 1,
		NumRowsPerRowBlock: 1024,
		CompressionType:    "SNAPPY",
		NextColumnUniqueID: 2,
		SchemaVersion:      &version,
		Columns: []schemapb.ColumnPB{
			{UniqueID: 0, Name: "k", Type: "BIGINT", IsKey: true},
			{UniqueID: 1, Name: "v", Type: "VARCHAR", IsNullable: true, Length: 32},
		},
	}
}

func TestCatalogPutGetRoundTrip(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	pb := testDescriptor(7, 0)
	require.NoError(t, cat.PutSchema(ctx, pb))

	got, err := cat.GetSchema(ctx, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, pb.ID, got.ID)
	assert.Equal(t, pb.KeysType, got.KeysType)
	require.Len(t, got.Columns, 2)
	assert.Equal(t, "k", got.Columns[0].Name)
	assert.Equal(t, "v", got.Columns[1].Name)

	// Stored blob must decode into the same schema content.
	want, err := tablet.SchemaFromPB(pb)
	require.NoError(t, err)
	decoded, err := tablet.SchemaFromPB(got)
	require.NoError(t, err)
	assert.True(t, want.Equals(decoded))
}

func TestCatalogGetMissing(t *testing.T) {
	cat := newTestCatalog(t)

	_, err := cat.GetSchema(context.Background(), 99, 0)
	assert.True(t, errors.Is(err, ErrSchemaNotFound))
}

func TestCatalogRejectsInvalidID(t *testing.T) {
	cat := newTestCatalog(t)

	pb := testDescriptor(tablet.InvalidSchemaID, 0)
	err := cat.PutSchema(context.Background(), pb)
	assert.True(t, errors.Is(err, ErrInvalidSchemaID))
}

func TestCatalogRejectsInvalidDescriptor(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	// Duplicate unique ids must never be persisted.
	pb := testDescriptor(8, 0)
	pb.Columns[1].UniqueID = pb.Columns[0].UniqueID
	require.Error(t, cat.PutSchema(ctx, pb))

	_, err := cat.GetSchema(ctx, 8, 0)
	assert.True(t, errors.Is(err, ErrSchemaNotFound))
}

func TestCatalogVersioning(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	v0 := testDescriptor(5, 0)
	require.NoError(t, cat.PutSchema(ctx, v0))

	v1 := testDescriptor(5, 1)
	v1.Columns = append(v1.Columns, schemapb.ColumnPB{
		UniqueID: 2, Name: "added", Type: "INT", IsNullable: true,
	})
	v1.NextColumnUniqueID = 3
	require.NoError(t, cat.PutSchema(ctx, v1))

	got0, err := cat.GetSchema(ctx, 5, 0)
	require.NoError(t, err)
	assert.Len(t, got0.Columns, 2)

	got1, err := cat.GetSchema(ctx, 5, 1)
	require.NoError(t, err)
	assert.Len(t, got1.Columns, 3)

	records, err := cat.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 0, records[0].SchemaVersion)
	assert.Equal(t, 1, records[1].SchemaVersion)
}

func TestCatalogDeleteSchema(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.PutSchema(ctx, testDescriptor(3, 0)))
	require.NoError(t, cat.DeleteSchema(ctx, 3, 0))

	_, err := cat.GetSchema(ctx, 3, 0)
	assert.True(t, errors.Is(err, ErrSchemaNotFound))
}

func TestCatalogRegisterTablet(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.PutSchema(ctx, testDescriptor(11, 0)))

	tabletID, err := cat.RegisterTablet(ctx, 11, 0)
	require.NoError(t, err)
	require.NotEmpty(t, tabletID)

	got, err := cat.GetTabletSchema(ctx, tabletID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
}

func TestCatalogRegisterTabletMissingSchema(t *testing.T) {
	cat := newTestCatalog(t)

	_, err := cat.RegisterTablet(context.Background(), 404, 0)
	assert.True(t, errors.Is(err, ErrSchemaNotFound))
}

func TestCatalogGetTabletSchemaMissing(t *testing.T) {
	cat := newTestCatalog(t)

	_, err := cat.GetTabletSchema(context.Background(), "no-such-tablet")
	assert.True(t, errors.Is(err, ErrTabletNotFound))
}

func TestCatalogWarmSchemaMap(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	// Two stored descriptors with identical content but distinct ids
	// collapse to one interned schema after warming.
	require.NoError(t, cat.PutSchema(ctx, testDescriptor(1, 0)))
	require.NoError(t, cat.PutSchema(ctx, testDescriptor(2, 0)))

	m := tablet.NewSchemaMap()
	loaded, err := cat.WarmSchemaMap(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 1, m.Stats().NumItems)
}
