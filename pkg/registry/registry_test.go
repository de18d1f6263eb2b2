package registry

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openfleet/fleet-registry/pkg/blob"
)

// newTestDB creates an in-memory SQLite DB with all registry tables migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, NewTypeStore(db).AutoMigrate())
	require.NoError(t, NewVersionStore(db, nil).AutoMigrate())
	require.NoError(t, NewLedger(db).AutoMigrate())
	require.NoError(t, NewDeviceStore(db).AutoMigrate())
	return db
}

// testEnv bundles the stores most tests need.
type testEnv struct {
	db       *gorm.DB
	blobs    *blob.MemoryStore
	types    *TypeStore
	versions *VersionStore
	ledger   *Ledger
	resolver *Resolver
	devices  *DeviceStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	blobs := blob.NewMemoryStore()
	return &testEnv{
		db:       db,
		blobs:    blobs,
		types:    NewTypeStore(db),
		versions: NewVersionStore(db, blobs),
		ledger:   NewLedger(db),
		resolver: NewResolver(db),
		devices:  NewDeviceStore(db),
	}
}

// mustVersion registers the type if needed and creates a version.
func (e *testEnv) mustVersion(t *testing.T, merchant, typeCode, parameter, tag string, payload []byte) *ArtifactVersionRecord {
	t.Helper()
	existing, err := e.types.GetType(merchant, typeCode)
	require.NoError(t, err)
	if existing == nil {
		_, err = e.types.RegisterType(merchant, typeCode, typeCode+" artifacts", "test")
		require.NoError(t, err)
	}
	record, err := e.versions.CreateVersion(merchant, typeCode, parameter, tag, payload, "test")
	require.NoError(t, err)
	return record
}
