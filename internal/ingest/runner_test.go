package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmabridge/pharmsync/internal/db"

	_ "github.com/pharmabridge/pharmsync/internal/vendors/winpharma"
)

func testRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	h, err := db.Open("sqlite", filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	r := NewRunner(zerolog.Nop(), Config{WatchDir: filepath.Join(dir, "payloads")}, h.DB)
	require.NoError(t, os.Mkdir(r.cfg.WatchDir, 0o755))
	return r, r.cfg.WatchDir
}

const productsPayload = `{"Articles":[{"IdArticle":9,"Designation":"Doliprane 1g","Stock":12,"PrixTTC":2.5}]}`

func TestRunner_AppliesDroppedFile(t *testing.T) {
	r, watch := testRunner(t)
	name := "sync_winpharma_products_FR-12345_1.json"
	require.NoError(t, os.WriteFile(filepath.Join(watch, name), []byte(productsPayload), 0o644))

	r.scanOnce()

	var rec db.SyncFile
	require.NoError(t, r.db.Where("filename = ?", name).Take(&rec).Error)
	assert.Equal(t, 1, rec.Status)
	assert.Equal(t, "winpharma", rec.Vendor)
	assert.Equal(t, 1, rec.Created)
	assert.NotEmpty(t, rec.RunID)
	assert.NotNil(t, rec.ProcessedAt)

	var p db.InternalProduct
	require.NoError(t, r.db.Where("external_id = ?", 9).Take(&p).Error)
	assert.Equal(t, "Doliprane 1g", p.Name)
}

func TestRunner_DoneFileIsNotReapplied(t *testing.T) {
	r, watch := testRunner(t)
	name := "sync_winpharma_products_FR-12345_1.json"
	require.NoError(t, os.WriteFile(filepath.Join(watch, name), []byte(productsPayload), 0o644))

	r.scanOnce()
	r.scanOnce()

	var n int64
	require.NoError(t, r.db.Model(&db.SyncFile{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	var rec db.SyncFile
	require.NoError(t, r.db.Take(&rec).Error)
	assert.Equal(t, 1, rec.Created, "ledger keeps the first run's counts")
}

func TestRunner_RenamedCopySharesLedgerRow(t *testing.T) {
	r, watch := testRunner(t)
	require.NoError(t, os.WriteFile(filepath.Join(watch, "sync_winpharma_products_FR-12345_1.json"), []byte(productsPayload), 0o644))
	r.scanOnce()

	// same bytes under a new name: content hash dedups it
	require.NoError(t, os.WriteFile(filepath.Join(watch, "sync_winpharma_products_FR-12345_2.json"), []byte(productsPayload), 0o644))
	r.scanOnce()

	var n int64
	require.NoError(t, r.db.Model(&db.SyncFile{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestRunner_UndecodableFileMarkedError(t *testing.T) {
	r, watch := testRunner(t)
	name := "sync_winpharma_products_FR-12345_1.json"
	require.NoError(t, os.WriteFile(filepath.Join(watch, name), []byte(`{broken`), 0o644))

	r.scanOnce()

	var rec db.SyncFile
	require.NoError(t, r.db.Where("filename = ?", name).Take(&rec).Error)
	assert.Equal(t, 2, rec.Status)
	assert.NotEmpty(t, rec.LastError)
}

func TestRunner_IgnoresForeignFiles(t *testing.T) {
	r, watch := testRunner(t)
	require.NoError(t, os.WriteFile(filepath.Join(watch, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(watch, "sync_winpharma_coupons_FR-1.json"), []byte("{}"), 0o644))

	r.scanOnce()

	var n int64
	require.NoError(t, r.db.Model(&db.SyncFile{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}
