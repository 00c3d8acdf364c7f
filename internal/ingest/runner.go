// internal/ingest/runner.go
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pharmabridge/pharmsync/internal/db"
	"github.com/pharmabridge/pharmsync/internal/syncer"
	"github.com/pharmabridge/pharmsync/internal/vendors"
)

// Config drives the watch-dir runner: where payload files land, how often
// to scan, and the source encoding per vendor (utf-8 when unset).
type Config struct {
	WatchDir  string            `json:"watch_dir"`
	PollSec   int               `json:"poll_sec"`
	Encodings map[string]string `json:"encodings"`
}

// Runner is the caller side of the engine: it picks up payload files
// dropped by the vendor fetchers, registers them in the sync_files ledger
// (sha256-deduplicated, so a replayed file is applied idempotently) and
// feeds them through the sync service.
type Runner struct {
	log zerolog.Logger
	cfg Config
	db  *gorm.DB
	svc *syncer.Service

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(log zerolog.Logger, cfg Config, gdb *gorm.DB) *Runner {
	return &Runner{log: log, cfg: cfg, db: gdb, svc: syncer.NewService(gdb, log)}
}

func (r *Runner) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.log.Info().Str("dir", r.cfg.WatchDir).Msg("runner: start")

	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	// first pass right away
	r.scanOnce()

	for {
		select {
		case <-r.ctx.Done():
			r.log.Info().Msg("runner: stop")
			return nil
		case <-ticker.C:
			r.scanOnce()
			ticker.Reset(r.interval())
		}
	}
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) interval() time.Duration {
	if r.cfg.PollSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.cfg.PollSec) * time.Second
}

func (r *Runner) scanOnce() {
	entries, err := os.ReadDir(r.cfg.WatchDir)
	if err != nil {
		r.log.Error().Err(err).Str("dir", r.cfg.WatchDir).Msg("runner: cannot read watch dir")
		return
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		vendor, kind, pharmacy, ok := parseName(name)
		if !ok {
			continue
		}
		full := filepath.Join(r.cfg.WatchDir, name)

		rec, already, err := r.registerFile(full, name, vendor, kind)
		if err != nil {
			r.log.Error().Err(err).Str("file", name).Msg("runner: file registration failed")
			continue
		}
		if already && rec.Status == 1 {
			r.log.Debug().Str("file", name).Msg("runner: already done, skipping")
			continue
		}
		if already {
			r.log.Warn().Str("file", name).Uint("sync_id", rec.SyncID).
				Int("status", rec.Status).Msg("runner: file seen before but not done, reprocessing")
		}

		if err := r.processFile(rec, full, vendor, kind, pharmacy); err != nil {
			r.log.Error().Err(err).Str("file", name).Uint("sync_id", rec.SyncID).Msg("runner: processing failed")
			_ = r.db.Model(&db.SyncFile{}).Where("sync_id = ?", rec.SyncID).
				Updates(map[string]any{"status": 2, "last_error": err.Error()})
			continue
		}
	}
}

// sync_<vendor>_<kind>_<pharmacy-code>_<anything>.json
func parseName(name string) (vendor, kind, pharmacy string, ok bool) {
	if !strings.HasPrefix(name, "sync_") || !strings.HasSuffix(name, ".json") {
		return "", "", "", false
	}
	parts := strings.SplitN(strings.TrimSuffix(name, ".json"), "_", 5)
	if len(parts) < 4 {
		return "", "", "", false
	}
	vendor, kind, pharmacy = parts[1], parts[2], parts[3]
	switch kind {
	case vendors.KindProducts, vendors.KindOrders, vendors.KindSales:
	default:
		return "", "", "", false
	}
	return vendor, kind, pharmacy, true
}

func (r *Runner) registerFile(fullPath, name, vendor, kind string) (db.SyncFile, bool, error) {
	fi, err := os.Stat(fullPath)
	if err != nil {
		return db.SyncFile{}, false, err
	}
	h, err := fileSHA256(fullPath)
	if err != nil {
		return db.SyncFile{}, false, err
	}

	var existing db.SyncFile
	err = r.db.Where("sha256 = ? OR filename = ?", h, name).Take(&existing).Error
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return db.SyncFile{}, false, err
	}

	rec := db.SyncFile{
		Filename:  name,
		SHA256:    h,
		Vendor:    vendor,
		Kind:      kind,
		SizeBytes: fi.Size(),
		Status:    0,
	}
	if err := r.db.Create(&rec).Error; err != nil {
		return db.SyncFile{}, false, err
	}
	return rec, false, nil
}

func (r *Runner) processFile(rec db.SyncFile, fullPath, vendor, kind, pharmacy string) error {
	f, err := os.Open(fullPath)
	if err != nil {
		return err
	}
	defer f.Close()

	payload, err := DecodePayload(f, r.cfg.Encodings[vendor])
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	runID := uuid.NewString()
	log := r.log.With().Str("run_id", runID).Str("file", rec.Filename).Logger()

	res, err := r.svc.Sync(vendor, kind, syncer.PharmacyRef{RegistrationCode: pharmacy, Name: pharmacy}, payload)
	if err != nil {
		// partial counts are still worth keeping on the ledger row
		_ = r.db.Model(&db.SyncFile{}).Where("sync_id = ?", rec.SyncID).
			Updates(map[string]any{
				"run_id": runID, "created": res.Created, "updated": res.Updated, "skipped": res.Skipped,
			})
		return err
	}

	now := time.Now()
	if err := r.db.Model(&db.SyncFile{}).Where("sync_id = ?", rec.SyncID).
		Updates(map[string]any{
			"status": 1, "run_id": runID, "processed_at": now,
			"created": res.Created, "updated": res.Updated, "skipped": res.Skipped,
			"last_error": "",
		}).Error; err != nil {
		return err
	}

	log.Info().
		Str("vendor", vendor).Str("kind", kind).Str("pharmacy", pharmacy).
		Int("created", res.Created).Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).Int("skipped", res.Skipped).
		Int("errors", len(res.Errors)).
		Msg("runner: file applied")
	for _, re := range res.Errors {
		log.Warn().Int("row", re.Index).Str("reason", re.Reason).Msg("runner: row skipped")
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
