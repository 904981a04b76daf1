package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupConfig holds configuration for store backups.
type BackupConfig struct {
	// Dir is where backups are written.
	// Default: a "backups" directory next to the database file.
	Dir string

	// Keep is how many backups to retain; older ones are pruned after
	// each successful backup. Zero disables pruning.
	Keep int

	// Password enables encryption of the backup file when non-empty.
	Password string
}

// BackupManager creates and prunes copies of the store.
type BackupManager struct {
	dbPath string
	cfg    BackupConfig
}

// NewBackupManager creates a backup manager for the given database.
func NewBackupManager(dbPath string, cfg BackupConfig) *BackupManager {
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(filepath.Dir(dbPath), "backups")
	}
	return &BackupManager{dbPath: dbPath, cfg: cfg}
}

// Backup writes a timestamped copy of the store and returns its path.
// SQLite's VACUUM INTO produces a consistent copy without exclusive
// locks. With a password configured the copy is encrypted in place and
// carries a .enc suffix.
func (bm *BackupManager) Backup() (string, error) {
	if err := os.MkdirAll(bm.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	// Fixed-width fractional seconds keep names unique and sortable.
	name := fmt.Sprintf("soothsayer_%s.db", time.Now().UTC().Format("20060102_150405.000000000"))
	backupPath := filepath.Join(bm.cfg.Dir, name)

	source, err := sql.Open("sqlite", bm.dbPath)
	if err != nil {
		return "", fmt.Errorf("open source database: %w", err)
	}
	defer func() {
		_ = source.Close() //nolint:errcheck // read-only backup handle
	}()

	if _, err := source.Exec(fmt.Sprintf("VACUUM INTO %q", backupPath)); err != nil {
		return "", fmt.Errorf("vacuum into backup: %w", err)
	}

	if err := bm.verify(backupPath); err != nil {
		_ = os.Remove(backupPath) //nolint:errcheck // discarding bad copy
		return "", fmt.Errorf("verify backup: %w", err)
	}

	if bm.cfg.Password != "" {
		encPath := backupPath + ".enc"
		if err := EncryptFile(backupPath, encPath, bm.cfg.Password); err != nil {
			_ = os.Remove(backupPath) //nolint:errcheck // discarding bad copy
			return "", fmt.Errorf("encrypt backup: %w", err)
		}
		if err := os.Remove(backupPath); err != nil {
			return "", fmt.Errorf("remove plaintext backup: %w", err)
		}
		backupPath = encPath
	}

	if err := bm.prune(); err != nil {
		return "", err
	}
	return backupPath, nil
}

// List returns the backup files newest first.
func (bm *BackupManager) List() ([]string, error) {
	entries, err := os.ReadDir(bm.cfg.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "soothsayer_") {
			continue
		}
		names = append(names, entry.Name())
	}
	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(bm.cfg.Dir, n)
	}
	return paths, nil
}

// prune removes backups beyond the configured retention count.
func (bm *BackupManager) prune() error {
	if bm.cfg.Keep <= 0 {
		return nil
	}
	paths, err := bm.List()
	if err != nil {
		return err
	}
	for _, path := range paths[min(bm.cfg.Keep, len(paths)):] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("prune backup %s: %w", path, err)
		}
	}
	return nil
}

// verify checks that a backup file opens as a SQLite database.
func (bm *BackupManager) verify(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer func() {
		_ = db.Close() //nolint:errcheck // verification handle
	}()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return fmt.Errorf("query backup: %w", err)
	}
	return nil
}
