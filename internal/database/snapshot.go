package database

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var sqliteHeader = []byte("SQLite format 3\x00")

// fetchSnapshot downloads url into dest. The file only appears at dest once
// the body has been fully written, so an interrupted fetch leaves no snapshot.
func fetchSnapshot(ctx context.Context, client *http.Client, url, dest string, logger *zerolog.Logger) error {
	logger.Info().Str("url", url).Str("path", dest).Msg("Downloading database snapshot")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotFetch, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %s", ErrSnapshotFetch, url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotFetch, err)
	}

	if err := checkSQLiteHeader(tmpPath); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	logger.Info().Int64("bytes", n).Msg("Snapshot downloaded")
	return nil
}

func checkSQLiteHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, sqliteHeader) {
		return fmt.Errorf("%w: %s", ErrNotSQLite, path)
	}
	return nil
}

// copyDatabase replaces dst with a fresh copy of src. VACUUM INTO produces a
// consistent copy; a plain file copy is used when the driver refuses it.
func copyDatabase(ctx context.Context, src, dst string, logger *zerolog.Logger) error {
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		if err := os.Remove(dst + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove previous working copy: %w", err)
		}
	}

	logger.Debug().Str("src", src).Str("dst", dst).Msg("Copying snapshot using VACUUM INTO")

	db, err := sql.Open("sqlite3", "file:"+src+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	if _, err = db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		logger.Warn().Err(err).Msg("VACUUM INTO failed, falling back to file copy")
		_ = os.Remove(dst)
		return copyFile(src, dst)
	}
	return nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err = io.Copy(destination, source); err != nil {
		destination.Close()
		return err
	}
	return destination.Close()
}
