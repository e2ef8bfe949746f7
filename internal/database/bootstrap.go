package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"airsupport/internal/config"

	"github.com/rs/zerolog"
)

// BootstrapResult reports what Prepare did to produce the working copy.
type BootstrapResult struct {
	WorkingPath  string
	SnapshotPath string
	Downloaded   bool
	Shift        ShiftResult
}

type BootstrapOption func(*Bootstrapper)

// WithHTTPClient replaces the client used to fetch the snapshot.
func WithHTTPClient(client *http.Client) BootstrapOption {
	return func(b *Bootstrapper) { b.client = client }
}

// WithClock fixes the reference "now" for the date shift.
func WithClock(now func() time.Time) BootstrapOption {
	return func(b *Bootstrapper) { b.now = now }
}

// Bootstrapper derives a fresh working copy from the reference snapshot on
// every run so repeated starts never accumulate shifts.
type Bootstrapper struct {
	cfg    config.DataConfig
	client *http.Client
	now    func() time.Time
	logger *zerolog.Logger
}

func NewBootstrapper(cfg config.DataConfig, logger *zerolog.Logger, opts ...BootstrapOption) *Bootstrapper {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	b := &Bootstrapper{
		cfg:    cfg,
		client: http.DefaultClient,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bootstrapper) Prepare(ctx context.Context) (*BootstrapResult, error) {
	if err := os.MkdirAll(b.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	res := &BootstrapResult{
		WorkingPath:  b.cfg.WorkingPath(),
		SnapshotPath: b.cfg.SnapshotPath(),
	}

	if _, err := os.Stat(res.SnapshotPath); os.IsNotExist(err) {
		fetchCtx := ctx
		if b.cfg.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, b.cfg.FetchTimeout)
			defer cancel()
		}
		if err := fetchSnapshot(fetchCtx, b.client, b.cfg.SnapshotURL, res.SnapshotPath, b.logger); err != nil {
			return nil, err
		}
		res.Downloaded = true
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	if err := copyDatabase(ctx, res.SnapshotPath, res.WorkingPath, b.logger); err != nil {
		return nil, fmt.Errorf("failed to derive working copy: %w", err)
	}

	db, err := sql.Open("sqlite3", res.WorkingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open working copy: %w", err)
	}
	defer db.Close()

	plan := ShiftPlan{
		ReferenceTable:  b.cfg.ReferenceTable,
		ReferenceColumn: b.cfg.ReferenceColumn,
		Columns:         b.cfg.ShiftColumns,
	}
	shift, err := ShiftDates(ctx, db, plan, b.now(), b.logger)
	if err != nil {
		return nil, err
	}
	res.Shift = *shift

	b.logger.Info().
		Str("working_path", res.WorkingPath).
		Bool("downloaded", res.Downloaded).
		Bool("shifted", res.Shift.Applied).
		Msg("Working copy ready")
	return res, nil
}
