package database

import "errors"

var (
	ErrSnapshotFetch   = errors.New("snapshot fetch failed")
	ErrNotSQLite       = errors.New("file is not a sqlite database")
	ErrNoChanges       = errors.New("no changes provided")
	ErrUnknownColumn   = errors.New("column cannot be updated")
	ErrInvalidArgument = errors.New("invalid argument")
)
