package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrVersionConflict is returned when a row changed since the caller read it.
	ErrVersionConflict = errors.New("version conflict")
	// ErrLockBusy is returned when another writer holds the per-report file lock.
	ErrLockBusy = errors.New("report is locked by another writer")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
