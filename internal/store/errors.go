package store

import "errors"

// Sentinel errors returned by storage implementations. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrQuotaFileCorrupted is returned when the quota document exists but
	// cannot be decoded. The record is never silently recreated in this
	// case: losing the counter would reopen consumed quota.
	ErrQuotaFileCorrupted = errors.New("quota record file is corrupted")

	// ErrUsageNotRecorded is returned when an INSERT into the usage log
	// completes without error but affects zero rows.
	ErrUsageNotRecorded = errors.New("usage entry was not recorded")

	// ErrUnknownAccount is returned when a usage entry references an
	// account the backing database does not know.
	ErrUnknownAccount = errors.New("unknown account")
)

// Low-level database operation errors, wrapped around driver failures
// before they cross the repository boundary.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a query against the
	// database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrScanningRow is returned when scanning column values from a result
	// row fails.
	ErrScanningRow = errors.New("failed to scan row")
)
