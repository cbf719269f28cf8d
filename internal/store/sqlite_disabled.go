//go:build !sqlite
// +build !sqlite

package store

import (
	"errors"

	logx "aisocials/pkg/logx"
)

// openSQLite is compiled out unless the 'sqlite' build tag is set, keeping
// the default build free of the cgo-less SQLite dependency tree.
func openSQLite(cfg Config, log logx.Logger) (JobStore, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite store not built in (build with -tags sqlite)")
}
