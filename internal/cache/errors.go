package cache

import "errors"

var ErrOpenFailed = errors.New("failed to open cache database")
var ErrMigrationFailed = errors.New("failed to migrate cache schema")
var ErrQueryFailed = errors.New("cache query failed")
