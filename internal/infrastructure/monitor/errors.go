package monitor

import "errors"

var errNotConfigured = errors.New("not configured")
