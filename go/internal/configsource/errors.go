package configsource

import "errors"

// ErrNoConfig is returned when the backend has no competition config yet.
var ErrNoConfig = errors.New("no competition config")
