package catalog

import "errors"

// ErrNotFound is returned by GetProduct for an unknown id.
var ErrNotFound = errors.New("product not found")
