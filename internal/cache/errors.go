package cache

import (
	"fmt"

	"github.com/starford/glossa/internal/apperr"
)

// ErrMissing is returned for ids not in the cache.
var ErrMissing = fmt.Errorf("cache: no such entry: %w", apperr.ErrNotFound)
