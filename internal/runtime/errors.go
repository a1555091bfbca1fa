package runtime

import "errors"

// ErrDatasetCapacity is returned when every dataset slot is taken.
var ErrDatasetCapacity = errors.New("runtime: open dataset limit reached")
