package indoor

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMap   = errors.New("indoor map not registered")
	ErrDuplicateMap = errors.New("indoor map already registered")
	ErrUnknownLayer = errors.New("layer not found")
	ErrClosed       = errors.New("level manager closed")
	ErrNoLayers     = errors.New("indoor map has no layers and no style loader is configured")

	errSuperseded = errors.New("swap superseded")
)

// DataLoadError is a failed swap. It only ever reaches callers through an
// events.Error notification.
type DataLoadError struct {
	MapID string
	Err   error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load indoor map %q: %v", e.MapID, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }
