package fetch

import "errors"

var (
	// ErrNotFound 实体尚未被拉取过
	ErrNotFound = errors.New("entity not found")
	// ErrPinned base coins cannot leave the display set
	ErrPinned = errors.New("entity is pinned to the display")
)
