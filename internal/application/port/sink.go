package port

import (
	"time"

	"pulseboard/internal/domain/model"
)

type Sink interface {
	// Live line: overwrite last line (no newline)
	WriteLive(line string) error
	// Snapshot line: append a historical line with timestamp
	WriteSnapshot(ts time.Time, line string) error
	// Notification line printed above the live line
	WriteNotification(n model.Notification) error
	// Normal newline (for logs)
	NewLine() error
}
