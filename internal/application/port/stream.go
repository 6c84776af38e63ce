package port

import "context"

// StreamControl is the push-connection surface seen by the application.
type StreamControl interface {
	Connect(ctx context.Context) error
	Disconnect()
	Status() string
	Attempts() int
}
