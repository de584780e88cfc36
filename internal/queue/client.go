package queue

import "context"

// Client enqueues analysis jobs for the worker fleet.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
