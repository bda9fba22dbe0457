package queue

import "context"

// Client hands pipeline runs to a queue backend for worker processing.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
