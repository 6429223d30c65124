package domain

// Subscription is a handle on a stream of messages. Unsubscribe releases
// the underlying resources; the Stream channel is closed afterwards.
type Subscription[T any] struct {
	Stream      chan T
	Topic       string
	Unsubscribe func()
}
