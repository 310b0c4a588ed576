package model

// PacketSource delivers captured packets to the aggregation loop. The channel
// is closed when the source is exhausted or closed.
type PacketSource interface {
	Records() <-chan PacketRecord

	// Close releases the underlying capture handle or subscription.
	Close() error
}
