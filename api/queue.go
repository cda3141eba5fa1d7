// Package api
// Author: momentics
//
// Fast, lock-free queue contract for cross-thread data transfer. Named
// Queue rather than Ring to leave the "ring" vocabulary to the netmap
// ring-fabric types (netmap_ring, kring) defined in package ring.

package api

// Queue is a contract for a high-performance, concurrent bounded FIFO.
type Queue[T any] interface {
	// Enqueue adds item, returns false if buffer full.
	Enqueue(item T) bool

	// Dequeue removes and returns the oldest item, false if buffer empty.
	Dequeue() (T, bool)

	// Len returns number of items currently in buffer.
	Len() int

	// Cap returns fixed buffer capacity.
	Cap() int
}
