// File: pipe/crosslink.go
// Author: momentics <momentics@gmail.com>
//
// CrossLink implements the peer-pipe cross-link: A's TX krings become B's
// RX peers and vice versa, idempotently.

package pipe

import (
	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/ring"
)

// Pair names one adapter's krings for both directions, indexed by ring
// number (data rings only; host ring handling is the caller's concern).
type Pair struct {
	Tx []*ring.Kring
	Rx []*ring.Kring
}

// CrossLink links A and B so that A.Tx[i].pipe == B.Rx[i] and
// B.Tx[i].pipe == A.Rx[i], for every i in range. A's Tx count must equal
// B's Rx count and vice versa, matching spec's swap(dir) pairing.
func CrossLink(a, b Pair) error {
	if len(a.Tx) != len(b.Rx) || len(b.Tx) != len(a.Rx) {
		return api.NewError(api.ErrCodeInvalidConfig, "peer ring counts do not match for cross-link")
	}
	for i, k := range a.Tx {
		k.SetPeer(b.Rx[i])
		b.Rx[i].SetPeer(k)
	}
	for i, k := range b.Tx {
		k.SetPeer(a.Rx[i])
		a.Rx[i].SetPeer(k)
	}
	return nil
}

// Linked reports whether a and b are fully cross-linked (every kring's
// peer points back at it), the symmetry invariant of spec §8 property 5.
func Linked(a, b Pair) bool {
	for i, k := range a.Tx {
		if i >= len(b.Rx) || k.Peer() != b.Rx[i] || b.Rx[i].Peer() != k {
			return false
		}
	}
	for i, k := range b.Tx {
		if i >= len(a.Rx) || k.Peer() != a.Rx[i] || a.Rx[i].Peer() != k {
			return false
		}
	}
	return true
}
