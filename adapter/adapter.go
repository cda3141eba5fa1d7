// File: adapter/adapter.go
// Author: momentics <momentics@gmail.com>
//
// Adapter is the kernel object representing one netmap-capable interface
// (physical NIC, virtual port, or pipe endpoint). It holds a memory
// domain reference, its ring counts and descriptor counts, the
// HOST_RINGS flag, a device handle carrying an IOMMU group id, and the
// TX/RX kring arrays. Shaped like adapters.AffinityAdapter/
// adapters.ControlAdapter: a small struct implementing a narrow
// capability interface, constructed by a NewXAdapter factory.

package adapter

import (
	"sync"

	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/memdomain"
	"github.com/momentics/netmap/ring"
)

// DeviceHandle is the opaque per-adapter device reference carrying an
// IOMMU group id, standing in for the driver-owned struct device.
type DeviceHandle struct {
	IOMMUGroup int
}

// DriverOps is the narrow collaborator interface consumed from driver
// shims (spec §6): register, txsync, rxsync, and krings create/delete
// hooks a real NIC driver would install. Out of scope to implement fully
// (no real NIC in this module); Adapter's own methods (Attach/Detach,
// IfNew, RingsCreate/RingsDelete) never call into Driver.
type DriverOps interface {
	Register(a *Adapter, onoff bool) error
	TxSync(a *Adapter, ringID int) error
	RxSync(a *Adapter, ringID int) error
	KringsCreate(a *Adapter) error
	KringsDelete(a *Adapter) error
}

// Adapter is one netmap-capable interface attached to a memory domain.
type Adapter struct {
	mu sync.Mutex

	id     uint32
	Domain *memdomain.Global
	Device DeviceHandle

	NTx, NRx         uint32
	NDescTx, NDescRx uint32
	HostRings        bool

	QFirstTx, QLastTx uint32
	QFirstRx, QLastRx uint32

	TxKrings []*ring.Kring
	RxKrings []*ring.Kring

	Nifp *ring.NetmapIf

	refcount int

	Driver DriverOps
}

// NewAdapter constructs an unattached adapter for domain d with the given
// ring/descriptor geometry. id must be unique within the owning registry
// of adapters (left to the caller, e.g. a VALE/pipe demo harness).
func NewAdapter(id uint32, d *memdomain.Global, ntx, nrx, ndescTx, ndescRx uint32, hostRings bool) *Adapter {
	a := &Adapter{
		id:        id,
		Domain:    d,
		NTx:       ntx,
		NRx:       nrx,
		NDescTx:   ndescTx,
		NDescRx:   ndescRx,
		HostRings: hostRings,
		QFirstTx:  0, QLastTx: ntx,
		QFirstRx: 0, QLastRx: nrx,
		Device: DeviceHandle{IOMMUGroup: -1},
	}
	txCount := ntx
	rxCount := nrx
	if hostRings {
		txCount++
		rxCount++
	}
	a.TxKrings = make([]*ring.Kring, txCount)
	for i := range a.TxKrings {
		a.TxKrings[i] = ring.NewKring(api.DirTX, i, ndescTx)
	}
	a.RxKrings = make([]*ring.Kring, rxCount)
	for i := range a.RxKrings {
		a.RxKrings[i] = ring.NewKring(api.DirRX, i, ndescRx)
	}
	return a
}

// ID returns the adapter's identifier.
func (a *Adapter) ID() uint32 { return a.id }

// Attach increments the adapter's reference count and, on first attach,
// has the domain adopt the adapter's IOMMU group (or fails with
// GroupMismatch).
func (a *Adapter) Attach() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refcount == 0 {
		if err := a.Domain.AdoptIOMMUGroup(a.Device.IOMMUGroup); err != nil {
			return err
		}
	}
	a.refcount++
	return nil
}

// Detach decrements the reference count; idempotent once it reaches zero.
func (a *Adapter) Detach() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refcount == 0 {
		return nil
	}
	a.refcount--
	return nil
}

// Refcount reports the current attach count.
func (a *Adapter) Refcount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refcount
}

// IfNew allocates the adapter's netmap_if from the domain's IF pool.
func (a *Adapter) IfNew(name string) (uint64, error) {
	ifPool := a.Domain.Pool(api.PoolIF)
	ofs, nif, err := ring.IfNew(
		ifPool, a.Domain, name,
		a.NTx, a.NRx, a.HostRings,
		ring.Selection{QFirst: a.QFirstTx, QLast: a.QLastTx},
		ring.Selection{QFirst: a.QFirstRx, QLast: a.QLastRx},
		a.TxKrings, a.RxKrings,
	)
	if err != nil {
		return 0, err
	}
	a.Nifp = nif
	return ofs, nil
}

// IfDelete releases the adapter's netmap_if.
func (a *Adapter) IfDelete() error {
	if a.Nifp == nil {
		return nil
	}
	ifPool := a.Domain.Pool(api.PoolIF)
	if err := ring.IfDelete(ifPool, a.Nifp); err != nil {
		return err
	}
	a.Nifp = nil
	return nil
}

// RingsCreate allocates netmap_ring/netmap_slot blocks for every kring
// that currently needs one (users>0 or peer NEEDRING).
func (a *Adapter) RingsCreate() error {
	ringPool := a.Domain.Pool(api.PoolRING)
	bufPool := a.Domain.Pool(api.PoolBUF)
	if err := ring.RingsCreate(ringPool, bufPool, a.Domain, a.TxKrings, a.NDescTx, api.DirTX, a.HostRings); err != nil {
		return err
	}
	return ring.RingsCreate(ringPool, bufPool, a.Domain, a.RxKrings, a.NDescRx, api.DirRX, a.HostRings)
}

// RingsDelete frees rings no longer referenced by any user or peer.
func (a *Adapter) RingsDelete() error {
	ringPool := a.Domain.Pool(api.PoolRING)
	bufPool := a.Domain.Pool(api.PoolBUF)
	if err := ring.RingsDelete(ringPool, bufPool, a.TxKrings, a.HostRings); err != nil {
		return err
	}
	return ring.RingsDelete(ringPool, bufPool, a.RxKrings, a.HostRings)
}

// PinDriverContext calls the supplied pin function with the caller's
// numaNode and cpuID and returns its error; the pinning itself is done
// entirely by pin.
func PinDriverContext(numaNode, cpuID int, pin func(numaNode, cpuID int) error) error {
	return pin(numaNode, cpuID)
}
