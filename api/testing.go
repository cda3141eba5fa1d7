// Package api
// Author: momentics
//
// Mock/testing utilities for core contracts; extendable for new interfaces.

package api

// MockMemoryAllocator is a test-friendly implementation of MemoryAllocator
// whose behavior per call is supplied by the test, the way MockTransport
// once let tests script Send/Recv/Close independently.
type MockMemoryAllocator struct {
	GetLutFunc       func(PoolKind) ([]LutEntry, error)
	GetInfoFunc      func(PoolKind) (uint32, uint32, error)
	OffsetToPhysFunc func(uint64) (uintptr, error)
	FinalizeFunc     func() error
	DerefFunc        func() error
	DeleteFunc       func() error
}

func (m *MockMemoryAllocator) GetLut(kind PoolKind) ([]LutEntry, error) {
	return m.GetLutFunc(kind)
}
func (m *MockMemoryAllocator) GetInfo(kind PoolKind) (uint32, uint32, error) {
	return m.GetInfoFunc(kind)
}
func (m *MockMemoryAllocator) OffsetToPhys(offset uint64) (uintptr, error) {
	return m.OffsetToPhysFunc(offset)
}
func (m *MockMemoryAllocator) Finalize() error { return m.FinalizeFunc() }
func (m *MockMemoryAllocator) Deref() error    { return m.DerefFunc() }
func (m *MockMemoryAllocator) Delete() error   { return m.DeleteFunc() }

var _ MemoryAllocator = (*MockMemoryAllocator)(nil)

// Extend with mocks for additional core contracts as the module evolves.
