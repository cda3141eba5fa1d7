// File: pool/doc.go
// Package pool
// Author: momentics <momentics@gmail.com>
//
// High-performance, cross-platform object pooling and cluster allocation
// layer backing the netmap memory domains (IF/RING/BUF pools).
// Implements NUMA-aware, physically-backed cluster allocation for all
// supported OS (Linux/Windows), plus generic object reuse for hot-path
// scratch allocations.
// All core methods are thread-safe or explicitly document the concurrency contract.
package pool
