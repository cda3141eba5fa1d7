// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// High-performance concurrency primitives for the netmap core, with
// NUMA-aware, lock-free, and cross-platform support. Includes CPU/NUMA
// pinning, event loops, and executors used to drive the ring fabric and
// simulate softirq-style TX/RX dispatch.
//
// All implementations are cross-platform compatible (Linux/Windows).
package concurrency
