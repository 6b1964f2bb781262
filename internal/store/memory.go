package store

import "runtime"

// MemoryUsage reports the process's current heap usage in bytes, the Go
// analogue of the original implementation's
// Runtime.totalMemory()-Runtime.freeMemory(). This is a process-wide
// figure, not specific to this store's entries; LocalStore doesn't track
// per-entry byte sizes.
func (s *LocalStore) MemoryUsage() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

// TotalMemory reports the process's current heap reservation in bytes, the
// analogue of Runtime.totalMemory().
func (s *LocalStore) TotalMemory() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapSys
}
