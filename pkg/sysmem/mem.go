// Package sysmem detects total system memory, using platform-specific calls
// and a fixed default where detection is unsupported.
package sysmem

// DefaultMemoryBytes is the fallback used when detection fails (4 GiB).
const DefaultMemoryBytes uint64 = 4 * 1024 * 1024 * 1024

// Result holds the result of memory detection.
type Result struct {
	TotalBytes uint64
	// Reliable is false when TotalBytes is DefaultMemoryBytes.
	Reliable bool
}

// Total returns the memory available to this process: physical RAM, capped
// by a container memory limit where the platform exposes one.
func Total() Result {
	bytes, ok := totalSystemMemory()
	if !ok || bytes == 0 {
		return Result{TotalBytes: DefaultMemoryBytes}
	}
	if limit, ok := containerLimit(); ok && limit < bytes {
		bytes = limit
	}
	return Result{TotalBytes: bytes, Reliable: true}
}
