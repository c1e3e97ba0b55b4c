//go:build !linux

package chrono

// monotonicNs — на не-Linux используем монотонную часть time.Now.
func monotonicNs() int64 {
	return fallbackNs()
}
