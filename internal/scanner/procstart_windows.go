//go:build windows

package scanner

// procStartUnix has no procfs fallback on Windows; gopsutil's CreateTime is
// the only source there.
func procStartUnix(_ int) int64 { return 0 }
