package system

import (
	"fmt"
	"runtime"
)

// RuntimeStats is the process view reported by the health endpoint
type RuntimeStats struct {
	GoroutineCount int            `json:"goroutine_count"`
	AppMemory      AppMemoryStats `json:"memory_app"`
	GoVersion      string         `json:"go_version"`
}

type AppMemoryStats struct {
	CurrentAlloc string `json:"current_alloc"`
	TotalAlloc   string `json:"total_alloc"`
	SystemMem    string `json:"system_mem"`
	HeapInuse    string `json:"heap_inuse"`
	StackInuse   string `json:"stack_inuse"`
	GCCycles     uint32 `json:"gc_cycles"`
}

// GetRuntimeStats reads goroutine and memory statistics from the Go runtime
func GetRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		GoroutineCount: runtime.NumGoroutine(),
		GoVersion:      runtime.Version(),
		AppMemory: AppMemoryStats{
			CurrentAlloc: FormatBytes(m.Alloc),
			TotalAlloc:   FormatBytes(m.TotalAlloc),
			SystemMem:    FormatBytes(m.Sys),
			HeapInuse:    FormatBytes(m.HeapInuse),
			StackInuse:   FormatBytes(m.StackInuse),
			GCCycles:     m.NumGC,
		},
	}
}

// FormatBytes converts bytes to B, KB, MB or GB
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1fGB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1fMB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1fKB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
