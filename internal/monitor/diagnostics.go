package monitor

import (
	"runtime"

	"github.com/aleister1102/folderhook/internal/models"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// CollectDiagnostics samples process and host resource usage for debug_scan events.
// Scan-specific fields are left for the caller to fill in.
func CollectDiagnostics() models.ScanDiagnostics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	diag := models.ScanDiagnostics{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(m.HeapAlloc) / 1024 / 1024,
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		diag.SystemMemUsed = vmStat.UsedPercent
	}

	// Zero interval compares against the previous call instead of blocking the worker.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		diag.CPUPercent = percents[0]
	}

	return diag
}
