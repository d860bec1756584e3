// Package resources inspects the host before a run so oversubscribed thread
// or memory budgets can be reported up front.
package resources

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

const bytesPerGB = 1 << 30

// Host describes the machine the run executes on.
type Host struct {
	LogicalCPUs int    `json:"logical_cpus"`
	TotalMemory uint64 `json:"total_memory_bytes"`
	FreeMemory  uint64 `json:"available_memory_bytes"`
}

// TotalMemoryGB is the total memory rounded down to whole gigabytes.
func (h Host) TotalMemoryGB() int {
	return int(h.TotalMemory / bytesPerGB)
}

// Probe reads host information. The zero value uses gopsutil.
type Probe struct {
	CPUCount func(ctx context.Context) (int, error)
	Memory   func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// Inspect collects CPU and memory figures. A figure that cannot be read is
// left at zero and reported in the error.
func (p Probe) Inspect(ctx context.Context) (Host, error) {
	cpuCount := p.CPUCount
	if cpuCount == nil {
		cpuCount = func(ctx context.Context) (int, error) { return cpu.CountsWithContext(ctx, true) }
	}
	memory := p.Memory
	if memory == nil {
		memory = mem.VirtualMemoryWithContext
	}

	var h Host
	n, cpuErr := cpuCount(ctx)
	if cpuErr == nil {
		h.LogicalCPUs = n
	}
	vm, memErr := memory(ctx)
	if memErr == nil && vm != nil {
		h.TotalMemory = vm.Total
		h.FreeMemory = vm.Available
	}
	switch {
	case cpuErr != nil && memErr != nil:
		return h, fmt.Errorf("detect cpus: %v; detect memory: %w", cpuErr, memErr)
	case cpuErr != nil:
		return h, fmt.Errorf("detect cpus: %w", cpuErr)
	case memErr != nil:
		return h, fmt.Errorf("detect memory: %w", memErr)
	}
	return h, nil
}

// Check compares a requested budget with the host and returns a warning for
// every limit it exceeds. Unknown host figures never warn.
func Check(h Host, threads, memoryGB int) []string {
	var warnings []string
	if h.LogicalCPUs > 0 && threads > h.LogicalCPUs {
		warnings = append(warnings, fmt.Sprintf("requested %d threads but only %d logical CPUs are available", threads, h.LogicalCPUs))
	}
	if h.TotalMemory > 0 && uint64(memoryGB)*bytesPerGB > h.TotalMemory {
		warnings = append(warnings, fmt.Sprintf("memory budget %d GB exceeds total system memory of %d GB", memoryGB, h.TotalMemoryGB()))
	}
	return warnings
}

// Warn inspects the host and logs every exceeded limit. It returns the
// warnings so callers can attach them to run output.
func Warn(ctx context.Context, p Probe, logger *zap.Logger, threads, memoryGB int) []string {
	if logger == nil {
		logger = zap.NewNop()
	}
	h, err := p.Inspect(ctx)
	if err != nil {
		logger.Debug("host inspection incomplete", zap.Error(err))
	}
	logger.Debug("host resources",
		zap.Int("logical_cpus", h.LogicalCPUs),
		zap.Uint64("total_memory_bytes", h.TotalMemory),
	)
	warnings := Check(h, threads, memoryGB)
	for _, w := range warnings {
		logger.Warn(w)
	}
	return warnings
}
