package main

import (
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

// logHostMemory records how much memory the machine had when the run began,
// which puts the absolute end-memory bound in context.
func logHostMemory(logger *zap.SugaredLogger) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Warnw("host memory unavailable", "error", err)
		return
	}
	logger.Infow("host memory",
		"total_mb", vm.Total/(1024*1024),
		"available_mb", vm.Available/(1024*1024),
		"used_percent", vm.UsedPercent,
	)
}
