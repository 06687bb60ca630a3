package fixture

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// MemoryFunc returns the memory usage to report, in bytes.
type MemoryFunc func() (int64, error)

// ProcessRSS reports the resident set size of the current process. Where
// gopsutil cannot read it, the Go runtime's view (MemStats.Sys) is used.
func ProcessRSS(logger *zap.SugaredLogger) MemoryFunc {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warnw("process RSS unavailable, falling back to runtime stats", "error", err)
		return RuntimeSys
	}

	return func() (int64, error) {
		mi, err := proc.MemoryInfo()
		if err != nil {
			logger.Warnw("read process RSS", "error", err)
			return RuntimeSys()
		}
		return int64(mi.RSS), nil
	}
}

// RuntimeSys reports the memory the Go runtime obtained from the OS.
func RuntimeSys() (int64, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.Sys), nil
}
