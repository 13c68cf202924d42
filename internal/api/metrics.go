package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics сведения о процессе для /api/stats
type ServerMetrics struct {
	StartTime time.Time
}

// ProcessStats снимок состояния процесса
type ProcessStats struct {
	Uptime       string  `json:"uptime"`
	CPUPercent   float64 `json:"cpu_percent"`
	RSSMB        float64 `json:"rss_mb"`
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	NumGC        uint32  `json:"num_gc"`
	Goroutines   int     `json:"goroutines"`
	LogicalCPUs  int     `json:"logical_cpus"`
	ServerTimeMS int64   `json:"server_time_ms"`
}

func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{StartTime: time.Now()}
}

// Snapshot собирает статистику. Ошибки gopsutil не фатальны:
// соответствующие поля остаются нулевыми.
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	st := ProcessStats{
		Uptime:       time.Since(sm.StartTime).Truncate(time.Second).String(),
		HeapAllocMB:  float64(m.HeapAlloc) / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		ServerTimeMS: time.Now().UnixMilli(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if pct, err := proc.CPUPercent(); err == nil {
			st.CPUPercent = pct
		}
		if mem, err := proc.MemoryInfo(); err == nil {
			st.RSSMB = float64(mem.RSS) / 1024 / 1024
		}
	}
	if n, err := cpu.Counts(true); err == nil {
		st.LogicalCPUs = n
	}
	return st
}

func (rs *RestServer) handleStats(c *gin.Context) {
	stats := gin.H{
		"process": rs.metrics.Snapshot(),
		"free":    rs.session.Validator().FreeMode(),
	}
	if rs.bus != nil {
		stats["bus"] = rs.bus.Metrics()
	}
	if z := rs.session.Zone(); z != nil {
		stats["zone"] = gin.H{"name": z.Name(), "tiles": z.Tiles().Stats()}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: stats})
}
