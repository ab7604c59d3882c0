package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/harvester/internal/di"
	"github.com/aristath/harvester/internal/modules/prices"
)

// SystemHandlers handles system status and price store endpoints
type SystemHandlers struct {
	store     *prices.Store
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(c *di.Container, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		store:     c.PriceStore,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	Goroutines    int     `json:"goroutines"`
	GoVersion     string  `json:"go_version"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	PriceStore    string  `json:"price_store"`
}

// HandleSystemStatus returns process and host health
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()
	resp := SystemStatusResponse{
		Status:        "healthy",
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		PriceStore:    "disabled",
	}
	if h.store != nil {
		resp.PriceStore = "ok"
		if err := h.store.Ping(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Price store unreachable")
			resp.PriceStore = "unreachable"
			resp.Status = "degraded"
		}
	}

	writeJSON(h.log, w, http.StatusOK, resp)
}

// HandlePriceTickers lists tickers held in the SQLite price store
// GET /api/prices/tickers
func (h *SystemHandlers) HandlePriceTickers(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(h.log, w, http.StatusNotFound, ErrorResponse{Error: "price store is not configured"})
		return
	}
	tickers, err := h.store.Tickers(r.Context())
	if err != nil {
		writeError(h.log, w, err, nil)
		return
	}
	if tickers == nil {
		tickers = []string{}
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"tickers": tickers})
}

// getSystemStats returns CPU and RAM usage percentages, sampling CPU over
// 100ms.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
