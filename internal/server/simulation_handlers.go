package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/di"
	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/allocation"
	"github.com/aristath/harvester/internal/modules/reporting"
	"github.com/aristath/harvester/internal/modules/simulation"
	"github.com/aristath/harvester/internal/modules/sweep"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

// SimulationHandlers serves simulation and sweep requests. Each request runs
// on its own engine.
type SimulationHandlers struct {
	service  *simulation.Service
	sweeps   *sweep.Runner
	exporter *reporting.Exporter
	dataDir  string
	log      zerolog.Logger
}

// NewSimulationHandlers creates handlers over the container's services.
func NewSimulationHandlers(c *di.Container, log zerolog.Logger) *SimulationHandlers {
	h := &SimulationHandlers{
		service:  c.SimulationService,
		sweeps:   c.SweepRunner,
		exporter: c.Exporter,
		log:      log.With().Str("handler", "simulations").Logger(),
	}
	if c.Config != nil {
		h.dataDir = c.Config.DataDir
	}
	return h
}

// SimulationResponse is a run result plus the locations of exported reports.
type SimulationResponse struct {
	*simulation.Result
	Reports []string `json:"reports,omitempty"`
}

// SweepRequest is the body of POST /api/simulations/sweep.
type SweepRequest struct {
	Config json.RawMessage `json:"config"`
	Grid   sweep.Grid      `json:"grid"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("failed to read request body: %v", err)}
	}
	return body, nil
}

// HandleRun runs one simulation.
// POST /api/simulations[?export=true]
func (h *SimulationHandlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(h.log, w, err, nil)
		return
	}
	cfg, err := config.DecodeSimulation(body, "json")
	if err != nil {
		writeError(h.log, w, err, nil)
		return
	}
	if err := confinePaths(cfg, h.dataDir); err != nil {
		writeError(h.log, w, err, nil)
		return
	}

	res, err := h.service.Run(r.Context(), *cfg)
	if err != nil {
		if res != nil {
			writeError(h.log, w, err, res)
		} else {
			writeError(h.log, w, err, nil)
		}
		return
	}

	resp := SimulationResponse{Result: res}
	if r.URL.Query().Get("export") == "true" && h.exporter != nil {
		locations, err := h.exporter.Export(r.Context(), res)
		if err != nil {
			writeError(h.log, w, fmt.Errorf("failed to export reports: %w", err), nil)
			return
		}
		resp.Reports = locations
	}

	writeJSON(h.log, w, http.StatusOK, resp)
}

// HandleSweep runs a parameter grid.
// POST /api/simulations/sweep
func (h *SimulationHandlers) HandleSweep(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(h.log, w, err, nil)
		return
	}

	var req SweepRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(h.log, w, &domain.ConfigurationError{Reason: fmt.Sprintf("failed to decode sweep request: %v", err)}, nil)
		return
	}
	if len(req.Config) == 0 {
		writeError(h.log, w, domain.NewConfigurationError("config", "is required"), nil)
		return
	}
	cfg, err := config.DecodeSimulation(req.Config, "json")
	if err != nil {
		writeError(h.log, w, err, nil)
		return
	}
	if err := confinePaths(cfg, h.dataDir); err != nil {
		writeError(h.log, w, err, nil)
		return
	}

	report, err := h.sweeps.Run(r.Context(), *cfg, req.Grid)
	if err != nil {
		writeError(h.log, w, err, nil)
		return
	}
	writeJSON(h.log, w, http.StatusOK, report)
}

// confinePaths resolves file-valued tickers_source and portfolio_allocation
// against the data directory and rejects paths that leave it.
func confinePaths(cfg *config.SimulationConfig, root string) error {
	src, err := cfg.TickerSource()
	if err != nil {
		return domain.NewConfigurationError("tickers_source", "%v", err)
	}
	if src.Path != "" {
		path, err := insideDir(root, src.Path)
		if err != nil {
			return domain.NewConfigurationError("tickers_source", "%v", err)
		}
		cfg.TickersSource = path
	}

	spec, err := cfg.AllocationSpec()
	if err != nil {
		return domain.NewConfigurationError("portfolio_allocation", "%v", err)
	}
	if spec.Kind == allocation.KindFromFile {
		path, err := insideDir(root, spec.Path)
		if err != nil {
			return domain.NewConfigurationError("portfolio_allocation", "%v", err)
		}
		cfg.PortfolioAllocation = path
	}
	return nil
}

// insideDir joins relative paths to root and returns the cleaned path when it
// stays under root.
func insideDir(root, path string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("file paths are not accepted")
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(filepath.Clean(root), p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the data directory", path)
	}
	return p, nil
}
