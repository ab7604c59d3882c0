package sweep

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"time"

	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/modules/metrics"
	"github.com/aristath/harvester/internal/modules/simulation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one grid point. Failed runs keep their partial
// metrics and the error text.
type Outcome struct {
	Point   Point                      `json:"point"`
	State   simulation.State           `json:"state"`
	Metrics metrics.PerformanceMetrics `json:"metrics"`
	Error   string                     `json:"error,omitempty"`
}

// Report collects a sweep's outcomes in grid order.
type Report struct {
	Outcomes []Outcome     `json:"outcomes"`
	Best     int           `json:"best"`
	Universe []string      `json:"universe"`
	Duration time.Duration `json:"duration_ns"`
}

// Ranked returns the outcomes sorted by total return, best first. Failed
// runs sort last.
func (r *Report) Ranked() []Outcome {
	out := append([]Outcome(nil), r.Outcomes...)
	sort.SliceStable(out, func(i, j int) bool {
		if (out[i].Error == "") != (out[j].Error == "") {
			return out[i].Error == ""
		}
		return out[i].Metrics.TotalReturnPct > out[j].Metrics.TotalReturnPct
	})
	return out
}

// Runner executes grids on a simulation service.
type Runner struct {
	svc     *simulation.Service
	workers int
	log     zerolog.Logger
}

// NewRunner creates a runner. workers <= 0 uses GOMAXPROCS.
func NewRunner(svc *simulation.Service, workers int, log zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{
		svc:     svc,
		workers: workers,
		log:     log.With().Str("component", "sweep").Logger(),
	}
}

// Run prepares base once and runs every grid point on its own engine. Engine
// failures are recorded per point; only configuration, preparation and
// cancellation errors abort the sweep.
func (r *Runner) Run(ctx context.Context, base config.SimulationConfig, grid Grid) (*Report, error) {
	began := time.Now()
	points, err := grid.Points(base)
	if err != nil {
		return nil, err
	}
	prepared, err := r.svc.Prepare(ctx, base)
	if err != nil {
		return nil, err
	}

	r.log.Info().Int("points", len(points)).Int("workers", r.workers).Msg("Starting sweep")

	outcomes := make([]Outcome, len(points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, p := range points {
		i, p := i, p
		g.Go(func() error {
			res, err := r.svc.RunPrepared(gctx, prepared, p.Apply(base))
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			o := Outcome{Point: p}
			if res != nil {
				o.State = res.State
				o.Metrics = res.Metrics
			}
			if err != nil {
				o.Error = err.Error()
				r.log.Warn().Int("point", p.Index).Err(err).Msg("Sweep point failed")
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Outcomes: outcomes, Universe: prepared.Universe, Best: -1}
	for i, o := range outcomes {
		if o.Error != "" {
			continue
		}
		if report.Best < 0 || o.Metrics.TotalReturnPct > outcomes[report.Best].Metrics.TotalReturnPct {
			report.Best = i
		}
	}
	report.Duration = time.Since(began)

	r.log.Info().
		Int("points", len(points)).
		Int("best", report.Best).
		Dur("duration", report.Duration).
		Msg("Sweep finished")
	return report, nil
}
