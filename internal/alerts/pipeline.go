package alerts

import (
	"context"
	"log/slog"

	"github.com/nutricomm/kebun-gizi/internal/metrics"
	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// Emitter forwards an approved candidate to the notification store.
// skipped reports that the store already held an equivalent notification.
type Emitter interface {
	Emit(ctx context.Context, c Candidate) (skipped bool, err error)
}

// Result summarizes one pass of the pipeline over a reading.
type Result struct {
	Candidates int
	Emitted    int
	Suppressed int
	Failed     int
}

// Pipeline evaluates readings, gates the candidates and emits the rest.
type Pipeline struct {
	thresholds Thresholds
	gate       *Gate
	clock      Clock
	emitter    Emitter
	logger     *slog.Logger
}

// NewPipeline wires a pipeline. A nil emitter only logs what would be sent.
func NewPipeline(t Thresholds, gate *Gate, emitter Emitter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if gate == nil {
		gate = NewGate()
	}
	return &Pipeline{
		thresholds: t,
		gate:       gate,
		clock:      SystemClock{},
		emitter:    emitter,
		logger:     logger,
	}
}

// WithClock replaces the gate clock.
func (p *Pipeline) WithClock(c Clock) *Pipeline {
	p.clock = c
	return p
}

// Gate exposes the dedup gate for the periodic reset.
func (p *Pipeline) Gate() *Gate {
	return p.gate
}

// Handle runs one reading through evaluate → gate → emit. Emission errors
// are logged and counted; the gate entry stays recorded so a failing store
// is not hammered every tick.
func (p *Pipeline) Handle(ctx context.Context, r sensor.Reading) Result {
	candidates := Evaluate(r, p.thresholds)
	res := Result{Candidates: len(candidates)}

	for _, c := range candidates {
		if !p.gate.ShouldEmit(c, p.clock) {
			res.Suppressed++
			metrics.NotificationSuppressed(string(c.Category))
			continue
		}

		if p.emitter == nil {
			p.logger.Info("Notification (emitter disabled)",
				"category", c.Category, "severity", c.Severity, "message", c.Message)
			res.Emitted++
			continue
		}

		skipped, err := p.emitter.Emit(ctx, c)
		if err != nil {
			p.logger.Warn("notification emit failed",
				"category", c.Category, "severity", c.Severity, "error", err)
			metrics.NotificationFailed(string(c.Category))
			res.Failed++
			continue
		}
		if skipped {
			p.logger.Debug("notification already stored by backend",
				"category", c.Category, "severity", c.Severity)
			res.Suppressed++
			metrics.NotificationSuppressed(string(c.Category))
			continue
		}

		p.logger.Info("Notification emitted",
			"category", c.Category, "severity", c.Severity, "garden_id", r.GardenID)
		metrics.NotificationEmitted(string(c.Category))
		res.Emitted++
	}
	return res
}
