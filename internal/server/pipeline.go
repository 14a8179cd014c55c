package server

import (
	"context"
	"errors"
	"log"

	"github.com/good-yellow-bee/buildpulse/internal/aggregator"
	"github.com/good-yellow-bee/buildpulse/internal/alerting"
	"github.com/good-yellow-bee/buildpulse/internal/events"
	"github.com/good-yellow-bee/buildpulse/internal/ingest"
	"github.com/good-yellow-bee/buildpulse/internal/metrics"
	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// Pipeline runs one build event through normalize, record, broadcast,
// evaluate, and dispatch. It is the single write path into the system.
type Pipeline struct {
	aggregator *aggregator.Aggregator
	evaluator  *alerting.Evaluator
	dispatcher *alerting.Dispatcher
	bus        events.Bus
	verbose    bool
}

// NewPipeline creates a pipeline.
func NewPipeline(agg *aggregator.Aggregator, eval *alerting.Evaluator, disp *alerting.Dispatcher, bus events.Bus, verbose bool) *Pipeline {
	return &Pipeline{
		aggregator: agg,
		evaluator:  eval,
		dispatcher: disp,
		bus:        bus,
		verbose:    verbose,
	}
}

// Ingest processes one raw webhook payload. Validation failures reject
// the payload with no partial write. Alerting failures never fail the
// ingest: the build is already durable by the time rules run.
func (p *Pipeline) Ingest(ctx context.Context, source string, payload []byte) (*models.Build, error) {
	build, err := ingest.Normalize(payload, source)
	if err != nil {
		metrics.IngestErrorsTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	result, err := p.aggregator.Record(ctx, build)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			metrics.IngestErrorsTotal.WithLabelValues("storage").Inc()
		} else {
			metrics.IngestErrorsTotal.WithLabelValues("internal").Inc()
		}
		return nil, err
	}
	build = result.Build
	metrics.BuildsIngestedTotal.WithLabelValues(source, string(build.Status)).Inc()

	if p.verbose {
		log.Printf("pipeline: recorded %s #%d (%s) from %s", build.Project, build.Number, build.Status, source)
	}

	p.bus.Publish(events.TopicBuildCompleted, build.Project, events.BuildCompleted{
		Project:     build.Project,
		Status:      string(build.Status),
		BuildNumber: build.Number,
		Branch:      build.Branch,
		Duration:    build.DurationSeconds,
		Timestamp:   build.FinishedAt,
	})

	for _, rule := range p.evaluator.Evaluate(ctx, build) {
		if _, err := p.dispatcher.Dispatch(ctx, rule, build); err != nil {
			log.Printf("pipeline: dispatch rule %q for %s #%d: %v", rule.Name, build.Project, build.Number, err)
		}
	}

	return build, nil
}
