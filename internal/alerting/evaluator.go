package alerting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/metrics"
	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// Evaluator evaluates the enabled alert rules against incoming builds.
type Evaluator struct {
	registry RuleRegistry
	builds   storage.BuildRepository
	clock    func() time.Time
}

// NewEvaluator creates an evaluator reading rules from the registry and
// build history from the repository.
func NewEvaluator(registry RuleRegistry, builds storage.BuildRepository) *Evaluator {
	return &Evaluator{
		registry: registry,
		builds:   builds,
		clock:    time.Now,
	}
}

// NewEvaluatorWithClock creates an evaluator with a fixed clock (useful for testing).
func NewEvaluatorWithClock(registry RuleRegistry, builds storage.BuildRepository, clock func() time.Time) *Evaluator {
	return &Evaluator{registry: registry, builds: builds, clock: clock}
}

// Evaluate returns the rules matching the build. Each rule is evaluated
// in isolation: one rule's failure is logged and does not prevent
// evaluation of the rest.
func (e *Evaluator) Evaluate(ctx context.Context, build *models.Build) []*models.AlertRule {
	rules, err := e.registry.Enabled(ctx)
	if err != nil {
		log.Printf("evaluator: load rules: %v", err)
		return nil
	}

	now := e.clock()
	var matched []*models.AlertRule
	for _, rule := range rules {
		ok, err := e.matches(ctx, rule, build, now)
		if err != nil {
			log.Printf("evaluator: rule %q: %v", rule.Name, err)
			metrics.RuleEvalErrors.Inc()
			continue
		}
		if ok {
			matched = append(matched, rule)
		}
	}
	return matched
}

// matches dispatches on the condition variant. Unknown condition types
// are reported, never fatal, and never match.
func (e *Evaluator) matches(ctx context.Context, rule *models.AlertRule, build *models.Build, now time.Time) (bool, error) {
	c := rule.Condition
	switch c.Type {
	case models.ConditionBuildFailure:
		return matchBuildFailure(c.BuildFailure, build), nil
	case models.ConditionDurationThreshold:
		if c.DurationThreshold == nil {
			return false, fmt.Errorf("missing duration threshold parameters")
		}
		return build.DurationSeconds/60 > c.DurationThreshold.Minutes, nil
	case models.ConditionErrorRate:
		if c.ErrorRate == nil {
			return false, fmt.Errorf("missing error rate parameters")
		}
		return e.matchErrorRate(ctx, c.ErrorRate, build, now)
	case models.ConditionConsecutiveFailures:
		if c.ConsecutiveFailures == nil {
			return false, fmt.Errorf("missing consecutive failure parameters")
		}
		return e.matchConsecutiveFailures(ctx, c.ConsecutiveFailures, build)
	case models.ConditionTestFailureRate:
		if c.TestFailureRate == nil {
			return false, fmt.Errorf("missing test failure rate parameters")
		}
		return matchTestFailureRate(c.TestFailureRate, build), nil
	case models.ConditionDeploymentFailure:
		return matchDeploymentFailure(c.DeploymentFailure, build), nil
	default:
		return false, fmt.Errorf("unknown condition type %q", c.Type)
	}
}

// matchBuildFailure matches failed builds against the optional project,
// branch, and environment filters. Empty filter lists are wildcards.
func matchBuildFailure(p *models.BuildFailureCondition, build *models.Build) bool {
	if build.Status != models.StatusFailure {
		return false
	}
	if p == nil {
		return true
	}
	return inList(p.Projects, build.Project) &&
		inList(p.Branches, build.Branch) &&
		inList(p.Environments, build.Environment)
}

// matchErrorRate fetches the project's builds inside the window and
// compares the failure rate against the threshold once enough builds
// have accumulated.
func (e *Evaluator) matchErrorRate(ctx context.Context, p *models.ErrorRateCondition, build *models.Build, now time.Time) (bool, error) {
	since := now.Add(-time.Duration(p.WindowMinutes) * time.Minute)
	builds, err := e.builds.ListSince(ctx, build.Project, since)
	if err != nil {
		return false, fmt.Errorf("list builds in window: %w", err)
	}
	if len(builds) < p.MinimumBuilds {
		return false, nil
	}

	failed := 0
	for _, b := range builds {
		if b.Status == models.StatusFailure {
			failed++
		}
	}
	rate := float64(failed) / float64(len(builds)) * 100
	return rate >= p.ThresholdPercent, nil
}

// matchConsecutiveFailures checks that the most recent Count builds for
// (project, branch) all failed. Fewer than Count builds never match.
func (e *Evaluator) matchConsecutiveFailures(ctx context.Context, p *models.ConsecutiveFailuresCondition, build *models.Build) (bool, error) {
	recent, err := e.builds.ListRecent(ctx, build.Project, build.Branch, p.Count)
	if err != nil {
		return false, fmt.Errorf("list recent builds: %w", err)
	}
	if len(recent) != p.Count {
		return false, nil
	}
	for _, b := range recent {
		if b.Status != models.StatusFailure {
			return false, nil
		}
	}
	return true, nil
}

func matchTestFailureRate(p *models.TestFailureRateCondition, build *models.Build) bool {
	if build.Tests.Total == 0 {
		return false
	}
	rate := float64(build.Tests.Failed) / float64(build.Tests.Total) * 100
	return rate >= p.ThresholdPercent
}

func matchDeploymentFailure(p *models.DeploymentFailureCondition, build *models.Build) bool {
	if build.Status != models.StatusFailure {
		return false
	}
	envs := DefaultDeploymentEnvironments
	if p != nil && len(p.Environments) > 0 {
		envs = p.Environments
	}
	for _, env := range envs {
		if build.Environment == env {
			return true
		}
	}
	return false
}

func inList(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
