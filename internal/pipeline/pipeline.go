// Package pipeline runs the sequential ETL: extract invocation actions
// from the workflow API, normalize assertion outcomes, append them to the
// warehouse, and publish the reporting views.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/assguard/internal/dataform"
	"github.com/good-yellow-bee/assguard/internal/metrics"
	"github.com/good-yellow-bee/assguard/internal/normalize"
)

// assertionNameMarker selects assertion actions by target name. Only
// assertion outcomes feed the assertion_data table.
const assertionNameMarker = "assertion"

// Extractor lists invocations and their actions from the workflow API.
type Extractor interface {
	ListWorkflowInvocations(ctx context.Context, project, location, repository string) ([]*dataform.WorkflowInvocation, error)
	QueryInvocationActions(ctx context.Context, invocationName string) ([]*dataform.WorkflowInvocationAction, error)
}

// Loader appends records to the warehouse and publishes the views.
type Loader interface {
	Append(ctx context.Context, records []*normalize.AssertionRecord) error
	PublishViews(ctx context.Context) error
}

// Config holds the repository coordinates the pipeline extracts from.
type Config struct {
	Project    string
	Location   string
	Repository string
}

// Report summarizes one pipeline run.
type Report struct {
	RunID            string        `json:"run_id"`
	Invocations      int           `json:"invocations"`
	ActionsSeen      int           `json:"actions_seen"`
	AssertionActions int           `json:"assertion_actions"`
	RecordsLoaded    int           `json:"records_loaded"`
	Duration         time.Duration `json:"duration_ms"`
}

// Pipeline wires the components of one run together. It holds no state
// across runs; every Run starts empty and ends Completed or Failed.
type Pipeline struct {
	config    Config
	extractor Extractor
	loader    Loader
	logger    *zap.Logger
}

// New creates a pipeline.
func New(config Config, extractor Extractor, loader Loader, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		config:    config,
		extractor: extractor,
		loader:    loader,
		logger:    logger,
	}
}

// Run executes one sequential pass. The first error from any component
// aborts the run and surfaces unchanged; there is no retry layer and no
// partial-success terminal state.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	started := time.Now()
	logger := p.logger.With(zap.String("run_id", report.RunID))

	err := p.run(ctx, report, logger)
	report.Duration = time.Since(started)

	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		logger.Error("pipeline run failed",
			zap.Duration("duration", report.Duration),
			zap.Error(err))
		return report, err
	}

	metrics.RunsTotal.WithLabelValues("completed").Inc()
	logger.Info("pipeline run completed",
		zap.Int("invocations", report.Invocations),
		zap.Int("actions_seen", report.ActionsSeen),
		zap.Int("assertion_actions", report.AssertionActions),
		zap.Int("records_loaded", report.RecordsLoaded),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, report *Report, logger *zap.Logger) error {
	// Extract
	extractStart := time.Now()
	invocations, err := p.extractor.ListWorkflowInvocations(ctx,
		p.config.Project, p.config.Location, p.config.Repository)
	if err != nil {
		return err
	}
	report.Invocations = len(invocations)
	metrics.InvocationsListed.Add(float64(len(invocations)))

	if len(invocations) == 0 {
		logger.Info("no workflow invocations found, nothing to load")
		metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(extractStart).Seconds())
		return nil
	}

	var pairs []dataform.RawAction
	for _, invocation := range invocations {
		actions, err := p.extractor.QueryInvocationActions(ctx, invocation.Name)
		if err != nil {
			return err
		}
		report.ActionsSeen += len(actions)
		metrics.ActionsListed.Add(float64(len(actions)))

		for _, action := range actions {
			if !isAssertionAction(action) {
				continue
			}
			pairs = append(pairs, dataform.RawAction{Invocation: invocation, Action: action})
		}
	}
	report.AssertionActions = len(pairs)
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(extractStart).Seconds())

	// Normalize
	normalizeStart := time.Now()
	records, err := normalize.Records(pairs)
	if err != nil {
		return err
	}
	sortByStartTimeDesc(records)
	metrics.StageDuration.WithLabelValues("normalize").Observe(time.Since(normalizeStart).Seconds())

	if len(records) == 0 {
		logger.Info("no assertion actions found, nothing to load")
		return nil
	}

	// Load
	loadStart := time.Now()
	if err := p.loader.Append(ctx, records); err != nil {
		return err
	}
	report.RecordsLoaded = len(records)
	metrics.RecordsLoaded.Add(float64(len(records)))
	metrics.StageDuration.WithLabelValues("load").Observe(time.Since(loadStart).Seconds())

	// Publish views
	publishStart := time.Now()
	if err := p.loader.PublishViews(ctx); err != nil {
		return err
	}
	metrics.StageDuration.WithLabelValues("publish").Observe(time.Since(publishStart).Seconds())

	return nil
}

// isAssertionAction reports whether the action's target is an assertion.
func isAssertionAction(action *dataform.WorkflowInvocationAction) bool {
	if action == nil {
		return false
	}
	return strings.Contains(strings.ToLower(action.Target.Name), assertionNameMarker)
}

// sortByStartTimeDesc orders records newest first; records without a
// start time sink to the end.
func sortByStartTimeDesc(records []*normalize.AssertionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[j].StartTime.IsZero() {
			return !records[i].StartTime.IsZero()
		}
		if records[i].StartTime.IsZero() {
			return false
		}
		return records[i].StartTime.After(records[j].StartTime)
	})
}
