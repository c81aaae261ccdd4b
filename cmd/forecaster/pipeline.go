// Package main implements the ticket forecast pipeline orchestration.
//
// This file contains the Pipeline type which runs one training job:
//
//	load → train → persist → forecast → export
//
// or, for a previously persisted model:
//
//	fetch → forecast → export
//
// Stages run strictly in order and exactly once. The first failing stage stops
// the run; nothing is retried or rolled back, so a model that was persisted
// stays persisted if a later stage fails.
//
// Each stage is timed and logged, and instrumented with Prometheus metrics
// tracking its duration and any errors encountered.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/ticketcast/cmd/forecaster/metrics"
	"github.com/HatiCode/ticketcast/pkg/models"
	"github.com/HatiCode/ticketcast/pkg/series"
	"github.com/HatiCode/ticketcast/pkg/storage"
)

// Stage names a pipeline step.
type Stage string

const (
	StageLoad     Stage = "load"
	StageTrain    Stage = "train"
	StagePersist  Stage = "persist"
	StageFetch    Stage = "fetch"
	StageForecast Stage = "forecast"
	StageExport   Stage = "export"
)

// State is the pipeline's progress.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateTrained
	StatePersisted
	StateForecasted
	StateExported
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateTrained:
		return "trained"
	case StatePersisted:
		return "persisted"
	case StateForecasted:
		return "forecasted"
	case StateExported:
		return "exported"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StageError reports the stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrAlreadyRun is returned when a pipeline is run a second time.
var ErrAlreadyRun = errors.New("pipeline has already run")

// DatasetLoader supplies the training series.
type DatasetLoader interface {
	Load(ctx context.Context) (*series.Dataset, error)
}

// ModelTrainer fits a model to a series.
type ModelTrainer interface {
	Name() string
	Fit(ctx context.Context, ds *series.Dataset) (*models.Artifact, error)
}

// ArtifactStore persists fitted models.
type ArtifactStore interface {
	Save(ctx context.Context, a *models.Artifact, loc storage.Locator) error
	Load(ctx context.Context, loc storage.Locator) (*models.Artifact, error)
}

// Exporter writes a finished forecast.
type Exporter interface {
	Export(ctx context.Context, f models.Forecast) error
}

// Pipeline runs the forecast job once.
type Pipeline struct {
	loader   DatasetLoader
	trainer  ModelTrainer
	store    ArtifactStore
	exporter Exporter
	locator  storage.Locator
	horizon  int
	logger   *slog.Logger
	metrics  *metrics.Metrics

	state    State
	failed   Stage
	dataset  *series.Dataset
	artifact *models.Artifact
}

// NewPipeline creates a Pipeline. loader and trainer may be nil for a
// pipeline that only runs Predict.
func NewPipeline(
	loader DatasetLoader,
	trainer ModelTrainer,
	store ArtifactStore,
	exporter Exporter,
	locator storage.Locator,
	horizon int,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		loader:   loader,
		trainer:  trainer,
		store:    store,
		exporter: exporter,
		locator:  locator,
		horizon:  horizon,
		logger:   logger,
		metrics:  metrics,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	return p.state
}

// FailedStage returns the stage that failed, or "" if none has.
func (p *Pipeline) FailedStage() Stage {
	return p.failed
}

// Artifact returns the trained or fetched model, if any.
func (p *Pipeline) Artifact() *models.Artifact {
	return p.artifact
}

// Run loads the training series, fits the model, persists it, forecasts the
// horizon and exports the result.
func (p *Pipeline) Run(ctx context.Context) (models.Forecast, error) {
	if p.state != StateIdle {
		return models.Forecast{}, ErrAlreadyRun
	}
	if p.loader == nil || p.trainer == nil {
		return models.Forecast{}, errors.New("pipeline has no loader or trainer")
	}
	start := time.Now()

	if err := p.stage(ctx, StageLoad, StateLoaded, p.load); err != nil {
		return models.Forecast{}, err
	}
	if err := p.stage(ctx, StageTrain, StateTrained, p.train); err != nil {
		return models.Forecast{}, err
	}
	if err := p.stage(ctx, StagePersist, StatePersisted, p.persist); err != nil {
		return models.Forecast{}, err
	}

	f, err := p.finish(ctx)
	if err != nil {
		return models.Forecast{}, err
	}

	p.logger.Info("training run complete",
		"model", f.Model,
		"observations", p.dataset.Len(),
		"location", p.locator.String(),
		"forecast_points", f.Len(),
		"total_ms", time.Since(start).Milliseconds(),
	)
	return f, nil
}

// Predict fetches a previously persisted model, forecasts the horizon and
// exports the result. The fetched model takes the pipeline straight to the
// persisted state.
func (p *Pipeline) Predict(ctx context.Context) (models.Forecast, error) {
	if p.state != StateIdle {
		return models.Forecast{}, ErrAlreadyRun
	}
	start := time.Now()

	if err := p.stage(ctx, StageFetch, StatePersisted, p.fetch); err != nil {
		return models.Forecast{}, err
	}

	f, err := p.finish(ctx)
	if err != nil {
		return models.Forecast{}, err
	}

	p.logger.Info("forecast run complete",
		"model", f.Model,
		"location", p.locator.String(),
		"forecast_points", f.Len(),
		"total_ms", time.Since(start).Milliseconds(),
	)
	return f, nil
}

func (p *Pipeline) finish(ctx context.Context) (models.Forecast, error) {
	var f models.Forecast

	err := p.stage(ctx, StageForecast, StateForecasted, func(context.Context) error {
		var err error
		f, err = p.artifact.Forecast(p.horizon)
		return err
	})
	if err != nil {
		return models.Forecast{}, err
	}

	if err := p.stage(ctx, StageExport, StateExported, func(ctx context.Context) error {
		return p.exporter.Export(ctx, f)
	}); err != nil {
		return models.Forecast{}, err
	}

	if p.metrics != nil {
		if f.Len() > 0 {
			p.metrics.SetPredictedFirstDay(f.Points[0].Count)
		}
		p.metrics.MarkSuccess(time.Now())
	}
	return f, nil
}

// stage runs fn as the named stage and advances the state to next on
// success. On failure the pipeline moves to StateFailed.
func (p *Pipeline) stage(ctx context.Context, stage Stage, next State, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordStage(string(stage), duration.Seconds())
	}

	if err != nil {
		p.state = StateFailed
		p.failed = stage
		if p.metrics != nil {
			p.metrics.RecordError(string(stage), errorReason(err))
		}
		return &StageError{Stage: stage, Err: err}
	}

	p.state = next
	p.logger.Debug("stage complete", "stage", string(stage), "state", next.String(), "duration_ms", duration.Milliseconds())
	return nil
}

func (p *Pipeline) load(ctx context.Context) error {
	ds, err := p.loader.Load(ctx)
	if err != nil {
		return err
	}
	p.dataset = ds

	p.logger.Info("loaded series",
		"rows", ds.Len(),
		"first_date", ds.FirstDate().Format(time.DateOnly),
		"last_date", ds.LastDate().Format(time.DateOnly),
		"daily_contiguous", ds.IsDailyContiguous(),
	)
	return nil
}

func (p *Pipeline) train(ctx context.Context) error {
	a, err := p.trainer.Fit(ctx, p.dataset)
	if err != nil {
		return err
	}
	p.artifact = a

	if p.metrics != nil {
		p.metrics.SetFit(a.NObs, a.LogLikelihood)
	}
	p.logger.Info("trained model",
		"model", a.Name(),
		"iterations", a.Iterations,
		"log_likelihood", a.LogLikelihood,
		"aic", a.AIC,
	)
	return nil
}

func (p *Pipeline) persist(ctx context.Context) error {
	if err := p.store.Save(ctx, p.artifact, p.locator); err != nil {
		return err
	}
	p.logger.Info("persisted model", "location", p.locator.String())
	return nil
}

func (p *Pipeline) fetch(ctx context.Context) error {
	a, err := p.store.Load(ctx, p.locator)
	if err != nil {
		return err
	}
	p.artifact = a

	p.logger.Info("fetched model",
		"model", a.Name(),
		"location", p.locator.String(),
		"last_date", a.LastDate.Format(time.DateOnly),
	)
	return nil
}

// errorReason classifies err for the error counter.
func errorReason(err error) string {
	var (
		formatErr *series.FormatError
		parseErr  *series.ParseError
		convErr   *models.ConvergenceError
		storeErr  *storage.StorageError
		serErr    *storage.SerializationError
	)

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &formatErr):
		return "format"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.Is(err, series.ErrEmptySeries):
		return "empty_series"
	case errors.As(err, &convErr):
		return "convergence"
	case errors.As(err, &serErr):
		return "serialization"
	case errors.As(err, &storeErr):
		return "storage"
	case errors.Is(err, models.ErrInvalidOrder), errors.Is(err, models.ErrInvalidHorizon), errors.Is(err, models.ErrInvalidArtifact):
		return "invalid"
	default:
		return "other"
	}
}
