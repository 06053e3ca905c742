// Package store persists analysis runs, their phases, classified tracts, and
// validation reports. Two backends exist: SQLite for local single-user runs
// and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
	"github.com/urban-health-lab/trauma-desert-cli/internal/validate"
)

// RunStatus is a run lifecycle state.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// PhaseStatus is a phase lifecycle state.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID        string      `json:"id"`
	Study     string      `json:"study"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary is the headline numbers persisted with a completed run.
type RunSummary struct {
	RawIncidents     int     `json:"raw_incidents"`
	CleanIncidents   int     `json:"clean_incidents"`
	RetentionPct     float64 `json:"retention_pct"`
	Tracts           int     `json:"tracts"`
	TraumaDeserts    int     `json:"trauma_deserts"`
	BeyondCoverage   int     `json:"beyond_coverage"`
	ValidationPassed bool    `json:"validation_passed"`
}

// Phase is one stage execution within a run.
type Phase struct {
	ID          string       `json:"id"`
	RunID       string       `json:"run_id"`
	Name        string       `json:"name"`
	Status      PhaseStatus  `json:"status"`
	Rows        int64        `json:"rows"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// PhaseResult is passed to CompletePhase.
type PhaseResult struct {
	Status PhaseStatus `json:"status"`
	Rows   int64       `json:"rows"`
	Error  string      `json:"error,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, study string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, summary *RunSummary) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*Phase, error)
	CompletePhase(ctx context.Context, phaseID string, result *PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]Phase, error)

	// Results
	SaveTracts(ctx context.Context, runID string, tracts []model.ClassifiedTract) error
	GetTracts(ctx context.Context, runID string) ([]model.ClassifiedTract, error)
	SaveReport(ctx context.Context, runID string, checks []validate.Check) error
	GetReport(ctx context.Context, runID string) ([]validate.Check, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
