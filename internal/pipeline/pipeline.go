// Package pipeline orchestrates the analysis stages: load, cleanse, assign,
// aggregate, resolve transport times, classify, validate, and rank.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/aggregate"
	"github.com/urban-health-lab/trauma-desert-cli/internal/classify"
	"github.com/urban-health-lab/trauma-desert-cli/internal/cleanse"
	"github.com/urban-health-lab/trauma-desert-cli/internal/config"
	"github.com/urban-health-lab/trauma-desert-cli/internal/deserts"
	"github.com/urban-health-lab/trauma-desert-cli/internal/loader"
	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
	"github.com/urban-health-lab/trauma-desert-cli/internal/spatial"
	"github.com/urban-health-lab/trauma-desert-cli/internal/store"
	"github.com/urban-health-lab/trauma-desert-cli/internal/transport"
	"github.com/urban-health-lab/trauma-desert-cli/internal/validate"
)

// Input file names, relative to the configured data directories.
const (
	incidentsFile    = "shootings.csv"
	tractsFile       = "census_tracts.geojson"
	tractsShapefile  = "census_tracts.shp"
	demographicsFile = "tract_demographics.csv"
	demographicsXLSX = "tract_demographics.xlsx"
	facilitiesFile   = "trauma_centers.csv"
)

// Stage snapshot and report table names.
const (
	cleanSnapshot     = "shootings_clean.csv"
	assignedSnapshot  = "shootings_with_tracts.csv"
	densitySnapshot   = "tract_shooting_density.csv"
	transportSnapshot = "tract_transport_times.csv"
	analysisSnapshot  = "tracts_analysis_ready.csv"
	classifiedGeoJSON = "tracts_bivariate_classified.geojson"
	rankingsTable     = "trauma_desert_rankings.csv"
	validationTable   = "validation_report.csv"
)

// Pipeline wires the stages together and records progress in the store.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
}

// New creates a Pipeline.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, store: st}
}

// Result is the outcome of one full pipeline run.
type Result struct {
	RunID   string
	Tracts  []model.ClassifiedTract
	Deserts []deserts.Ranking
	Report  validate.Report
	Summary store.RunSummary
}

// Run executes the full analysis. Every stage is recorded as a phase; stage
// outputs are snapshotted to the processed directory so intermediate datasets
// can be inspected without a database client.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("study", p.cfg.Study.Name))
	log.Info("pipeline starting")

	run, err := p.store.CreateRun(ctx, p.cfg.Study.Name)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	res, err := p.run(ctx, run.ID)
	if err != nil {
		if failErr := p.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			log.Warn("failed to record run failure", zap.Error(failErr))
		}
		return nil, err
	}

	res.RunID = run.ID
	if err := p.store.CompleteRun(ctx, run.ID, &res.Summary); err != nil {
		return nil, eris.Wrap(err, "pipeline: complete run")
	}
	log.Info("pipeline finished",
		zap.String("run_id", run.ID),
		zap.Int("tracts", res.Summary.Tracts),
		zap.Int("trauma_deserts", res.Summary.TraumaDeserts),
		zap.String("validation", res.Report.Summary()),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, runID string) (*Result, error) {
	for _, dir := range []string{p.cfg.Paths.ProcessedDir(), p.cfg.Paths.TablesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "pipeline: create %s", dir)
		}
	}

	// Load
	var (
		raw        []model.RawIncident
		tracts     []model.Tract
		demos      []model.Demographics
		facilities []model.Facility
		rings      []model.IsochroneRing
	)
	if err := p.phase(ctx, runID, "load", func() (int64, error) {
		var err error
		if raw, err = loader.Incidents(filepath.Join(p.cfg.Paths.RawDir(), incidentsFile)); err != nil {
			return 0, err
		}
		if tracts, err = p.loadTracts(); err != nil {
			return 0, err
		}
		if demos, err = p.loadDemographics(); err != nil {
			return 0, err
		}
		if facilities, err = loader.Facilities(filepath.Join(p.cfg.Paths.RawDir(), facilitiesFile)); err != nil {
			return 0, err
		}
		if rings, err = loader.IsochronesDir(p.cfg.Paths.IsochronesDir()); err != nil {
			return 0, err
		}
		p.checkRingFacilities(rings, facilities)
		return int64(len(raw)), nil
	}); err != nil {
		return nil, err
	}

	// Cleanse
	var incidents []model.Incident
	var cleanStats model.CleanseStats
	if err := p.phase(ctx, runID, "cleanse", func() (int64, error) {
		incidents, cleanStats = cleanse.Clean(raw, p.cfg.Study.BBox)
		span, latest := cleanse.YearSpan(incidents)
		zap.L().Info("incident history",
			zap.Int("years_span", span),
			zap.Int("latest_year", latest),
		)
		if err := loader.WriteCSV(p.processed(cleanSnapshot), incidents); err != nil {
			return 0, err
		}
		return int64(len(incidents)), nil
	}); err != nil {
		return nil, err
	}

	// Assign
	var assigned []model.AssignedIncident
	if err := p.phase(ctx, runID, "assign", func() (int64, error) {
		assigner := spatial.NewAssigner(tracts, p.cfg.Study.SRID, p.cfg.Pipeline.AssignWorkers)
		var stats spatial.AssignStats
		var err error
		assigned, stats, err = assigner.Assign(ctx, incidents, p.cfg.Study.SRID)
		if err != nil {
			return 0, err
		}
		if err := loader.WriteCSV(p.processed(assignedSnapshot), assigned); err != nil {
			return 0, err
		}
		return int64(stats.Matched), nil
	}); err != nil {
		return nil, err
	}

	// Aggregate
	var metrics []model.TractMetrics
	if err := p.phase(ctx, runID, "aggregate", func() (int64, error) {
		var stats aggregate.Stats
		metrics, stats = aggregate.Aggregate(assigned, tracts, demos)
		zap.L().Info("tract metrics aggregated",
			zap.Int("tracts", len(metrics)),
			zap.Int("years_span", stats.YearsSpan),
			zap.Int("excluded_unmatched", stats.ExcludedUnmatched),
		)
		if err := loader.WriteCSV(p.processed(densitySnapshot), metrics); err != nil {
			return 0, err
		}
		return int64(len(metrics)), nil
	}); err != nil {
		return nil, err
	}

	// Transport
	var transportResults []model.TransportResult
	var transportStats transport.Stats
	if err := p.phase(ctx, runID, "transport", func() (int64, error) {
		resolver, err := transport.NewResolver(rings, p.cfg.Pipeline)
		if err != nil {
			return 0, err
		}
		if transportResults, transportStats, err = resolver.Resolve(tracts); err != nil {
			return 0, err
		}
		if err := loader.WriteCSV(p.processed(transportSnapshot), transportResults); err != nil {
			return 0, err
		}
		return int64(len(transportResults)), nil
	}); err != nil {
		return nil, err
	}

	// Classify
	var classified classify.Result
	if err := p.phase(ctx, runID, "classify", func() (int64, error) {
		var err error
		if classified, err = classify.Combine(metrics, transportResults); err != nil {
			return 0, err
		}
		if err := loader.WriteCSV(p.processed(analysisSnapshot), classified.Tracts); err != nil {
			return 0, err
		}
		geoms := make(map[string]geom.T, len(tracts))
		for _, t := range tracts {
			geoms[t.GEOID] = t.Geometry
		}
		if err := loader.WriteTractsGeoJSON(p.processed(classifiedGeoJSON), classified.Tracts, geoms); err != nil {
			return 0, err
		}
		return int64(len(classified.Tracts)), nil
	}); err != nil {
		return nil, err
	}

	// Validate
	var report validate.Report
	if err := p.phase(ctx, runID, "validate", func() (int64, error) {
		report = validate.Run(validate.Input{
			Cleanse:      cleanStats,
			Incidents:    incidents,
			BBox:         p.cfg.Study.BBox,
			Tracts:       classified.Tracts,
			DefaultCount: classified.DefaultCount,
			TolerancePts: p.cfg.Pipeline.TercileBalanceTolerancePts,
		})
		if err := loader.WriteCSV(filepath.Join(p.cfg.Paths.TablesDir(), validationTable), report.Checks); err != nil {
			return 0, err
		}
		return int64(len(report.Checks)), nil
	}); err != nil {
		return nil, err
	}

	// Rank deserts
	var rankings []deserts.Ranking
	if err := p.phase(ctx, runID, "rank", func() (int64, error) {
		rankings = deserts.Rank(classified.Tracts)
		if err := loader.WriteCSV(filepath.Join(p.cfg.Paths.TablesDir(), rankingsTable), rankings); err != nil {
			return 0, err
		}
		return int64(len(rankings)), nil
	}); err != nil {
		return nil, err
	}

	// Persist results
	if err := p.phase(ctx, runID, "persist", func() (int64, error) {
		if err := p.store.SaveTracts(ctx, runID, classified.Tracts); err != nil {
			return 0, err
		}
		if err := p.store.SaveReport(ctx, runID, report.Checks); err != nil {
			return 0, err
		}
		return int64(len(classified.Tracts)), nil
	}); err != nil {
		return nil, err
	}

	return &Result{
		Tracts:  classified.Tracts,
		Deserts: rankings,
		Report:  report,
		Summary: store.RunSummary{
			RawIncidents:     cleanStats.RawCount,
			CleanIncidents:   cleanStats.CleanCount,
			RetentionPct:     classify.Round1(cleanStats.RetentionPct()),
			Tracts:           len(classified.Tracts),
			TraumaDeserts:    len(rankings),
			BeyondCoverage:   transportStats.BeyondCoverage,
			ValidationPassed: !report.Failed(),
		},
	}, nil
}

// phase runs one stage, recording it in the store. Store bookkeeping failures
// are logged but never abort the analysis; stage failures always do.
func (p *Pipeline) phase(ctx context.Context, runID, name string, fn func() (int64, error)) error {
	log := zap.L().With(zap.String("phase", name))

	ph, err := p.store.CreatePhase(ctx, runID, name)
	if err != nil {
		log.Warn("failed to create phase record", zap.Error(err))
	}

	start := time.Now()
	rows, fnErr := fn()

	result := &store.PhaseResult{Status: store.PhaseStatusComplete, Rows: rows}
	if fnErr != nil {
		result.Status = store.PhaseStatusFailed
		result.Error = fnErr.Error()
	}
	if ph != nil {
		if err := p.store.CompletePhase(ctx, ph.ID, result); err != nil {
			log.Warn("failed to complete phase record", zap.Error(err))
		}
	}

	if fnErr != nil {
		log.Error("phase failed", zap.Duration("elapsed", time.Since(start)), zap.Error(fnErr))
		return eris.Wrapf(fnErr, "pipeline: phase %s", name)
	}
	log.Info("phase complete", zap.Int64("rows", rows), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// loadTracts prefers the preprocessed GeoJSON boundaries and falls back to
// the raw TIGER shapefile.
func (p *Pipeline) loadTracts() ([]model.Tract, error) {
	geoPath := filepath.Join(p.cfg.Paths.GeoDir(), tractsFile)
	if _, err := os.Stat(geoPath); err == nil {
		return loader.Tracts(geoPath)
	}

	shpPath := filepath.Join(p.cfg.Paths.GeoDir(), tractsShapefile)
	if _, err := os.Stat(shpPath); err == nil {
		return loader.TractsFromShapefile(shpPath)
	}
	return nil, eris.Errorf("pipeline: no tract boundaries found in %s (need %s or %s)",
		p.cfg.Paths.GeoDir(), tractsFile, tractsShapefile)
}

// loadDemographics prefers CSV and falls back to the spreadsheet export.
func (p *Pipeline) loadDemographics() ([]model.Demographics, error) {
	csvPath := filepath.Join(p.cfg.Paths.RawDir(), demographicsFile)
	if _, err := os.Stat(csvPath); err == nil {
		return loader.Demographics(csvPath)
	}

	xlsxPath := filepath.Join(p.cfg.Paths.RawDir(), demographicsXLSX)
	if _, err := os.Stat(xlsxPath); err == nil {
		return loader.DemographicsFromXLSX(xlsxPath)
	}
	return nil, eris.Errorf("pipeline: no demographics found in %s (need %s or %s)",
		p.cfg.Paths.RawDir(), demographicsFile, demographicsXLSX)
}

// checkRingFacilities warns when isochrone rings reference facilities absent
// from the registry. The run continues; the registry is descriptive metadata.
func (p *Pipeline) checkRingFacilities(rings []model.IsochroneRing, facilities []model.Facility) {
	known := make(map[string]bool, len(facilities))
	for _, f := range facilities {
		known[f.Name] = true
	}
	warned := make(map[string]bool)
	for _, r := range rings {
		if !known[r.FacilityName] && !warned[r.FacilityName] {
			warned[r.FacilityName] = true
			zap.L().Warn("isochrone facility not in trauma center registry",
				zap.String("facility", r.FacilityName))
		}
	}
}

func (p *Pipeline) processed(name string) string {
	return filepath.Join(p.cfg.Paths.ProcessedDir(), name)
}
