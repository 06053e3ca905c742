// Package loader reads the pipeline's input files: incident CSVs, census
// demographics, trauma center registries, and boundary/isochrone geometries.
// GEOIDs are normalized at this boundary so downstream joins never see the
// float-coerced or unpadded forms raw exports carry.
package loader

import (
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// incomeSuppressed is the census sentinel for a suppressed income estimate.
const incomeSuppressed = -666666666

// Incidents reads a raw incident export.
func Incidents(path string) ([]model.RawIncident, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read incidents %s", path)
	}

	var rows []model.RawIncident
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "loader: parse incidents %s", path)
	}

	zap.L().Info("incidents loaded", zap.String("path", path), zap.Int("rows", len(rows)))
	return rows, nil
}

// Demographics reads a census demographics CSV. Suppressed income estimates
// become nil.
func Demographics(path string) ([]model.Demographics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read demographics %s", path)
	}

	var rows []model.Demographics
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "loader: parse demographics %s", path)
	}

	for i := range rows {
		rows[i].GEOID = model.NormalizeGEOID(rows[i].GEOID)
		if rows[i].MedianIncome != nil && *rows[i].MedianIncome == incomeSuppressed {
			rows[i].MedianIncome = nil
		}
	}
	return rows, nil
}

// Facilities reads the trauma center registry.
func Facilities(path string) ([]model.Facility, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read facilities %s", path)
	}

	var rows []model.Facility
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "loader: parse facilities %s", path)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("loader: facility registry %s is empty", path)
	}
	return rows, nil
}

// WriteCSV marshals rows to a CSV file, used for stage snapshots and report
// tables.
func WriteCSV(path string, rows any) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrapf(err, "loader: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "loader: write %s", path)
	}
	return nil
}
