package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 4326, cfg.Study.SRID)
	assert.Equal(t, []int{5, 10, 15, 20, 30}, cfg.Pipeline.RingMinutes)
	assert.Equal(t, 31, cfg.Pipeline.BeyondCoverageMinutes)
	assert.Equal(t, 20, cfg.Pipeline.GoldenHourMinutes)
	assert.InDelta(t, 15.0, cfg.Pipeline.TercileBalanceTolerancePts, 1e-9)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
study:
  name: Testville
  bbox:
    min_lat: 1.0
    max_lat: 2.0
    min_lng: 3.0
    max_lng: 4.0
pipeline:
  ring_minutes: [10, 20]
  beyond_coverage_minutes: 21
store:
  driver: postgres
  database_url: postgres://localhost/test
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Testville", cfg.Study.Name)
	assert.Equal(t, []int{10, 20}, cfg.Pipeline.RingMinutes)
	assert.Equal(t, 21, cfg.Pipeline.BeyondCoverageMinutes)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Study: StudyConfig{
				SRID: 4326,
				BBox: BBox{MinLat: 39.86, MaxLat: 40.14, MinLng: -75.28, MaxLng: -74.95},
			},
			Pipeline: PipelineConfig{
				RingMinutes:           []int{5, 10, 15, 20, 30},
				BeyondCoverageMinutes: 31,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "empty rings",
			mutate:  func(c *Config) { c.Pipeline.RingMinutes = nil },
			wantErr: "ring_minutes",
		},
		{
			name:    "unordered rings",
			mutate:  func(c *Config) { c.Pipeline.RingMinutes = []int{5, 30, 10} },
			wantErr: "ascending",
		},
		{
			name:    "sentinel inside coverage",
			mutate:  func(c *Config) { c.Pipeline.BeyondCoverageMinutes = 30 },
			wantErr: "beyond_coverage_minutes",
		},
		{
			name:    "degenerate bbox",
			mutate:  func(c *Config) { c.Study.BBox.MaxLat = c.Study.BBox.MinLat },
			wantErr: "degenerate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBBoxContains(t *testing.T) {
	b := BBox{MinLat: 39.86, MaxLat: 40.14, MinLng: -75.28, MaxLng: -74.95}
	assert.True(t, b.Contains(40.0, -75.16))
	assert.True(t, b.Contains(39.86, -75.28), "boundary is inclusive")
	assert.False(t, b.Contains(41.0, -75.16))
	assert.False(t, b.Contains(40.0, -74.0))
}
