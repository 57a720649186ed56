package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://apidadosabertos.saude.gov.br", cfg.Demas.BaseURL)
	assert.Equal(t, "23", cfg.Demas.RegionCode)
	assert.Equal(t, "230240", cfg.Demas.MunicipalityCode)
	assert.Equal(t, 50, cfg.Demas.PageSize)
	assert.Equal(t, 30, cfg.ETL.ProbeDays)
	assert.True(t, cfg.ETL.SkipIfUpToDate)
	assert.True(t, cfg.ETL.ClassifyLocations)
	assert.Equal(t, "04:00", cfg.ETL.Schedule)
	assert.Equal(t, "04:20", cfg.Backfill.Schedule)
	assert.Equal(t, 100, cfg.Backfill.PageSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Backfill.Pause)
	assert.Equal(t, "google", cfg.Geolocation.Provider)
	assert.Equal(t, "America/Sao_Paulo", cfg.App.Location().String())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DEMAS_REGION_CODE", "35")
	t.Setenv("DEMAS_MUNICIPALITY_CODE", "")
	t.Setenv("ETL_SKIP_IF_UP_TO_DATE", "false")
	t.Setenv("ETL_CLASSIFY_LOCATIONS", "false")
	t.Setenv("BACKFILL_PAUSE", "200ms")
	t.Setenv("DEMAS_REQUESTS_PER_SECOND", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "35", cfg.Demas.RegionCode)
	// set-but-empty disables municipality scoping
	assert.Equal(t, "", cfg.Demas.MunicipalityCode)
	assert.False(t, cfg.ETL.SkipIfUpToDate)
	assert.False(t, cfg.ETL.ClassifyLocations)
	assert.Equal(t, 200*time.Millisecond, cfg.Backfill.Pause)
	assert.Equal(t, 2.5, cfg.Demas.RequestsPerSecond)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad timezone", key: "SCHEDULER_TIMEZONE", value: "Mars/Olympus"},
		{name: "bad etl schedule", key: "ETL_SCHEDULE", value: "25:00"},
		{name: "bad backfill schedule", key: "BACKFILL_SCHEDULE", value: "noon"},
		{name: "zero page size", key: "DEMAS_PAGE_SIZE", value: "0"},
		{name: "zero probe days", key: "ETL_PROBE_DAYS", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseClock(t *testing.T) {
	hour, minute, err := ParseClock("04:20")
	require.NoError(t, err)
	assert.Equal(t, 4, hour)
	assert.Equal(t, 20, minute)

	_, _, err = ParseClock("4")
	assert.Error(t, err)
	_, _, err = ParseClock("12:60")
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "medstock", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=medstock sslmode=disable", c.DatabaseDSN())
}
