package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric returns the metric in family name whose labels include all of want
func findMetric(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(want) {
				return m
			}
		}
	}
	return nil
}

func TestDatastoreMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(reg)
	require.NoError(t, err)

	var rec Recorder = m
	rec.RecordOperation(OpCreate, StatusSuccess)
	rec.RecordOperation(OpCreate, StatusSuccess)
	rec.RecordOperation(OpGet, StatusNotFound)
	rec.RecordDuration(OpCreate, 3*time.Millisecond)

	created := findMetric(t, reg, "hellobirdie_datastore_operations_total",
		map[string]string{"operation": OpCreate, "status": StatusSuccess})
	require.NotNil(t, created)
	assert.InDelta(t, 2, created.GetCounter().GetValue(), 0)

	notFound := findMetric(t, reg, "hellobirdie_datastore_operations_total",
		map[string]string{"operation": OpGet, "status": StatusNotFound})
	require.NotNil(t, notFound)
	assert.InDelta(t, 1, notFound.GetCounter().GetValue(), 0)

	duration := findMetric(t, reg, "hellobirdie_datastore_operation_duration_seconds",
		map[string]string{"operation": OpCreate})
	require.NotNil(t, duration)
	assert.Equal(t, uint64(1), duration.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.003, duration.GetHistogram().GetSampleSum(), 1e-9)
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	m.RecordRequest("GET", "/api/v1/birds/:id", 404, 5*time.Millisecond)

	got := findMetric(t, reg, "hellobirdie_http_requests_total",
		map[string]string{"method": "GET", "route": "/api/v1/birds/:id", "status": "404"})
	require.NotNil(t, got)
	assert.InDelta(t, 1, got.GetCounter().GetValue(), 0)
}

func TestTaxonomyMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewTaxonomyMetrics(reg)
	require.NoError(t, err)

	m.RecordImportRecords(ImportCreated, 12)
	m.RecordImportRecords(ImportSkipped, 0)
	m.RecordBackupOperation(OpBackupExport, StatusSuccess)

	created := findMetric(t, reg, "hellobirdie_taxonomy_import_records_total",
		map[string]string{"result": ImportCreated})
	require.NotNil(t, created)
	assert.InDelta(t, 12, created.GetCounter().GetValue(), 0)

	assert.Nil(t, findMetric(t, reg, "hellobirdie_taxonomy_import_records_total",
		map[string]string{"result": ImportSkipped}), "zero counts are not recorded")

	backup := findMetric(t, reg, "hellobirdie_backup_operations_total",
		map[string]string{"operation": OpBackupExport, "status": StatusSuccess})
	require.NotNil(t, backup)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	_, err = NewHTTPMetrics(reg)
	assert.Error(t, err)
}
