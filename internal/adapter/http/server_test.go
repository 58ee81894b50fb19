package http_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	httpadapter "github.com/Zalgo-Dev/WeaRisk/internal/adapter/http"
	"github.com/Zalgo-Dev/WeaRisk/internal/domain"
	"github.com/Zalgo-Dev/WeaRisk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httpadapter.Server, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "risks.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return httpadapter.NewServer(":0", s, slog.Default()), s
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	require.NoError(t, s.InsertBatch(context.Background(), []domain.RiskRecord{
		{DepartmentCode: "75", DepartmentName: "Paris", Timestamp: "2026-09-01T10:00",
			ElectricalRisk: 5, FloodRisk: 20, HeatRisk: 0, WindRisk: 7.5, OverallRisk: 9.25},
		{DepartmentCode: "59", DepartmentName: "Nord", Timestamp: "2026-09-01T11:00",
			ElectricalRisk: 11, FloodRisk: 40, HeatRisk: 2, WindRisk: 15, OverallRisk: 19.1},
	}))
}

func get(t *testing.T, srv *httpadapter.Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz_NotReadyWhileEmpty(t *testing.T) {
	srv, s := newTestServer(t)

	rec := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	seed(t, s)
	rec = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRisks_ReturnsRecords(t *testing.T) {
	srv, s := newTestServer(t)
	seed(t, s)

	rec := get(t, srv, "/api/risks")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []domain.RiskRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "59", records[0].DepartmentCode, "newest hour first")
}

func TestRisks_DepartmentFilter(t *testing.T) {
	srv, s := newTestServer(t)
	seed(t, s)

	rec := get(t, srv, "/api/risks?department=Par")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []domain.RiskRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Paris", records[0].DepartmentName)
}

func TestRisks_MalformedLimitFallsBack(t *testing.T) {
	srv, s := newTestServer(t)
	seed(t, s)

	rec := get(t, srv, "/api/risks?limit=banana")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []domain.RiskRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 2)
}

func TestRisks_EmptyStoreYieldsEmptyArray(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/api/risks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestDepartments(t *testing.T) {
	srv, s := newTestServer(t)
	seed(t, s)

	rec := get(t, srv, "/api/departments")
	require.Equal(t, http.StatusOK, rec.Code)

	var departments []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &departments))
	assert.Equal(t, []string{"Nord", "Paris"}, departments)
}

func TestMapData_LatestSnapshot(t *testing.T) {
	srv, s := newTestServer(t)
	seed(t, s)

	rec := get(t, srv, "/api/map-data?risk_type=flood")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap store.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "2026-09-01T11:00", snap.CurrentTimestamp)
	require.Len(t, snap.Data, 1)
	assert.Equal(t, 40.0, snap.Data[0].Risk)
}

func TestMapData_ExplicitTimestamp(t *testing.T) {
	srv, s := newTestServer(t)
	seed(t, s)

	rec := get(t, srv, "/api/map-data?risk_type=overall&timestamp=2026-09-01T10:00")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap store.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Data, 1)
	assert.Equal(t, "75", snap.Data[0].DepartmentCode)
	assert.Equal(t, 9.25, snap.Data[0].Risk)
}

func TestMapData_EmptyStore(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/api/map-data")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap store.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Empty(t, snap.Data)
	assert.Empty(t, snap.CurrentTimestamp)
}
