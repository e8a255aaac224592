package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-roster/docs"
	"patient-roster/internal/adapters/storage/memory"
	"patient-roster/internal/config"
	"patient-roster/internal/domain/patients"
	"patient-roster/internal/platform/logger"
	"patient-roster/internal/platform/metrics"
	"patient-roster/internal/router"
	"patient-roster/internal/session"
)

func newServer(t *testing.T) (*httptest.Server, *metrics.Recorder) {
	t.Helper()

	rec := metrics.New()
	svc := patients.NewService(memory.NewPatientRepo()).WithObserver(rec)
	reg := session.NewRegistry(svc, session.Options{Metrics: rec, Logger: logger.Nop()})

	ts := httptest.NewServer(router.NewRouter(router.Options{
		Registry: reg,
		Metrics:  rec,
		Logger:   logger.Nop(),
		Now:      func() time.Time { return time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC) },
	}))
	t.Cleanup(func() {
		ts.Close()
		reg.CloseAll()
	})
	return ts, rec
}

func TestHTTP_HealthAndDocs(t *testing.T) {
	ts, _ := newServer(t)

	st, body := doReq(t, ts.URL, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, st)
	assert.Equal(t, "ok", string(body))

	st, body = doReq(t, ts.URL, http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, st)
	assert.Contains(t, string(body), "Patient Roster API")
}

func TestHTTP_EndToEnd_AddPatientAndScrapeMetrics(t *testing.T) {
	ts, _ := newServer(t)

	// 1) Abrir sesión
	st, body := doReq(t, ts.URL, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, st, string(body))
	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.SessionID)
	base := "/sessions/" + created.SessionID

	// 2) Alta de paciente
	patient := map[string]any{
		"family_name":  "Mballa",
		"given_name":   "Jean",
		"sex":          "MALE",
		"birth_date":   "1980-05-01",
		"profession":   "Enseignant",
		"email":        "jean@x.com",
		"country_code": "+237",
		"phone_local":  "612345678",
	}
	st, body = doReq(t, ts.URL, http.MethodPost, base+"/patients", patient)
	require.Equal(t, http.StatusAccepted, st, string(body))

	// 3) Aparece en el snapshot
	require.Eventually(t, func() bool {
		st, body := doReq(t, ts.URL, http.MethodGet, base, nil)
		if st != http.StatusOK {
			return false
		}
		var snap struct {
			Patients []struct {
				FullName    string `json:"full_name"`
				Age         int    `json:"age"`
				PhoneNumber string `json:"phone_number"`
			} `json:"patients"`
		}
		if err := json.Unmarshal(body, &snap); err != nil {
			return false
		}
		return len(snap.Patients) == 1 &&
			snap.Patients[0].FullName == "Jean Mballa" &&
			snap.Patients[0].Age == 46 &&
			snap.Patients[0].PhoneNumber == "+237 612345678"
	}, 2*time.Second, 10*time.Millisecond)

	// 4) Duplicado: rechazado por la sesión
	st, _ = doReq(t, ts.URL, http.MethodPost, base+"/patients", patient)
	require.Equal(t, http.StatusAccepted, st)
	require.Eventually(t, func() bool {
		_, body := doReq(t, ts.URL, http.MethodGet, base, nil)
		return strings.Contains(string(body), "patient already exists")
	}, 2*time.Second, 10*time.Millisecond)

	// 5) Métricas
	st, body = doReq(t, ts.URL, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, st)
	text := string(body)
	assert.Contains(t, text, "patient_roster_active_sessions 1")
	assert.Contains(t, text, `patient_roster_mutations_total{op="add",result="ok"} 1`)
	assert.Contains(t, text, `patient_roster_duplicate_rejections_total{op="add"} 1`)
	assert.Contains(t, text, "patient_roster_store_operation_seconds")

	// 6) Cerrar sesión
	st, _ = doReq(t, ts.URL, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, st)
	st, _ = doReq(t, ts.URL, http.MethodGet, base, nil)
	require.Equal(t, http.StatusNotFound, st)
}

func TestDocs_CoverEveryRoute(t *testing.T) {
	rec := metrics.New()
	reg := session.NewRegistry(patients.NewService(memory.NewPatientRepo()), session.Options{Logger: logger.Nop()})
	t.Cleanup(reg.CloseAll)

	h := router.NewRouter(router.Options{Registry: reg, Metrics: rec, Logger: logger.Nop()})
	routes, ok := h.(chi.Routes)
	require.True(t, ok)

	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc))

	documented := 0
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if strings.HasPrefix(route, "/swagger/") {
			return nil
		}
		if len(route) > 1 {
			route = strings.TrimSuffix(route, "/")
		}
		ops, found := doc.Paths[route]
		if assert.True(t, found, "route %s is not documented", route) {
			_, found = ops[strings.ToLower(method)]
			assert.True(t, found, "%s %s is not documented", method, route)
		}
		documented++
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, documented, 15)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	repo, closeFn, err := router.OpenStore(ctx, &config.Config{StoreDriver: config.DriverMemory}, logger.Nop())
	require.NoError(t, err)
	require.NotNil(t, repo)
	require.NoError(t, closeFn())

	path := filepath.Join(t.TempDir(), "roster.db")
	repo, closeFn, err = router.OpenStore(ctx, &config.Config{StoreDriver: config.DriverSQLite, SQLitePath: path}, logger.Nop())
	require.NoError(t, err)
	_, err = repo.Insert(ctx, patients.Patient{FamilyName: "Mballa", GivenName: "Jean", Sex: patients.SexMale, BirthDate: patients.Date(1980, time.May, 1)})
	require.NoError(t, err)
	require.NoError(t, closeFn())

	_, _, err = router.OpenStore(ctx, &config.Config{StoreDriver: "mongo"}, logger.Nop())
	assert.Error(t, err)
}

func TestOpenMigrator_StatusThenUp(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{StoreDriver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "roster.db")}

	m, closeFn, err := router.OpenMigrator(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer closeFn()

	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, status)
	for _, st := range status {
		assert.False(t, st.Applied, "migration %d", st.Version)
	}

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(status), n)

	_, _, err = router.OpenMigrator(ctx, &config.Config{StoreDriver: config.DriverMemory}, logger.Nop())
	assert.Error(t, err)
}

func doReq(t *testing.T, baseURL, method, path string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
