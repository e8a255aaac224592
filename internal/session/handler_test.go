package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := NewRegistry(newStore(), Options{})
	r := chi.NewRouter()
	RegisterRoutes(r, reg, func() time.Time { return fixedNow })
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		reg.CloseAll()
	})
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, out
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	st, body := doJSON(t, http.MethodPost, base+"/sessions", nil)
	require.Equal(t, http.StatusCreated, st, string(body))
	var snap snapshotResponse
	require.NoError(t, json.Unmarshal(body, &snap))
	require.NotEmpty(t, snap.SessionID)
	return snap.SessionID
}

func getSnapshot(t *testing.T, base, id string) snapshotResponse {
	t.Helper()
	st, body := doJSON(t, http.MethodGet, base+"/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, st, string(body))
	var snap snapshotResponse
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

func eventually(t *testing.T, base, id string, cond func(snapshotResponse) bool) snapshotResponse {
	t.Helper()
	var last snapshotResponse
	require.Eventually(t, func() bool {
		last = getSnapshot(t, base, id)
		return cond(last)
	}, 2*time.Second, 10*time.Millisecond, "last snapshot: %+v", last)
	return last
}

func jeanBody() map[string]any {
	return map[string]any{
		"family_name":  "Mballa",
		"given_name":   "Jean",
		"sex":          "MALE",
		"birth_date":   "1980-05-01",
		"profession":   "Enseignant",
		"email":        "jean@x.com",
		"country_code": "+237",
		"phone_local":  "612345678",
	}
}

func TestHTTP_AddListAndDerivedFields(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts.URL)

	st, _ := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/dialogs/add/open", nil)
	require.Equal(t, http.StatusAccepted, st)

	st, body := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/patients", jeanBody())
	require.Equal(t, http.StatusAccepted, st, string(body))

	snap := eventually(t, ts.URL, id, func(s snapshotResponse) bool { return len(s.Patients) == 1 })
	p := snap.Patients[0]
	assert.Equal(t, "Jean Mballa", p.FullName)
	assert.Equal(t, 46, p.Age)
	assert.Equal(t, "+237 612345678", p.PhoneNumber)
	assert.Equal(t, "1980-05-01", p.BirthDate)
	assert.False(t, snap.ShowAddDialog)
	assert.Equal(t, DialogNone, snap.Dialog)
}

func TestHTTP_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts.URL)

	bad := jeanBody()
	bad["family_name"] = "  "
	bad["email"] = "not-an-email"
	bad["phone_local"] = "1234"

	st, body := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/patients", bad)
	require.Equal(t, http.StatusBadRequest, st)

	var resp validationResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Contains(t, resp.Fields, "family_name")
	assert.Contains(t, resp.Fields, "email")
	assert.Contains(t, resp.Fields, "phone_number")
	assert.NotContains(t, resp.Fields, "given_name")

	// las validaciones nunca pasan por la celda de error
	assert.Empty(t, getSnapshot(t, ts.URL, id).ErrorMessage)
}

func TestHTTP_DuplicateSurfacesInSnapshot(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts.URL)

	doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/patients", jeanBody())
	eventually(t, ts.URL, id, func(s snapshotResponse) bool { return len(s.Patients) == 1 })

	doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/dialogs/add/open", nil)
	dup := jeanBody()
	dup["email"] = "other@x.com"
	st, _ := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/patients", dup)
	require.Equal(t, http.StatusAccepted, st)

	snap := eventually(t, ts.URL, id, func(s snapshotResponse) bool { return s.ErrorMessage != "" })
	assert.True(t, snap.ShowAddDialog)
	assert.Len(t, snap.Patients, 1)
	assert.Contains(t, snap.ErrorMessage, "Mballa")
}

func TestHTTP_EditAndDeleteFlow(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts.URL)
	base := ts.URL + "/sessions/" + id

	doJSON(t, http.MethodPost, base+"/patients", jeanBody())
	snap := eventually(t, ts.URL, id, func(s snapshotResponse) bool { return len(s.Patients) == 1 })
	pid := strconv.FormatInt(snap.Patients[0].ID, 10)

	st, _ := doJSON(t, http.MethodPost, base+"/patients/999/edit", nil)
	assert.Equal(t, http.StatusNotFound, st)
	st, _ = doJSON(t, http.MethodPost, base+"/patients/abc/edit", nil)
	assert.Equal(t, http.StatusBadRequest, st)

	st, _ = doJSON(t, http.MethodPost, base+"/patients/"+pid+"/edit", nil)
	require.Equal(t, http.StatusAccepted, st)
	snap = getSnapshot(t, ts.URL, id)
	require.NotNil(t, snap.PatientToEdit)
	assert.Equal(t, DialogEdit, snap.Dialog)

	edit := jeanBody()
	edit["profession"] = "Directeur"
	st, _ = doJSON(t, http.MethodPut, base+"/patients/"+pid, edit)
	require.Equal(t, http.StatusAccepted, st)
	eventually(t, ts.URL, id, func(s snapshotResponse) bool {
		return !s.ShowEditDialog && len(s.Patients) == 1 && s.Patients[0].Profession == "Directeur"
	})

	st, _ = doJSON(t, http.MethodPost, base+"/patients/"+pid+"/delete", nil)
	require.Equal(t, http.StatusAccepted, st)
	snap = getSnapshot(t, ts.URL, id)
	assert.True(t, snap.ShowDeleteConfirmation)

	st, _ = doJSON(t, http.MethodPost, base+"/delete/cancel", nil)
	require.Equal(t, http.StatusAccepted, st)
	snap = getSnapshot(t, ts.URL, id)
	assert.False(t, snap.ShowDeleteConfirmation)
	assert.Nil(t, snap.PatientToDelete)
	assert.Len(t, snap.Patients, 1)

	doJSON(t, http.MethodPost, base+"/patients/"+pid+"/delete", nil)
	st, _ = doJSON(t, http.MethodPost, base+"/delete/confirm", nil)
	require.Equal(t, http.StatusAccepted, st)
	eventually(t, ts.URL, id, func(s snapshotResponse) bool { return len(s.Patients) == 0 && !s.ShowDeleteConfirmation })
}

func TestHTTP_UpdateEditedPatientHiddenByFilter(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts.URL)
	base := ts.URL + "/sessions/" + id

	doJSON(t, http.MethodPost, base+"/patients", jeanBody())
	snap := eventually(t, ts.URL, id, func(s snapshotResponse) bool { return len(s.Patients) == 1 })
	pid := strconv.FormatInt(snap.Patients[0].ID, 10)

	st, _ := doJSON(t, http.MethodPost, base+"/patients/"+pid+"/edit", nil)
	require.Equal(t, http.StatusAccepted, st)

	// el filtro deja de mostrar al paciente en edición
	st, _ = doJSON(t, http.MethodPut, base+"/filter", map[string]any{"sex": "FEMALE"})
	require.Equal(t, http.StatusAccepted, st)
	snap = getSnapshot(t, ts.URL, id)
	require.Empty(t, snap.Patients)
	require.NotNil(t, snap.PatientToEdit)

	edit := jeanBody()
	edit["profession"] = "Directeur"
	st, body := doJSON(t, http.MethodPut, base+"/patients/"+pid, edit)
	require.Equal(t, http.StatusAccepted, st, string(body))
	eventually(t, ts.URL, id, func(s snapshotResponse) bool { return !s.ShowEditDialog })

	// otro id que no está listado ni en edición sigue siendo 404
	st, _ = doJSON(t, http.MethodPut, base+"/patients/999", edit)
	assert.Equal(t, http.StatusNotFound, st)

	doJSON(t, http.MethodDelete, base+"/filter", nil)
	snap = eventually(t, ts.URL, id, func(s snapshotResponse) bool { return len(s.Patients) == 1 })
	assert.Equal(t, "Directeur", snap.Patients[0].Profession)
}

func TestHTTP_Filter(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts.URL)
	base := ts.URL + "/sessions/" + id

	doJSON(t, http.MethodPost, base+"/patients", jeanBody())
	aline := jeanBody()
	aline["family_name"] = "Ngo Mbeng"
	aline["given_name"] = "Aline"
	aline["sex"] = "female"
	doJSON(t, http.MethodPost, base+"/patients", aline)
	eventually(t, ts.URL, id, func(s snapshotResponse) bool { return len(s.Patients) == 2 })

	st, _ := doJSON(t, http.MethodPut, base+"/filter", map[string]any{"sex": "unknown"})
	assert.Equal(t, http.StatusBadRequest, st)
	st, _ = doJSON(t, http.MethodPut, base+"/filter", map[string]any{"birth_date": "01/05/1980"})
	assert.Equal(t, http.StatusBadRequest, st)

	st, _ = doJSON(t, http.MethodPut, base+"/filter", map[string]any{"sex": "FEMALE"})
	require.Equal(t, http.StatusAccepted, st)
	snap := getSnapshot(t, ts.URL, id)
	require.Len(t, snap.Patients, 1)
	assert.Equal(t, "Aline", snap.Patients[0].GivenName)
	assert.True(t, snap.Filter.HasActiveFilters)

	st, _ = doJSON(t, http.MethodDelete, base+"/filter", nil)
	require.Equal(t, http.StatusAccepted, st)
	snap = getSnapshot(t, ts.URL, id)
	assert.Len(t, snap.Patients, 2)
	assert.False(t, snap.Filter.HasActiveFilters)
}

func TestHTTP_Dialogs(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts.URL)
	base := ts.URL + "/sessions/" + id

	st, _ := doJSON(t, http.MethodPost, base+"/dialogs/filters/open", nil)
	require.Equal(t, http.StatusAccepted, st)
	assert.Equal(t, DialogFilters, getSnapshot(t, ts.URL, id).Dialog)

	st, _ = doJSON(t, http.MethodPost, base+"/dialogs/filters/dismiss", nil)
	require.Equal(t, http.StatusAccepted, st)
	assert.Equal(t, DialogNone, getSnapshot(t, ts.URL, id).Dialog)

	st, _ = doJSON(t, http.MethodPost, base+"/dialogs/edit/open", nil)
	assert.Equal(t, http.StatusBadRequest, st)
	st, _ = doJSON(t, http.MethodPost, base+"/dialogs/wizard/open", nil)
	assert.Equal(t, http.StatusNotFound, st)
}

func TestHTTP_UnknownSessionAndClose(t *testing.T) {
	ts := newTestServer(t)

	st, _ := doJSON(t, http.MethodGet, ts.URL+"/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, st)
	st, _ = doJSON(t, http.MethodPost, ts.URL+"/sessions/nope/patients", jeanBody())
	assert.Equal(t, http.StatusNotFound, st)

	id := createSession(t, ts.URL)
	st, _ = doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/background", nil)
	assert.Equal(t, http.StatusAccepted, st)
	st, _ = doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/foreground", nil)
	assert.Equal(t, http.StatusAccepted, st)

	st, _ = doJSON(t, http.MethodDelete, ts.URL+"/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, st)
	st, _ = doJSON(t, http.MethodGet, ts.URL+"/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, st)
}

func TestHTTP_StreamEmitsNDJSON(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sessions/"+id+"/stream", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/x-ndjson", res.Header.Get("Content-Type"))

	lines := make(chan snapshotResponse, 16)
	go func() {
		sc := bufio.NewScanner(res.Body)
		for sc.Scan() {
			var snap snapshotResponse
			if json.Unmarshal(sc.Bytes(), &snap) == nil {
				lines <- snap
			}
		}
		close(lines)
	}()

	first := <-lines
	assert.Equal(t, id, first.SessionID)

	doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/patients", jeanBody())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-lines:
			require.True(t, ok, "stream ended early")
			if len(snap.Patients) == 1 {
				return
			}
		case <-deadline:
			t.Fatalf("stream never showed the new patient")
		}
	}
}

func TestHTTP_CountryCodes(t *testing.T) {
	ts := newTestServer(t)
	st, body := doJSON(t, http.MethodGet, ts.URL+"/country-codes", nil)
	require.Equal(t, http.StatusOK, st)

	var resp struct {
		Default string `json:"default"`
		Codes   []struct {
			Name string `json:"name"`
			Code string `json:"code"`
		} `json:"codes"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "+237", resp.Default)
	assert.NotEmpty(t, resp.Codes)
}
