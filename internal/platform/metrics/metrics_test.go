package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_MutationCountsDuplicates(t *testing.T) {
	r := New()

	r.Mutation("add", ResultOK)
	r.Mutation("add", ResultDuplicate)
	r.Mutation("update", ResultDuplicate)
	r.Mutation("delete", ResultError)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.mutations.WithLabelValues("add", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.mutations.WithLabelValues("delete", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.duplicates.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.duplicates.WithLabelValues("update")))
}

func TestRecorder_Sessions(t *testing.T) {
	r := New()
	r.SessionOpened()
	r.SessionOpened()
	r.SessionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions))
}

func TestRecorder_ObserveStoreAndHandler(t *testing.T) {
	r := New()
	r.ObserveStore("insert", 3*time.Millisecond, nil)
	r.ObserveStore("insert", time.Millisecond, errors.New("locked"))

	assert.Equal(t, 2, testutil.CollectAndCount(r.storeOps))

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `patient_roster_store_operation_seconds_count{op="insert",result="error"} 1`)
	assert.Contains(t, string(body), `patient_roster_store_operation_seconds_count{op="insert",result="ok"} 1`)
}
