package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	"github.com/drblury/mediaflow/internal/runtime/handlers"
	"github.com/drblury/mediaflow/internal/runtime/jsoncodec"
	"github.com/drblury/mediaflow/internal/runtime/mediatype"
	"github.com/drblury/mediaflow/internal/runtime/result"
)

func acceptAll(context.Context, codec.Fields) (bool, error) { return true, nil }

func TestReportListsBindings(t *testing.T) {
	conf := testConfig()
	svc, _ := newTestService(t, conf)
	require.NoError(t, RegisterHandler(svc, fooCreated, handlers.BindFunc("a", acceptAll)))
	require.NoError(t, RegisterHandler(svc, fooCreated, handlers.BindFunc("b", acceptAll)))
	conf.ActiveHandlers = []string{"a"}

	report := svc.Report()

	assert.Equal(t, "memory", report.Transport)
	assert.Empty(t, report.Error)
	assert.Equal(t, []BindingInfo{
		{MediaType: mediatype.Batch, Bindings: []string{BatchHandlerName}, Active: BatchHandlerName},
		{MediaType: fooCreated, Bindings: []string{"a", "b"}, Active: "a"},
	}, report.Bindings)
}

func TestReportSurfacesAmbiguousBindings(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	require.NoError(t, RegisterHandler(svc, fooCreated, handlers.BindFunc("a", acceptAll)))
	require.NoError(t, RegisterHandler(svc, fooCreated, handlers.BindFunc("b", acceptAll)))

	report := svc.Report()

	assert.Contains(t, report.Error, fooCreated)
	for _, info := range report.Bindings {
		assert.Empty(t, info.Active, info.MediaType)
	}
}

func TestHandleGetHandlers(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	require.NoError(t, RegisterHandler(svc, fooCreated, handlers.BindFunc("foo", acceptAll)))
	svc.Stats().Observe(context.Background(), result.MessageHandlingResult{MediaType: fooCreated, Handler: "foo", Kind: result.Succeeded})

	rec := httptest.NewRecorder()
	svc.handleGetHandlers(rec, httptest.NewRequest(http.MethodGet, "/api/handlers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report HandlersReport
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Stats, 1)
	assert.Equal(t, uint64(1), report.Stats[0].Outcomes[result.Succeeded])
	assert.Len(t, report.Bindings, 2)
}

func TestHandleGetHandlersRejectsOtherMethods(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	rec := httptest.NewRecorder()
	svc.handleGetHandlers(rec, httptest.NewRequest(http.MethodPost, "/api/handlers", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}
