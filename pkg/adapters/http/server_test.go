package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/hpyharness/pkg/observability"
	"github.com/aretw0/hpyharness/pkg/template"
)

type hookedExpander struct {
	exp     *template.Expander
	metrics *observability.Metrics
}

func (h hookedExpander) Expand(src, name string) (string, error) {
	out, err := h.exp.Expand(src, name)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.metrics.Expansions.WithLabelValues(outcome).Inc()
	return out, err
}

func post(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/expand", bytes.NewReader(data))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestExpand_OK(t *testing.T) {
	h := NewHandler(template.New())

	w := post(t, h, ExpandRequest{Template: "@EXPORT(f)\n@INIT\n", Name: "previewed"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ExpandResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "previewed", resp.Name)
	assert.Contains(t, resp.Source, "HPy_MODINIT(previewed)")
	assert.Contains(t, resp.Source, "&f,")
}

func TestExpand_DefaultName(t *testing.T) {
	w := post(t, NewHandler(template.New()), ExpandRequest{Template: "@INIT"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "HPy_MODINIT(mytest)")
}

func TestExpand_AuthoringError(t *testing.T) {
	w := post(t, NewHandler(template.New()), ExpandRequest{Template: "int x;\n@EXPORT(a, b)\n"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Line)
	assert.Equal(t, "EXPORT", resp.Directive)
}

func TestExpand_BadBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/expand", strings.NewReader("{"))
	w := httptest.NewRecorder()
	NewHandler(template.New()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	h := NewHandler(hookedExpander{exp: template.New(), metrics: m}, WithGatherer(reg))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	post(t, h, ExpandRequest{Template: "@INIT"})

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `hpyharness_expansions_total{outcome="ok"} 1`)
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	w := httptest.NewRecorder()
	NewHandler(template.New()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
