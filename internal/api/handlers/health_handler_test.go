package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/erdstudio/engine/pkg/logger"
)

func TestHealthEndpoints(t *testing.T) {
	logger.Set(zap.NewNop())
	h := NewHealthHandler(map[string]Pinger{"db": func(context.Context) error { return nil }})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.Liveness(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr = httptest.NewRecorder()
	h.Readiness(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	down := NewHealthHandler(map[string]Pinger{"redis": func(context.Context) error { return errors.New("refused") }})
	rr = httptest.NewRecorder()
	down.Readiness(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
