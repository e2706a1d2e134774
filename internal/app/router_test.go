package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name           string
		checks         map[string]func(ctx context.Context) error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "no dependencies",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"ready":true,"checks":{"server":true}}`,
		},
		{
			name: "database down",
			checks: map[string]func(ctx context.Context) error{
				"database": func(context.Context) error { return errors.New("connection refused") },
				"redis":    func(context.Context) error { return nil },
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"ready":false,"checks":{"server":true,"database":false,"redis":true}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			readinessHandler(tt.checks, zap.NewNop())(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}
