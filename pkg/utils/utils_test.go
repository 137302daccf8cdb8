package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		wantErr bool
	}{
		{"Production", "prod", "", false},
		{"Development", "dev", "debug", false},
		{"Default environment", "", "", false},
		{"Unknown environment", "staging-ish", "", true},
		{"Bad level", "prod", "loud", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.env, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestSendError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)

	SendError(c, http.StatusServiceUnavailable, "index_unavailable", errors.New("reference index unavailable"))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.True(t, c.IsAborted())
	var body JSONResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "index_unavailable", body.Code)
	assert.Equal(t, "reference index unavailable", body.Message)
}

func TestSendJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)

	SendJSON(c, http.StatusOK, "loaded", map[string]int{"records": 3})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"success","message":"loaded","data":{"records":3}}`, rr.Body.String())
}
