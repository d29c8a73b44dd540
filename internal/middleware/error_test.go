package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtime/medtime-api/pkg/errors"
	"github.com/medtime/medtime-api/pkg/httputil"
)

func newErrorTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID(), ErrorHandler())
	return engine
}

func TestErrorHandler(t *testing.T) {
	t.Run("leaves handler error response intact", func(t *testing.T) {
		engine := newErrorTestRouter()
		engine.GET("/boom", func(c *gin.Context) {
			httputil.RespondWithError(c, errors.Configuration("interval is required"))
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp httputil.Response
		dec := json.NewDecoder(w.Body)
		require.NoError(t, dec.Decode(&resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Error.Code)
		assert.Equal(t, "interval is required", resp.Error.Message)

		// A second body would mean the middleware wrote its own envelope.
		assert.False(t, dec.More())
	})

	t.Run("does not touch successful responses", func(t *testing.T) {
		engine := newErrorTestRouter()
		engine.GET("/ok", func(c *gin.Context) {
			httputil.RespondWithSuccess(c, gin.H{"status": "ok"})
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp httputil.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Error)
	})
}

func TestRespondWithErrorRecordsContextError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/medications/missing", nil)

	httputil.RespondWithError(c, errors.NotFound("medication", nil))

	require.Len(t, c.Errors, 1)
	assert.EqualError(t, c.Errors[0].Err, "medication not found")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
