package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/middleware"
	"supplyhub/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asActor stands in for AuthGuard. A zero actor leaves the request anonymous.
func asActor(actor models.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actor.ID.IsZero() {
			c.Set(middleware.ContextUserID, actor.ID)
			c.Set(middleware.ContextRole, actor.Role)
		}
		c.Next()
	}
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}, header http.Header) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}
