package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, inbound string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	var seen string
	router.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(HeaderKey, inbound)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return seen, w.Header().Get(HeaderKey)
}

func TestMiddlewareGeneratesID(t *testing.T) {
	seen, header := serve(t, "")
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, header)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestMiddlewareReusesInboundID(t *testing.T) {
	seen, header := serve(t, "trace-abc-123")
	assert.Equal(t, "trace-abc-123", seen)
	assert.Equal(t, "trace-abc-123", header)
}

func TestMiddlewareReplacesUnsafeInboundID(t *testing.T) {
	seen, _ := serve(t, "bad id\twith spaces")
	assert.NotEqual(t, "bad id\twith spaces", seen)

	long, _ := serve(t, strings.Repeat("a", 200))
	assert.Len(t, long, 36)
}
