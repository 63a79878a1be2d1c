package api

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestPathID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	parse := func(raw string) (int64, bool) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Params = gin.Params{{Key: "id", Value: raw}}
		return pathID(c)
	}

	id, ok := parse("42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc", "1.5"} {
		_, ok := parse(raw)
		assert.False(t, ok, raw)
	}
}
