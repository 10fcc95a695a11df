package httptransport_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualitymesh/aat-core/pkg/httptransport"
)

func TestWriteJSONSetsContentTypeAndBody(t *testing.T) {
	w := httptest.NewRecorder()
	httptransport.WriteJSON(w, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"id":"abc"`)
}

func TestDecodeJSONPopulatesTarget(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"probe"}`))

	var v struct {
		Name string `json:"name"`
	}
	require.NoError(t, httptransport.DecodeJSON(req, &v))
	assert.Equal(t, "probe", v.Name)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"probe","bogus":true}`))

	var v struct {
		Name string `json:"name"`
	}
	err := httptransport.DecodeJSON(req, &v)
	assert.Error(t, err)
}
