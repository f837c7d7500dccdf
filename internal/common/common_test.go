package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationRequest(t *testing.T) {
	assert.Equal(t, 0, PaginationRequest{}.GetOffset())
	assert.Equal(t, 20, PaginationRequest{}.GetPageSize())
	assert.Equal(t, 100, PaginationRequest{PageSize: 500}.GetPageSize())
	assert.Equal(t, 40, PaginationRequest{Page: 3, PageSize: 20}.GetOffset())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeConflict))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeWorkflowInvalidState))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeWorkflowValidationFailed))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeAlertNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(CodeServiceUnavailable))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(CodeForbidden))
}

func TestResponseBusinessErrorCarriesData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ResponseBusinessError(c, NewBusinessError(CodeConflict, "").WithData(map[string]int{"currentStep": 2}))

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp struct {
		Success bool           `json:"success"`
		Code    int            `json:"code"`
		Message string         `json:"message"`
		Data    map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, CodeConflict, resp.Code)
	assert.Equal(t, GetErrorMessage(CodeConflict), resp.Message)
	assert.Equal(t, 2, resp.Data["currentStep"])
}
