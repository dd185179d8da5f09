package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/auth"
	"github.com/erp/schoolfees/internal/interfaces/http/dto"
	"github.com/erp/schoolfees/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func newTestContext(method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name:       "from gin context",
			setup:      func(c *gin.Context) { c.Set(middleware.RequestIDKey, "ctx-id") },
			expectedID: "ctx-id",
		},
		{
			name:       "from header when context empty",
			setup:      func(c *gin.Context) { c.Request.Header.Set(middleware.RequestIDHeader, "header-id") },
			expectedID: "header-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context wins over header",
			setup: func(c *gin.Context) {
				c.Set(middleware.RequestIDKey, "ctx-id")
				c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
			},
			expectedID: "ctx-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodGet, "/", "")
			tt.setup(c)
			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestPrincipal(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/", "")
	assert.Nil(t, principal(c))

	p := &auth.Principal{UserID: 9, Username: "bursar"}
	c.Set(middleware.PrincipalKey, p)
	assert.Same(t, p, principal(c))
}

func TestBaseHandlerResponses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("success", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/", "")
		h.Success(c, map[string]string{"k": "v"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode(t, w).Success)
	})

	t.Run("list carries total", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/", "")
		h.SuccessList(c, []int{1, 2, 3}, 3)
		resp := decode(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(3), resp.Meta.Total)
	})

	t.Run("created", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", "")
		h.Created(c, "x")
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("no content", func(t *testing.T) {
		c, w := newTestContext(http.MethodDelete, "/", "")
		h.NoContent(c)
		c.Writer.WriteHeaderNow()
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("attachment", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/", "")
		h.Attachment(c, "application/pdf", "receipt.pdf", []byte("%PDF-1.3"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="receipt.pdf"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-1.3", w.Body.String())
	})
}

func TestBaseHandlerErrorRecordsCode(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/", "")
	c.Set(middleware.RequestIDKey, "req-1")

	h.BadRequest(c, "nope")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, c.GetString(middleware.ErrorCodeKey))
	resp := decode(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Equal(t, "nope", resp.Error.Message)
}

func TestBaseHandlerHandleError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{"not found", shared.NewNotFoundError("Fee structure not found"), http.StatusNotFound, dto.ErrCodeNotFound, "Fee structure not found"},
		{"bad request", shared.NewBadRequestError("Invalid fee_month"), http.StatusBadRequest, dto.ErrCodeBadRequest, "Invalid fee_month"},
		{"conflict", shared.NewConflictError("Fee already paid"), http.StatusConflict, dto.ErrCodeConflict, "Fee already paid"},
		{"optimistic lock", shared.NewDomainError(shared.CodeOptimisticLock, "stale"), http.StatusConflict, dto.ErrCodeConcurrencyConflict, "stale"},
		{"bad gateway", shared.NewBadGatewayError(errors.New("502"), "Gateway failed"), http.StatusBadGateway, dto.ErrCodeBadGateway, "Gateway failed"},
		{"roster down", shared.NewServiceUnavailableError(errors.New("dial"), "Roster unavailable"), http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, "Roster unavailable"},
		{"wrapped domain error", fmt.Errorf("submit: %w", shared.NewConflictError("dup")), http.StatusConflict, dto.ErrCodeConflict, "dup"},
		{"plain error", errors.New("db exploded"), http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newTestContext(http.MethodGet, "/", "")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
			assert.Equal(t, tt.expectedMsg, resp.Error.Message)
			assert.Len(t, c.Errors, 1)
		})
	}
}

func TestBaseHandlerHandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/", "")
	h.HandleError(c, nil)
	assert.False(t, c.Writer.Written())
	assert.Equal(t, http.StatusOK, w.Code)
}

type bindTarget struct {
	Month int    `json:"fee_month" binding:"required,fee_month"`
	Mode  string `json:"payment_mode" binding:"required,payment_mode"`
}

func TestBaseHandlerBindJSON(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid body", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPost, "/", `{"fee_month":4,"payment_mode":"cash"}`)
		var req bindTarget
		require.True(t, h.BindJSON(c, &req))
		assert.Equal(t, 4, req.Month)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", `{"fee_month":13,"payment_mode":"upi"}`)
		var req bindTarget
		require.False(t, h.BindJSON(c, &req))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := decode(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Must be a month between 1 and 12", fields["fee_month"])
		assert.Equal(t, "Must be one of: CASH, ONLINE, CHEQUE", fields["payment_mode"])
	})

	t.Run("malformed json", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", `{"fee_month":`)
		var req bindTarget
		require.False(t, h.BindJSON(c, &req))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, decode(t, w).Error.Details)
	})
}

func TestBaseHandlerParseUUIDParam(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext(http.MethodGet, "/", "")
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	_, ok := h.ParseUUIDParam(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, _ = newTestContext(http.MethodGet, "/", "")
	c.Params = gin.Params{{Key: "id", Value: "5f0c7a1e-3b9d-4e7a-9c1e-0a2b3c4d5e6f"}}
	id, ok := h.ParseUUIDParam(c, "id")
	assert.True(t, ok)
	assert.Equal(t, "5f0c7a1e-3b9d-4e7a-9c1e-0a2b3c4d5e6f", id.String())
}

func TestBaseHandlerInt64Query(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		query    string
		required bool
		ok       bool
		want     *int64
	}{
		{"", true, false, nil},
		{"", false, true, nil},
		{"?id=abc", false, false, nil},
		{"?id=0", true, false, nil},
		{"?id=-3", true, false, nil},
		{"?id=42", true, true, ptr(int64(42))},
		{"?id=42", false, true, ptr(int64(42))},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s required=%v", tt.query, tt.required), func(t *testing.T) {
			c, w := newTestContext(http.MethodGet, "/"+tt.query, "")
			if tt.required {
				v, ok := h.RequiredInt64Query(c, "id")
				assert.Equal(t, tt.ok, ok)
				if tt.want != nil {
					assert.Equal(t, *tt.want, v)
				}
			} else {
				v, ok := h.OptionalInt64Query(c, "id")
				assert.Equal(t, tt.ok, ok)
				assert.Equal(t, tt.want, v)
			}
			if !tt.ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
