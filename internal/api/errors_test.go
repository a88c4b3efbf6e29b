package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		want     string
	}{
		{
			name: "error with details",
			apiError: &APIError{
				Code:    400,
				Message: "Invalid resource kind",
				Details: "tape",
			},
			want: "Invalid resource kind: tape",
		},
		{
			name: "error without details",
			apiError: &APIError{
				Code:    404,
				Message: "Not Found",
			},
			want: "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.want {
				t.Errorf("APIError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("Resource kind", "ion")

	if err.Code != http.StatusNotFound {
		t.Errorf("NotFoundError().Code = %v, want %v", err.Code, http.StatusNotFound)
	}
	if err.Message != "Resource kind not found" {
		t.Errorf("NotFoundError().Message = %v, want %v", err.Message, "Resource kind not found")
	}
	if err.Context["id"] != "ion" {
		t.Errorf("NotFoundError().Context[id] = %v, want %v", err.Context["id"], "ion")
	}
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		debug       bool
		wantCode    int
		wantMessage string
		wantDetails string
	}{
		{
			name:        "api error",
			err:         BadRequestError("Invalid resource kind", "tape"),
			wantCode:    http.StatusBadRequest,
			wantMessage: "Invalid resource kind",
			wantDetails: "tape",
		},
		{
			name:        "echo http error",
			err:         echo.NewHTTPError(http.StatusNotFound, "no route"),
			wantCode:    http.StatusNotFound,
			wantMessage: "Resource not found",
			wantDetails: "no route",
		},
		{
			name:        "generic error hidden",
			err:         errors.New("ssh: handshake failed"),
			wantCode:    http.StatusInternalServerError,
			wantMessage: "Internal server error",
			wantDetails: "An internal error occurred",
		},
		{
			name:        "generic error in debug",
			err:         errors.New("ssh: handshake failed"),
			debug:       true,
			wantCode:    http.StatusInternalServerError,
			wantMessage: "Internal server error",
			wantDetails: "ssh: handshake failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Debug = tt.debug
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			HTTPErrorHandler(tt.err, c)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var got APIError
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMessage)
			}
			if got.Details != tt.wantDetails {
				t.Errorf("details = %q, want %q", got.Details, tt.wantDetails)
			}
		})
	}
}
