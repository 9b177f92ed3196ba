package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"camrent/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validCred = domain.Credential{Token: "opaque-token"}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "manager-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestCheckCredential(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "empty", token: "", wantErr: true},
		{name: "blank", token: "   ", wantErr: true},
		{name: "opaque", token: "abc123"},
		{name: "valid jwt", token: signedToken(t, now.Add(time.Hour))},
		{name: "expired jwt", token: signedToken(t, now.Add(-time.Minute)), wantErr: true},
		{name: "malformed jwt", token: "x.y.z", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCredential(domain.Credential{Token: tt.token}, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnauthenticated)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDoJSONSendsAuthAndDecodes(t *testing.T) {
	var gotAuth, gotReqID, gotQuery string
	var gotBody map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotQuery = r.URL.Query().Get("status")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c-42"}`))
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL+"/", 0, nil)
	var out struct {
		ID string `json:"id"`
	}
	err := c.DoJSON(context.Background(), validCred, http.MethodPost, "/Contracts/verification/v1",
		url.Values{"status": {"Confirmed"}}, map[string]string{"a": "b"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "c-42", out.ID)
	assert.Equal(t, "Bearer opaque-token", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "Confirmed", gotQuery)
	assert.Equal(t, "b", gotBody["a"])
}

func TestDoJSONEmptyBodyIsFine(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ts.Close)

	var out map[string]any
	err := New(ts.URL, 0, nil).DoJSON(context.Background(), validCred, http.MethodPut, "/x", nil, nil, &out)
	assert.NoError(t, err)
}

func TestDoJSONUnauthenticatedSendsNothing(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL, 0, nil)
	err := c.DoJSON(context.Background(), domain.Credential{}, http.MethodGet, "/Bookings", nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = c.GetBinary(context.Background(), domain.Credential{}, "/Contracts/1/preview")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRemoteErrorShapes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "message", status: http.StatusBadRequest, body: `{"message":"Booking already confirmed"}`, wantMsg: "Booking already confirmed"},
		{name: "title", status: http.StatusConflict, body: `{"title":"One or more validation errors occurred."}`, wantMsg: "One or more validation errors occurred."},
		{name: "message wins", status: http.StatusBadRequest, body: `{"message":"m","title":"t"}`, wantMsg: "m"},
		{name: "not json", status: http.StatusInternalServerError, body: `<html>oops</html>`, wantMsg: "request failed with status 500"},
		{name: "empty", status: http.StatusForbidden, body: ``, wantMsg: "request failed with status 403"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(ts.Close)

			ctx := domain.WithOp(context.Background(), "status.confirm")
			err := New(ts.URL, 0, nil).DoJSON(ctx, validCred, http.MethodPut, "/Bookings/1/update-status", nil, nil, nil)
			require.ErrorIs(t, err, domain.ErrRemoteRejected)

			var werr *domain.Error
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, tt.wantMsg, werr.Message)
			assert.Equal(t, tt.status, werr.StatusCode)
			assert.Equal(t, "status.confirm", werr.Op)
		})
	}
}

func TestNetworkUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := ts.URL
	ts.Close()

	err := New(base, time.Second, nil).DoJSON(context.Background(), validCred, http.MethodGet, "/Bookings", nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
}

func TestGetBinary(t *testing.T) {
	pdf := []byte("%PDF-1.7 fake")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Contracts/c-1/preview", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="hop_dong_01.pdf"`)
		_, _ = w.Write(pdf)
	}))
	t.Cleanup(ts.Close)

	resp, err := New(ts.URL, 0, nil).GetBinary(context.Background(), validCred, "/Contracts/c-1/preview")
	require.NoError(t, err)
	assert.Equal(t, pdf, resp.Data)
	assert.Equal(t, "application/pdf", resp.ContentType)
	assert.Equal(t, `attachment; filename="hop_dong_01.pdf"`, resp.ContentDisposition)
}
