package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Classroom/internal/core"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		err  error
	}{
		{name: "bare string", raw: `"abc"`, want: "abc"},
		{name: "wrapped token", raw: `{"token":"abc"}`, want: "abc"},
		{name: "nested token", raw: `{"token":{"token":"abc"}}`, want: "abc"},
		{name: "nested jwt", raw: `{"token":{"jwt":"abc"}}`, want: "abc"},
		{name: "nested prefers token over jwt", raw: `{"token":{"token":"abc","jwt":"xyz"}}`, want: "abc"},
		{name: "empty string", raw: `""`, err: core.ErrNoToken},
		{name: "empty wrapped", raw: `{"token":""}`, err: core.ErrNoToken},
		{name: "empty nested", raw: `{"token":{}}`, err: core.ErrNoToken},
		{name: "missing field", raw: `{"accessToken":"abc"}`, err: core.ErrNoToken},
		{name: "not json", raw: `???`, err: core.ErrNoToken},
		{name: "null token", raw: `{"token":null}`, err: core.ErrNoToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize([]byte(tc.raw))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Token)
		})
	}
}

func TestClient_Fetch(t *testing.T) {
	req := require.New(t)
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/api/sfu/token", r.URL.Path)
		req.NoError(json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-123"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL)
	got, err := c.Fetch(context.Background(), "R1", "teacher-1700000000000", "Ada")
	req.NoError(err)
	req.Equal("tok-123", got.Token)
	req.Equal("R1", gotBody["roomId"])
	req.Equal("teacher-1700000000000", gotBody["identity"])
	req.Equal("Ada", gotBody["name"])
}

func TestClient_Fetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(srv.URL).Fetch(context.Background(), "R1", "student-1", "Pia")
	require.Error(t, err)
}

func TestClient_Fetch_NoUsableToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":""}`))
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(srv.URL).Fetch(context.Background(), "R1", "student-1", "Pia")
	require.ErrorIs(t, err, core.ErrNoToken)
}
