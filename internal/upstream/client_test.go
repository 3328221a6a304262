package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookinggate/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	logger := zerolog.New(io.Discard)
	c, err := New(config.UpstreamConfig{BaseURL: srv.URL + "/v1/", APIKey: "tok"}, nil, &logger)
	require.NoError(t, err)
	return c
}

func TestClientSendsBearerAndJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/v1/resources", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "room", body["name"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"r1","name":"room"}`))
	})

	raw, err := c.Post(context.Background(), "resources", map[string]any{"name": "room"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"r1","name":"room"}`, string(raw))
}

func TestClientQueryEncoding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Room A", r.URL.Query().Get("name[eq]"))
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.Get(context.Background(), "resources", map[string][]string{"name[eq]": {"Room A"}})
	require.NoError(t, err)
}

func TestClientNonSuccessBecomesError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"overlaps"}`))
	})

	_, err := c.Delete(context.Background(), Path("resources", "r 1"))
	require.Error(t, err)

	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusUnprocessableEntity, ue.Status)
	assert.Equal(t, http.MethodDelete, ue.Method)
	assert.Equal(t, "overlaps", ue.Message())
	assert.True(t, IsConflict(err))
	assert.JSONEq(t, `{"message":"overlaps"}`, string(ue.JSON()))
}

func TestClientEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	raw, err := c.Delete(context.Background(), "bookings/b1")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestClientTransportErrorIsNotUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(config.UpstreamConfig{BaseURL: url, APIKey: "tok"}, nil, nil)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "resources", nil)
	require.Error(t, err)
	_, ok := StatusOf(err)
	assert.False(t, ok)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New(config.UpstreamConfig{BaseURL: "/relative"}, nil, nil)
	assert.Error(t, err)
}

func TestErrorMessageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message", &Error{Status: 400, Body: []byte(`{"message":"bad","error":"worse"}`)}, "bad"},
		{"error", &Error{Status: 400, Body: []byte(`{"error":"worse"}`)}, "worse"},
		{"plain text", &Error{Status: 502, Body: []byte("gateway down")}, "gateway down"},
		{"empty", &Error{Status: 404}, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Message())
		})
	}

	assert.JSONEq(t, `"gateway down"`, string((&Error{Status: 502, Body: []byte("gateway down")}).JSON()))
	assert.Equal(t, "plain", ErrorMessage(errors.New("plain")))
}
