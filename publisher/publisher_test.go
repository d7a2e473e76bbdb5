package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agnosto/autoposter/config"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, retries int) *XClient {
	t.Helper()
	log, _ := test.NewNullLogger()
	return NewXClient(url, "secret-token",
		WithLogger(log),
		WithRequestsPerMinute(0),
		WithMaxRetries(retries),
		WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
	)
}

func TestXClientPublishes(t *testing.T) {
	var got tweetRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1799","text":"hello"}}`))
	}))
	defer srv.Close()

	ok, err := newTestClient(t, srv.URL, 0).Publish(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", got.Text)
}

func TestXClientRejection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"title":"Forbidden","detail":"duplicate content"}`))
	}))
	defer srv.Close()

	ok, err := newTestClient(t, srv.URL, 3).Publish(context.Background(), "dup")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load(), "4xx other than 429 is not retried")
}

func TestXClientRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1"}}`))
	}))
	defer srv.Close()

	ok, err := newTestClient(t, srv.URL, 3).Publish(context.Background(), "retry me")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestXClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ok, err := newTestClient(t, srv.URL, 2).Publish(context.Background(), "busy")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestXClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	ok, err := newTestClient(t, url, 1).Publish(context.Background(), "offline")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestXClientCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/me" || r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"42"}}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(t, srv.URL, 0).Check(context.Background()))

	log, _ := test.NewNullLogger()
	bad := NewXClient(srv.URL, "wrong", WithLogger(log))
	assert.Error(t, bad.Check(context.Background()))
}

func TestNewSelectsMode(t *testing.T) {
	log, _ := test.NewNullLogger()

	p, err := New(config.PublisherConfig{Mode: config.PublisherModeDryRun}, log)
	require.NoError(t, err)
	dry, ok := p.(*DryRun)
	require.True(t, ok)
	published, err := dry.Publish(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, published)
	assert.Equal(t, []string{"test"}, dry.Sent())

	_, err = New(config.PublisherConfig{Mode: config.PublisherModeX}, log)
	assert.Error(t, err)

	p, err = New(config.PublisherConfig{Mode: config.PublisherModeX, XAPIBase: "https://api.x.com", XBearerToken: "t"}, log)
	require.NoError(t, err)
	assert.IsType(t, &XClient{}, p)

	_, err = New(config.PublisherConfig{Mode: "mastodon"}, log)
	assert.Error(t, err)
}
