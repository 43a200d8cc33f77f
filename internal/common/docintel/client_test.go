package docintel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/logger"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	return NewClient(Config{
		BaseURL:       url,
		APIKey:        "secret",
		Timeout:       timeout,
		RetryCount:    2,
		RetryWaitTime: time.Millisecond,
	}, logger.NewTestLogger(t))
}

func TestFetchExtractions_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/doc-1/extractions", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"documentId":"doc-1","extractions":[{"extractionId":"ext-1"},{"extractionId":"ext-2"}]}`))
	}))
	defer server.Close()

	got, err := newTestClient(t, server.URL, time.Second).FetchExtractions(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"extractionId":"ext-1"}`, string(got[0]))
}

func TestFetchExtractions_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"documentId":"doc-1","extractions":[]}`))
	}))
	defer server.Close()

	got, err := newTestClient(t, server.URL, time.Second).FetchExtractions(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchExtractions_Failures(t *testing.T) {
	tests := []struct {
		name         string
		handler      http.HandlerFunc
		timeout      time.Duration
		expectedCode errors.ErrorCode
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			timeout:      time.Second,
			expectedCode: errors.ErrCodeDocIntelUnavailable,
		},
		{
			name: "persistent server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			timeout:      time.Second,
			expectedCode: errors.ErrCodeDocIntelUnavailable,
		},
		{
			name: "slow collaborator",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(500 * time.Millisecond):
				}
			},
			timeout:      20 * time.Millisecond,
			expectedCode: errors.ErrCodeDocIntelTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newTestClient(t, server.URL, tt.timeout).FetchExtractions(context.Background(), "doc-9")
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.expectedCode), "got %v", err)
		})
	}
}
