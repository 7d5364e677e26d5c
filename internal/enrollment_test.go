package internal

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentClient_DevModeAllowsEveryone(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	client := NewEnrollmentClient(log, "", time.Second)
	enrolled, err := client.IsEnrolled(context.Background(), "u-1", "lecture-1")
	req.NoError(err)
	req.True(enrolled)
}

func TestEnrollmentClient_QueriesPlatform(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/enrollments", r.URL.Path)
		req.Equal("u-1", r.URL.Query().Get("user"))
		req.Equal("lecture-1", r.URL.Query().Get("lecture"))
		switch r.URL.Query().Get("user") {
		case "u-1":
			_, _ = w.Write([]byte(`{"enrolled":true}`))
		default:
			_, _ = w.Write([]byte(`{"enrolled":false}`))
		}
	}))
	defer server.Close()

	client := NewEnrollmentClient(log, server.URL, time.Second)
	enrolled, err := client.IsEnrolled(context.Background(), "u-1", "lecture-1")
	req.NoError(err)
	req.True(enrolled)
}

func TestEnrollmentClient_NotEnrolledAndFailures(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("user") {
		case "u-denied":
			_, _ = w.Write([]byte(`{"enrolled":false}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewEnrollmentClient(log, server.URL, time.Second)

	enrolled, err := client.IsEnrolled(context.Background(), "u-denied", "lecture-1")
	req.NoError(err)
	req.False(enrolled)

	// A platform failure is an error, never a silent allow
	_, err = client.IsEnrolled(context.Background(), "u-error", "lecture-1")
	req.Error(err)
}
