package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/sitecrawl/internal/progress"
)

func TestPrometheusSinkRecordsSessionAndFetches(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{SessionID: "s1", TS: now, Stage: progress.StageSessionStart},
		{SessionID: "s1", TS: now, Stage: progress.StageSessionStart},
		{
			SessionID:   "s1",
			TS:          now,
			Stage:       progress.StageFetchDone,
			Site:        "example.com",
			Bytes:       1024,
			StatusClass: progress.Status2xx,
			Dur:         200 * time.Millisecond,
		},
		{SessionID: "s1", TS: now, Stage: progress.StageFetchFailed, Site: "example.com", Kind: "timeout"},
		{SessionID: "s1", TS: now, Stage: progress.StageSessionCanceled, Dur: 3 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 2.0, testutil.ToFloat64(sink.sessionsStarted))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.sessionsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.sessionsCompleted.WithLabelValues("canceled")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.fetches.WithLabelValues("example.com", "2xx")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.fetchFailures.WithLabelValues("example.com", "timeout")))
	require.InDelta(t, 1024.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("example.com")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "sitecrawl_site_fetch_duration_seconds"))
}

func TestPrometheusSinkDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{SessionID: "s1", TS: now, Stage: progress.StageSessionStart},
		{SessionID: "s1", TS: now, Stage: progress.StageFetchDone, Site: "example.com", StatusClass: progress.Status2xx, Words: 12},
		{SessionID: "s1", TS: now, Stage: progress.StageSessionDone, Pages: 1, Words: 12},
	}))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, zap.DebugLevel, entries[1].Level)
	require.Equal(t, int64(12), entries[2].ContextMap()["words"])
	require.NoError(t, sink.Close(context.Background()))
}
