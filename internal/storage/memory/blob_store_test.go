package memory

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/storage"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "s-1/example.csv", "text/csv", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://s-1/example.csv", uri)

	payload[0] = 'C'
	got, contentType, ok := store.Object("s-1/example.csv")
	require.True(t, ok)
	require.Equal(t, "content", string(got))
	require.Equal(t, "text/csv", contentType)

	got[0] = 'X'
	again, _, _ := store.Object("s-1/example.csv")
	require.Equal(t, "content", string(again))
	require.Equal(t, []string{"s-1/example.csv"}, store.Paths())

	_, _, ok = store.Object("missing")
	require.False(t, ok)
}

func TestStatusStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewStatusStore()
	ctx := context.Background()

	_, err := store.GetSession(ctx, "s-1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	running := crawler.SessionRecord{ID: "s-1", Status: crawler.SessionStatusRunning, Started: time.Now()}
	require.NoError(t, store.PutSession(ctx, running))

	done := running
	done.Status = crawler.SessionStatusCanceled
	done.Pages = 4
	require.NoError(t, store.PutSession(ctx, done))

	got, err := store.GetSession(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, crawler.SessionStatusCanceled, got.Status)
	require.Equal(t, 4, got.Pages)

	require.Error(t, store.PutSession(ctx, running), "terminal records stay terminal")
	require.Error(t, store.PutSession(ctx, crawler.SessionRecord{}))
	require.Equal(t,
		[]crawler.SessionStatus{crawler.SessionStatusRunning, crawler.SessionStatusCanceled},
		store.History("s-1"),
	)
}
