package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/publisher"
)

func newFakeClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishCompletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, srv := newFakeClient(t)
	_, err := client.CreateTopic(ctx, "crawls")
	require.NoError(t, err)

	pub := New(client)
	defer pub.Close()

	notice := publisher.NewCompletion(crawler.Summary{
		SessionID:  "s-1",
		BaseURL:    "https://example.com/",
		TotalPages: 3,
		TotalWords: 42,
		FinishedAt: time.Unix(1700000000, 0).UTC(),
	}, []string{"gs://bucket/s-1/example.csv"})

	id, err := pub.Publish(ctx, "crawls", notice)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "s-1", msgs[0].Attributes["session_id"])
	require.Equal(t, publisher.EventCompleted, msgs[0].Attributes["event"])

	var got publisher.Completion
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, 42, got.Words)
	require.Equal(t, []string{"gs://bucket/s-1/example.csv"}, got.Artifacts)
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, _ := newFakeClient(t)
	pub := New(client)
	defer pub.Close()

	_, err := pub.Publish(ctx, "", map[string]string{"a": "b"})
	require.Error(t, err)

	_, err = pub.Publish(ctx, "missing-topic", map[string]string{"a": "b"})
	require.ErrorContains(t, err, "publish message")

	_, err = pub.Publish(ctx, "crawls", func() {})
	require.ErrorContains(t, err, "marshal payload")

	_, err = (&Publisher{}).Publish(ctx, "crawls", "x")
	require.Error(t, err)

	_, err = Open(ctx, "")
	require.Error(t, err)
}
