package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const bucket = "test-bucket"

type upload struct {
	name string
	body string
}

// fakeGCS answers the JSON API calls the store makes.
type fakeGCS struct {
	mu      sync.Mutex
	uploads []upload
	status  int
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	switch {
	case r.Method == http.MethodPost && strings.Contains(r.URL.Path, fmt.Sprintf("/b/%s/o", bucket)):
		body, _ := io.ReadAll(r.Body)
		name := r.URL.Query().Get("name")
		f.mu.Lock()
		f.uploads = append(f.uploads, upload{name: name, body: string(body)})
		f.mu.Unlock()
		fmt.Fprintf(w, `{"name": %q, "bucket": %q}`, name, bucket)
	case strings.HasSuffix(r.URL.Path, "/b/"+bucket):
		fmt.Fprintf(w, `{"name": %q}`, bucket)
	default:
		http.NotFound(w, r)
	}
}

func newClient(t *testing.T, handler http.Handler) (*storage.Client, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := storage.NewClient(context.Background(), option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv.URL
}

func TestPutObjectUploadsUnderPrefix(t *testing.T) {
	t.Parallel()

	fake := &fakeGCS{}
	client, _ := newClient(t, fake)
	store, err := New(client, Config{Bucket: bucket, Prefix: "/reports/"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "s-1/example.csv", "text/csv", strings.NewReader("url,html2text"))
	require.NoError(t, err)
	require.Equal(t, "gs://test-bucket/reports/s-1/example.csv", uri)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.uploads, 1)
	assert.Equal(t, "reports/s-1/example.csv", fake.uploads[0].name)
	assert.Contains(t, fake.uploads[0].body, "url,html2text")
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, &fakeGCS{status: http.StatusForbidden})
	store, err := New(client, Config{Bucket: bucket})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "x.csv", "text/csv", strings.NewReader("data"))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), "", "text/csv", strings.NewReader("data"))
	require.Error(t, err)
}

func TestOpenChecksBucket(t *testing.T) {
	t.Parallel()

	_, url := newClient(t, &fakeGCS{})
	store, err := Open(context.Background(), Config{Bucket: bucket},
		option.WithEndpoint(url), option.WithoutAuthentication())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, denied := newClient(t, &fakeGCS{status: http.StatusForbidden})
	_, err = Open(context.Background(), Config{Bucket: bucket},
		option.WithEndpoint(denied), option.WithoutAuthentication())
	require.ErrorContains(t, err, "attributes")
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: bucket})
	require.Error(t, err)

	client, _ := newClient(t, &fakeGCS{})
	_, err = New(client, Config{})
	require.Error(t, err)
	_, err = Open(context.Background(), Config{})
	require.Error(t, err)
}
