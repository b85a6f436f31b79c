package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix, session, name string
		want                  string
	}{
		{"reports/", "s-1", "example.csv", "reports/s-1/example.csv"},
		{"", "s-1", "example.csv", "s-1/example.csv"},
		{"/a/b/", "", "/x.md", "a/b/x.md"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, ObjectPath(tt.prefix, tt.session, tt.name))
		})
	}
}

func TestNoopBlobStore(t *testing.T) {
	t.Parallel()

	uri, err := NoopBlobStore{}.PutObject(context.Background(), "a/b.csv", "text/csv", strings.NewReader("data"))
	require.NoError(t, err)
	require.Equal(t, "noop://a/b.csv", uri)
}
