package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyFetchError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want FetchErrorKind
	}{
		{name: "deadline", err: fmt.Errorf("visit: %w", context.DeadlineExceeded), want: KindTimeout},
		{name: "net timeout", err: timeoutErr{}, want: KindTimeout},
		{name: "timeout text", err: errors.New("Client.Timeout exceeded while awaiting headers"), want: KindTimeout},
		{name: "refused", err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), want: KindConnectionFailed},
		{name: "passthrough", err: NewStatusError("https://example.com", 404), want: KindNonSuccessStatus},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ClassifyFetchError("https://example.com", tt.err)
			require.Equal(t, tt.want, got.Kind)
		})
	}
	require.Nil(t, ClassifyFetchError("https://example.com", nil))
}

func TestFetchErrorUnwrapAndMessage(t *testing.T) {
	t.Parallel()

	root := errors.New("boom")
	err := error(&FetchError{Kind: KindConnectionFailed, URL: "https://example.com", Err: root})
	require.ErrorIs(t, err, root)
	require.Contains(t, err.Error(), "connection_failed")

	var fe *FetchError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", NewContentTypeError("https://example.com/a", "image/png")), &fe)
	require.Equal(t, KindUnsupportedContentType, fe.Kind)
	require.Contains(t, fe.Error(), "image/png")
	require.Contains(t, NewStatusError("https://example.com", 503).Error(), "503")
}

func TestBudgetValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Budget{}.WithDefaults().Validate())
	require.Equal(t, DefaultWorkers, Budget{}.WithDefaults().Workers)
	require.ErrorIs(t, Budget{Workers: 0}.Validate(), ErrInvalidBudget)
	require.ErrorIs(t, Budget{Workers: 1, Delay: -time.Second}.Validate(), ErrInvalidBudget)
	require.ErrorIs(t, Budget{Workers: 1, MaxPages: -1}.Validate(), ErrInvalidBudget)
	require.True(t, Budget{MaxPages: 3}.Bounded())
	require.False(t, Budget{}.Bounded())
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	require.True(t, IsHTML("text/html; charset=utf-8"))
	require.True(t, IsHTML("TEXT/HTML"))
	require.False(t, IsHTML("application/json"))
	require.True(t, IsSuccess(204))
	require.False(t, IsSuccess(301))
	require.InDelta(t, 2.5, Summary{TotalPages: 2, TotalWords: 5}.AverageWords(), 1e-9)
	require.Zero(t, Summary{}.AverageWords())
}
