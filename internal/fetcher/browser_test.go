package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/childcare-cli/internal/resilience"
)

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockSession) ScrollHeight(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSession) ScrollTo(ctx context.Context, y int64) error {
	return m.Called(ctx, y).Error(0)
}

func (m *mockSession) HTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockSession) Close() error { return m.Called().Error(0) }

func TestBrowserFetcher_Fetch(t *testing.T) {
	sess := &mockSession{}
	sess.On("Navigate", mock.Anything, "https://x/p1").Return(nil)
	sess.On("HTML", mock.Anything).Return("<html>p1</html>", nil)

	html, err := NewBrowserFetcher(sess, 0).Fetch(context.Background(), "https://x/p1")
	require.NoError(t, err)
	assert.Equal(t, "<html>p1</html>", html)
	sess.AssertExpectations(t)
}

func TestBrowserFetcher_NavigateFailureIsTransient(t *testing.T) {
	sess := &mockSession{}
	sess.On("Navigate", mock.Anything, "https://x/p2").Return(errors.New("net::ERR_CONNECTION_RESET"))

	_, err := NewBrowserFetcher(sess, 0).Fetch(context.Background(), "https://x/p2")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	sess.AssertNotCalled(t, "HTML", mock.Anything)
}
