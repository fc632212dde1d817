// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/config"
)

// -- Mocks --

type mockStore struct {
	mock.Mock
}

func (m *mockStore) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) PersistScan(ctx context.Context, result *schemas.ScanResult) error {
	return m.Called(ctx, result).Error(0)
}

func (m *mockStore) GetScan(ctx context.Context, scanID string) (*schemas.ScanResult, error) {
	args := m.Called(ctx, scanID)
	result, _ := args.Get(0).(*schemas.ScanResult)
	return result, args.Error(1)
}

type mockStoreProvider struct {
	mock.Mock
}

func (m *mockStoreProvider) Create(ctx context.Context, cfg *config.Config) (scanStore, func(), error) {
	args := m.Called(ctx, cfg)
	s, _ := args.Get(0).(scanStore)
	cleanup, _ := args.Get(1).(func())
	return s, cleanup, args.Error(2)
}

// -- Helpers --

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	t.Cleanup(func() { cfgFile = "" })
}

// executeCommand runs the command tree with args and returns its stdout.
func executeCommand(t *testing.T, provider storeProvider, args ...string) (string, error) {
	t.Helper()
	resetForTest(t)

	root := newRootCmd(provider)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeSources creates a small project with one SQL injection.
func writeSources(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"app/views.py": "def search(request):\n    data = request.GET.get('q')\n    cursor.execute(data)\n",
		"app/safe.py":  "from django.utils.html import escape\nmsg = escape(request.GET.get('m'))\nHttpResponse(msg)\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}
