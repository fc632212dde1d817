package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/tainttrace/cmd"
)

func stubExecute(t *testing.T, err error) {
	t.Helper()
	original := execute
	execute = func(context.Context) error { return err }
	t.Cleanup(func() { execute = original })
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"findings", fmt.Errorf("2 %w", cmd.ErrFindingsReported), exitFindings},
		{"cancelled", fmt.Errorf("scan failed: %w", context.Canceled), exitOK},
		{"failure", errors.New("boom"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubExecute(t, tt.err)
			assert.Equal(t, tt.want, run(context.Background()))
		})
	}
}

func TestHandlePanic(t *testing.T) {
	var written string
	var exitCode = -1
	origWrite, origExit := osWriteFile, osExit
	t.Cleanup(func() { osWriteFile, osExit = origWrite, origExit })

	osWriteFile = func(name string, data []byte, perm os.FileMode) error {
		assert.Equal(t, panicLogFile, name)
		written = string(data)
		return nil
	}
	osExit = func(code int) { exitCode = code }

	func() {
		defer handlePanic()
		panic("walker exploded")
	}()

	require.Equal(t, exitError, exitCode)
	assert.True(t, strings.HasPrefix(written, "panic: walker exploded"))
	assert.Contains(t, written, "goroutine")
}

func TestHandlePanicWriteFailure(t *testing.T) {
	var exitCode = -1
	origWrite, origExit := osWriteFile, osExit
	t.Cleanup(func() { osWriteFile, osExit = origWrite, origExit })

	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
	osExit = func(code int) { exitCode = code }

	func() {
		defer handlePanic()
		panic("again")
	}()
	assert.Equal(t, exitError, exitCode)
}

func TestHandlePanicWithoutPanic(t *testing.T) {
	called := false
	origExit := osExit
	t.Cleanup(func() { osExit = origExit })
	osExit = func(int) { called = true }

	handlePanic()
	assert.False(t, called)
}
