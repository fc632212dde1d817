// File: cmd/tainttrace/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/tainttrace/cmd"
	"github.com/xkilldash9x/tainttrace/internal/observability"
)

const panicLogFile = "tainttrace-panic.log"

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitFindings = 3
)

// Function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	execute     = cmd.Execute
)

// main is the entry point of the application.
func main() {
	defer handlePanic()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	osExit(code)
}

// run executes the command line and maps its error to an exit code.
func run(ctx context.Context) int {
	err := execute(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, cmd.ErrFindingsReported):
		return exitFindings
	case errors.Is(err, context.Canceled):
		// Graceful shutdown initiated by Ctrl+C.
		return exitOK
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitError
	}
}

// handlePanic records an unexpected panic in panicLogFile and exits.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(exitError)
		return
	}
	fmt.Fprintf(os.Stderr, "tainttrace crashed; details logged to %s\n", panicLogFile)
	osExit(exitError)
}
