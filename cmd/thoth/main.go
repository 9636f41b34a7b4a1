package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/thoth-viewer/thoth/internal/logging"
)

const Version = "0.4.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr)
	err := newRootCmd(app).ExecuteContext(ctx)
	logging.Shutdown()
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if app.logDir != "" {
		dumpPath := filepath.Join(app.logDir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405")))
		if dumpErr := logging.DumpRingBuffer(dumpPath); dumpErr == nil {
			fmt.Fprintf(os.Stderr, "Recent log lines written to %s\n", dumpPath)
		}
	}
	os.Exit(1)
}
