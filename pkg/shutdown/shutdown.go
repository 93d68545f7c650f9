package shutdown

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
)

// CleanupFunc releases a resource before the process exits.
type CleanupFunc func(timeoutCtx context.Context) error

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs every cleanup function in order
// within a context bounded by timeout.
//
// Usage:
//
//	shutdown.WaitForShutdown(ctx, 5*time.Second,
//	    shutdown.ServerCleanup(srv.Shutdown),
//	    shutdown.DatabaseCleanup(db),
//	)
func WaitForShutdown(rootCtx context.Context, timeout time.Duration, cleanups ...CleanupFunc) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	return waitFor(rootCtx, signals, timeout, cleanups...)
}

func waitFor(rootCtx context.Context, signals <-chan os.Signal, timeout time.Duration, cleanups ...CleanupFunc) error {
	select {
	case sig := <-signals:
		logx.GetLogger().LogDebug(rootCtx, fmt.Sprintf("Interrupt signal captured: %s", sig.String()))
	case <-rootCtx.Done():
		logx.GetLogger().LogDebug(rootCtx, "Root context done, shutting down")
	}

	timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(rootCtx), timeout)
	defer cancel()

	return cleanUp(timeoutCtx, cleanups)
}

// cleanUp runs the cleanups and waits for them or for the deadline, whichever comes first.
func cleanUp(timeoutCtx context.Context, cleanups []CleanupFunc) error {
	logx.GetLogger().LogInfo(timeoutCtx, "Cleaning up all resources ....")

	done := make(chan error, 1)

	go func() {
		var errs []error

		for _, cleanup := range cleanups {
			if cleanup == nil {
				continue
			}

			if err := cleanup(timeoutCtx); err != nil {
				logx.GetLogger().LogError(timeoutCtx, "Cleanup failed", err)
				errs = append(errs, err)
			}
		}

		done <- stderrors.Join(errs...)
	}()

	select {
	case <-timeoutCtx.Done():
		logx.GetLogger().LogError(timeoutCtx, "Deadline exceeded during cleanup", timeoutCtx.Err())
		return errors.Wrap(timeoutCtx.Err(), "cleanup did not complete")
	case err := <-done:
		if err == nil {
			logx.GetLogger().LogInfo(timeoutCtx, "All resources cleaned up")
		}

		return err
	}
}

// DatabaseCleanup closes every MongoDB connection of db.
func DatabaseCleanup(db *dbx.Database) CleanupFunc {
	return func(timeoutCtx context.Context) error {
		return db.CloseConnections(timeoutCtx)
	}
}

// ServerCleanup adapts a server Shutdown method.
func ServerCleanup(shutdown func(ctx context.Context)) CleanupFunc {
	return func(timeoutCtx context.Context) error {
		shutdown(timeoutCtx)
		return nil
	}
}
