package servermgr

import (
	"context"
)

// Server - HTTP server interface. T is the underlying framework application.
type Server[T any] interface {
	RunSync()
	RunAsync()
	GetServer() T
	Setup(ctx context.Context, setupFunc func(server T))
	Shutdown(ctx context.Context)
}
