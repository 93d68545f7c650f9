package fibersrv

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/zakodium/adonis-mongodb/pkg/configmgr"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"github.com/zakodium/adonis-mongodb/pkg/servermgr"
)

// FiberServer - Fiber server.
type FiberServer struct {
	Server *fiber.App
	config configmgr.Config
}

// NewFiberServer - Fiber server constructor.
func NewFiberServer(config configmgr.Config) servermgr.Server[*fiber.App] {
	app := fiber.New(*buildFiberConfig(config))
	return &FiberServer{app, config}
}

func buildFiberConfig(config configmgr.Config) *fiber.Config {
	return &fiber.Config{
		AppName:               config.GetServiceName(),
		Concurrency:           config.GetServerConfig().Concurrency,
		DisableStartupMessage: config.GetServerConfig().DisableStartupMessage,
		Prefork:               false,
		CaseSensitive:         true,
		StrictRouting:         true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	}
}

// GetServer - return the fiber server.
func (srv *FiberServer) GetServer() *fiber.App {
	return srv.Server
}

// RunSync - Run the server sync.
func (srv *FiberServer) RunSync() {
	if srv.Server != nil {
		runServer(srv)
	}
}

// RunAsync - Run the server async.
func (srv *FiberServer) RunAsync() {
	if srv.Server != nil {
		go runServer(srv)
	}
}

// Setup - Receive a callback function setupFunc that let to configure the server.
func (srv *FiberServer) Setup(_ context.Context, setupFunc func(fiber *fiber.App)) {
	if srv.Server != nil {
		setupFunc(srv.Server)
	}
}

// Shutdown - shutdown the server.
func (srv *FiberServer) Shutdown(ctx context.Context) {
	if srv.Server == nil {
		return
	}

	if err := srv.Server.ShutdownWithContext(ctx); err != nil {
		logx.GetLogger().LogError(ctx, "Error shutting down the Server", err)
		return
	}

	logx.GetLogger().LogInfo(ctx, "Server shut down")
}

func runServer(srv *FiberServer) {
	serverAddr := fmt.Sprintf(":%s", srv.config.GetServerConfig().Port)
	logx.GetLogger().LogDebug(context.Background(), "Server listening on "+serverAddr)

	if err := srv.Server.Listen(serverAddr); err != nil {
		logx.GetLogger().LogError(context.Background(), "server stopped listening", err)
	}
}
