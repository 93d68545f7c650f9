package mongodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"github.com/zakodium/adonis-mongodb/test"
)

const (
	mongoContainerImage = "mongo:7.0"
	mongoContainerPort  = "27017/tcp"
	replicaSetName      = "rs0"

	MainConnectionName = "main"
)

// MongoContainer represents the single node replica set used by integration tests.
// A replica set is required for transactions.
type MongoContainer struct {
	Container  *mongodb.MongoDBContainer
	MappedPort nat.Port
	Host       string
	URI        string
}

// StartMongoContainer starts a MongoDB single node replica set. Integration tests call it
// after checking testing.Short().
func StartMongoContainer(ctx context.Context, t *testing.T) *MongoContainer {
	t.Helper()
	test.ConfigTestRootPath()

	container, err := mongodb.Run(ctx,
		mongoContainerImage,
		mongodb.WithReplicaSet(replicaSetName),
		testcontainers.WithEnv(map[string]string{"TZ": "UTC"}),
	)
	require.NoError(t, err)
	require.NotNil(t, container)

	mappedPort, err := container.MappedPort(ctx, mongoContainerPort)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	logx.GetLogger().LogInfo(ctx, fmt.Sprintf("MongoDB running at %s:%s", host, mappedPort.Port()))

	return &MongoContainer{
		Container:  container,
		MappedPort: mappedPort,
		Host:       host,
		URI:        uri,
	}
}

// StopContainer terminates the container.
func (c *MongoContainer) StopContainer(ctx context.Context, t *testing.T) {
	t.Helper()
	logx.GetLogger().LogInfo(ctx, "Terminating the Container ....")

	timeout := 3 * time.Second
	require.NoError(t, c.Container.Stop(ctx, &timeout))
	require.NoError(t, c.Container.Terminate(ctx))
}

// ConnectionConfig returns the configuration of a connection to a fresh database of the container.
func (c *MongoContainer) ConnectionConfig(database string) dbx.ConnectionConfig {
	return dbx.ConnectionConfig{
		URL:      c.URI,
		Database: database,
		ClientOptions: map[string]any{
			"directConnection":         true,
			"serverSelectionTimeoutMS": 10000,
			"appName":                  "odm-integration-tests",
		},
	}
}

// SetupDatabase builds a Database with a single primary connection named "main".
func (c *MongoContainer) SetupDatabase(t *testing.T, database string, opts ...dbx.DatabaseOption) *dbx.Database {
	t.Helper()

	db, err := dbx.NewDatabase(dbx.MongodbConfig{
		Connection: MainConnectionName,
		Connections: map[string]dbx.ConnectionConfig{
			MainConnectionName: c.ConnectionConfig(database),
		},
	}, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if conn, err := db.Connection(); err == nil {
			if mdb, err := conn.Database(ctx); err == nil {
				_ = mdb.Drop(ctx)
			}
		}

		_ = db.CloseConnections(ctx)
	})

	return db
}
