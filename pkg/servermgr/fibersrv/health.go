package fibersrv

import (
	"github.com/gofiber/fiber/v2"
	"github.com/zakodium/adonis-mongodb/pkg/dbx"
)

// MongodbHealthPath is the route registered by RegisterMongodbHealth.
const MongodbHealthPath = "/health/mongodb"

// MongodbHealth is the body of the MongoDB health endpoint.
type MongodbHealth struct {
	Healthy     bool                           `json:"healthy"`
	Primary     string                         `json:"primary"`
	Connections map[string]dbx.ConnectionState `json:"connections"`
}

// RegisterMongodbHealth adds GET /health/mongodb, reporting the state of every connection.
// It answers 503 Service Unavailable while the primary connection is not open.
func RegisterMongodbHealth(app *fiber.App, db *dbx.Database) {
	app.Get(MongodbHealthPath, func(c *fiber.Ctx) error {
		health := MongodbHealth{
			Primary:     db.PrimaryConnectionName(),
			Connections: db.Manager().States(),
		}

		health.Healthy = db.Manager().IsConnected(health.Primary)

		status := fiber.StatusOK
		if !health.Healthy {
			status = fiber.StatusServiceUnavailable
		}

		return c.Status(status).JSON(health)
	})
}
