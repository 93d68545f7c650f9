package odm

import (
	"context"

	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CountersCollection stores one counter per auto-increment model, keyed by collection name.
const CountersCollection = "__adonis_mongodb_counters"

type counter struct {
	ID    string `bson:"_id"`
	Count int64  `bson:"count"`
}

// nextSequence atomically increments and returns the counter of collection.
// Two concurrent upserts of a missing counter can race on the unique _id; the loser retries once.
func nextSequence(ctx context.Context, db *mongo.Database, collection string) (int64, error) {
	counters := db.Collection(CountersCollection)

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var (
		c   counter
		err error
	)

	for attempt := 0; attempt < 2; attempt++ {
		err = counters.FindOneAndUpdate(ctx,
			bson.M{"_id": collection},
			bson.M{"$inc": bson.M{"count": int64(1)}},
			opts,
		).Decode(&c)
		if err == nil {
			return c.Count, nil
		}

		if !mongo.IsDuplicateKeyError(err) {
			break
		}
	}

	return 0, errorx.NewDatabaseErrorWrapper(err, "error incrementing counter of %s", collection)
}
