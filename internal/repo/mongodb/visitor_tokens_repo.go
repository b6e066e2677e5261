package mongodb

import (
	"context"
	"errors"

	"github.com/geocoder89/estategate/internal/domain/gatepass"
	"github.com/geocoder89/estategate/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type VisitorTokensRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
	prom   *observability.Prom
}

func NewVisitorTokensRepo(client *mongo.Client, db *mongo.Database, prom *observability.Prom) *VisitorTokensRepo {
	return &VisitorTokensRepo{client: client, coll: db.Collection(tokensCollection), prom: prom}
}

var deactivate = bson.M{"$set": bson.M{"is_active": false}}

func (r *VisitorTokensRepo) Create(ctx context.Context, t gatepass.VisitorToken) error {
	err := r.prom.ObserveDB("visitor_tokens.create", func() error {
		_, err := r.coll.InsertOne(ctx, t)
		return err
	})

	if mongo.IsDuplicateKeyError(err) {
		return gatepass.ErrDuplicateID
	}
	return err
}

func (r *VisitorTokensRepo) FindActiveByID(ctx context.Context, id string) (gatepass.VisitorToken, error) {
	var t gatepass.VisitorToken

	err := r.prom.ObserveDB("visitor_tokens.find_active_by_id", func() error {
		return r.coll.FindOne(ctx, bson.M{"_id": id, "is_active": true}).Decode(&t)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return gatepass.VisitorToken{}, gatepass.ErrNotFound
	}
	return t, err
}

func (r *VisitorTokensRepo) FindActiveByResident(ctx context.Context, residentID string) ([]gatepass.VisitorToken, error) {
	out := make([]gatepass.VisitorToken, 0, 1)

	err := r.prom.ObserveDB("visitor_tokens.find_active_by_resident", func() error {
		cur, err := r.coll.Find(ctx,
			bson.M{"resident_id": residentID, "is_active": true},
			options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
		)
		if err != nil {
			return err
		}
		return cur.All(ctx, &out)
	})
	if out == nil {
		out = []gatepass.VisitorToken{}
	}
	return out, err
}

func (r *VisitorTokensRepo) BulkDeactivateByResident(ctx context.Context, residentID string) (int64, error) {
	var n int64

	err := r.prom.ObserveDB("visitor_tokens.bulk_deactivate", func() error {
		res, err := r.coll.UpdateMany(ctx, bson.M{"resident_id": residentID, "is_active": true}, deactivate)
		if err != nil {
			return err
		}
		n = res.ModifiedCount
		return nil
	})
	return n, err
}

// ReplaceWithExit needs a replica set: the deactivate and insert share one transaction.
func (r *VisitorTokensRepo) ReplaceWithExit(ctx context.Context, sourceID, residentID string, exit gatepass.VisitorToken) error {
	err := r.prom.ObserveDB("visitor_tokens.replace_with_exit", func() error {
		sess, err := r.client.StartSession()
		if err != nil {
			return err
		}
		defer sess.EndSession(ctx)

		_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			res, err := r.coll.UpdateOne(sc,
				bson.M{"_id": sourceID, "resident_id": residentID, "is_active": true},
				deactivate,
			)
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, gatepass.ErrNotFound
			}

			if _, err := r.coll.InsertOne(sc, exit); err != nil {
				return nil, err
			}
			return nil, nil
		})
		return err
	})

	if mongo.IsDuplicateKeyError(err) {
		return gatepass.ErrDuplicateID
	}
	return err
}
