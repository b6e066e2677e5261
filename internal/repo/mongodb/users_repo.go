package mongodb

import (
	"context"
	"errors"

	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type UsersRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewUsersRepo(db *mongo.Database, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{coll: db.Collection(usersCollection), prom: prom}
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB(op, func() error {
		return r.coll.FindOne(ctx, filter).Decode(&u)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user.User{}, user.ErrNotFound
	}
	return u, err
}

// Emails are stored normalized, so equality is enough.
func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.M{"email": user.NormalizeEmail(email)})
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_id", bson.M{"_id": id})
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	err := r.prom.ObserveDB("users.create", func() error {
		_, err := r.coll.InsertOne(ctx, u)
		return err
	})

	if mongo.IsDuplicateKeyError(err) {
		return user.ErrEmailTaken
	}
	return err
}
