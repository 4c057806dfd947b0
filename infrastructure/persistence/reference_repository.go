package persistence

import (
	"context"
	"errors"
	"time"

	"media-hub/domain/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ReferenceRepository keeps short-lived file references in MongoDB. Consume
// relies on FindOneAndUpdate so that exactly one concurrent caller can claim
// a reference.
type ReferenceRepository struct {
	col *mongo.Collection
}

func NewReferenceRepository(db *MongoDb) *ReferenceRepository {
	return &ReferenceRepository{col: db.Database.Collection("file_references")}
}

func (r *ReferenceRepository) Create(ctx context.Context, ref *model.FileReference) error {
	_, err := r.col.InsertOne(ctx, ref)
	return err
}

func (r *ReferenceRepository) Get(ctx context.Context, id string) (*model.FileReference, error) {
	var ref model.FileReference
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&ref)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NewDomainError(model.KindNotFound, "reference not found")
		}
		return nil, err
	}
	return &ref, nil
}

// Consume atomically claims the reference when it is still unconsumed and
// unexpired. Losing callers get a typed error describing why.
func (r *ReferenceRepository) Consume(ctx context.Context, id string, now time.Time) (*model.FileReference, error) {
	filter := bson.M{
		"_id":         id,
		"consumed_at": bson.M{"$exists": false},
		"expires_at":  bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"consumed_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ref model.FileReference
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ref)
	if err == nil {
		return &ref, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// The CAS lost; look at the document to classify the refusal.
	existing, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Consumed() {
		return nil, model.NewDomainError(model.KindReferenceInvalid, "reference already consumed")
	}
	if existing.Expired(now) {
		return nil, model.NewDomainError(model.KindReferenceExpired, "reference expired")
	}
	return nil, model.NewDomainError(model.KindReferenceInvalid, "reference not consumable")
}

// DeleteExpired removes unconsumed references past their TTL. Consumed
// references are never touched here, and keepIDs shields references still
// claimed by active jobs.
func (r *ReferenceRepository) DeleteExpired(ctx context.Context, now time.Time, keepIDs []string) (int64, error) {
	filter := bson.M{
		"consumed_at": bson.M{"$exists": false},
		"expires_at":  bson.M{"$lte": now},
	}
	if len(keepIDs) > 0 {
		filter["_id"] = bson.M{"$nin": keepIDs}
	}
	res, err := r.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
