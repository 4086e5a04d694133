package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pockett/agreementflow/internal/models"
)

// CollectionName is the MongoDB collection holding tracking records.
const CollectionName = "documentTracking"

// MongoStore persists tracking records in MongoDB. Guards are expressed as
// filters on FindOneAndUpdate, so check and write happen in one round trip
// against the persisted state.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore ensures the unique loanId index and returns the store. An
// empty collection name falls back to CollectionName.
func NewMongoStore(ctx context.Context, db *mongo.Database, collection string) (*MongoStore, error) {
	if collection == "" {
		collection = CollectionName
	}
	coll := db.Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "loanId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure loanId index: %w", err)
	}
	return &MongoStore{coll: coll, now: time.Now}, nil
}

func (s *MongoStore) GetOrInit(ctx context.Context, loanID, ownerID string) (*models.AgreementDocument, error) {
	if loanID == "" {
		return nil, models.NewValidationError("loanId", "must be provided")
	}
	now := s.now()
	filter := bson.M{"loanId": loanID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID().Hex(),
			"loanId":    loanID,
			"ownerId":   ownerID,
			"isSigned":  false,
			"versions":  []models.DocumentVersion{},
			"createdAt": now,
			"updatedAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc models.AgreementDocument
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to init tracking record: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) Get(ctx context.Context, loanID string) (*models.AgreementDocument, error) {
	var doc models.AgreementDocument
	err := s.coll.FindOne(ctx, bson.M{"loanId": loanID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking record: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) RecordGenerated(ctx context.Context, loanID, unsignedPath string) (*models.AgreementDocument, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc models.AgreementDocument
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"loanId": loanID},
		generatedUpdate(unsignedPath, s.now()), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record generation: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) RecordSignatureUploaded(ctx context.Context, loanID, signatureImagePath string) (*models.AgreementDocument, error) {
	filter := bson.M{"loanId": loanID, "isSigned": false}
	update := bson.M{"$set": bson.M{
		"signaturePath": signatureImagePath,
		"updatedAt":     s.now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc models.AgreementDocument
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.disambiguate(ctx, loanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record signature upload: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) RecordSigned(ctx context.Context, loanID string, rec SignedRecord) (*models.AgreementDocument, error) {
	// The isSigned guard lives in the filter: of two concurrent signs only
	// one matches, the other decodes no document.
	filter := bson.M{"loanId": loanID, "isSigned": false}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc models.AgreementDocument
	err := s.coll.FindOneAndUpdate(ctx, filter, signedUpdate(rec, s.now()), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.disambiguate(ctx, loanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record signing: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) Delete(ctx context.Context, loanID string) (*models.AgreementDocument, error) {
	var doc models.AgreementDocument
	err := s.coll.FindOneAndDelete(ctx, bson.M{"loanId": loanID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete tracking record: %w", err)
	}
	return &doc, nil
}

// disambiguate tells a missing record apart from a guard violation after a
// conditional update matched nothing.
func (s *MongoStore) disambiguate(ctx context.Context, loanID string) error {
	doc, err := s.Get(ctx, loanID)
	if err != nil {
		return err
	}
	if doc.IsSigned {
		return models.ErrAlreadySigned
	}
	return fmt.Errorf("tracking record for loan %s changed concurrently: %w", loanID, models.ErrNotFound)
}

// generatedUpdate resets a record to the unsigned defaults and logs the new
// version. Kept as a plain function so the shape is testable.
func generatedUpdate(unsignedPath string, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"unsignedDocPath": unsignedPath,
			"isSigned":        false,
			"updatedAt":       now,
		},
		"$unset": bson.M{
			"signedDocPath": "",
			"signaturePath": "",
			"signedAt":      "",
			"signingIP":     "",
			"signingDevice": "",
		},
		"$push": bson.M{
			"versions": models.DocumentVersion{Path: unsignedPath, Signed: false, CreatedAt: now},
		},
	}
}

// signedUpdate flips a record to signed with all metadata in one write.
func signedUpdate(rec SignedRecord, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"isSigned":      true,
			"signedDocPath": rec.SignedPath,
			"signedAt":      now,
			"signingIP":     rec.SigningIP,
			"signingDevice": rec.SigningDevice,
			"updatedAt":     now,
		},
		"$push": bson.M{
			"versions": models.DocumentVersion{Path: rec.SignedPath, Signed: true, CreatedAt: now},
		},
	}
}
