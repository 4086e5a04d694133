package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pockett/agreementflow/internal/models"
)

const (
	loansCollection = "loans"
	usersCollection = "users"
)

// MongoDirectory reads the platform's loans and users collections.
type MongoDirectory struct {
	loans *mongo.Collection
	users *mongo.Collection
}

// NewMongoDirectory wires the directory against the platform database.
func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{
		loans: db.Collection(loansCollection),
		users: db.Collection(usersCollection),
	}
}

// The platform keys these collections by ObjectID; plain-string IDs are
// accepted as a fallback for fixtures.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": id}
}

type loanDoc struct {
	ID           interface{} `bson:"_id"`
	User         interface{} `bson:"user"`
	ProductType  string      `bson:"productType"`
	Amount       float64     `bson:"amount"`
	InterestRate float64     `bson:"interestRate"`
	Term         int         `bson:"term"`
	Status       string      `bson:"status"`
	StartDate    *time.Time  `bson:"startDate"`
}

type userDoc struct {
	ID        interface{} `bson:"_id"`
	FirstName string      `bson:"firstName"`
	LastName  string      `bson:"lastName"`
	Email     string      `bson:"email"`
	Phone     string      `bson:"phone"`
	Address   string      `bson:"address"`
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (d *MongoDirectory) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc loanDoc
	err := d.loans.FindOne(callCtx, idFilter(loanID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("loan %s: %w", loanID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load loan %s: %w", loanID, err)
	}
	return &models.Loan{
		ID:           idString(doc.ID),
		UserID:       idString(doc.User),
		ProductType:  doc.ProductType,
		Amount:       doc.Amount,
		InterestRate: doc.InterestRate,
		TermMonths:   doc.Term,
		Status:       doc.Status,
		StartDate:    doc.StartDate,
	}, nil
}

func (d *MongoDirectory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc userDoc
	err := d.users.FindOne(callCtx, idFilter(userID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return &models.User{
		ID:        idString(doc.ID),
		FirstName: doc.FirstName,
		LastName:  doc.LastName,
		Email:     doc.Email,
		Phone:     doc.Phone,
		Address:   doc.Address,
	}, nil
}
