package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/wattwise/internal/domain/models"
)

// ErrNotFound indicates the requested user aggregate does not exist.
var ErrNotFound = errors.New("user not found")

// UserRepository defines the persistence operations on the user aggregate.
// The whole document is the unit of read-modify-write.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	Replace(ctx context.Context, user *models.User) error
	FindAll(ctx context.Context) ([]models.User, error)
}

// ReportRepository persists daily energy roll-ups.
type ReportRepository interface {
	SaveDailyReport(ctx context.Context, report models.DailyEnergyReport) error
}

// MongoDBRepository implements the repository interfaces for MongoDB.
type MongoDBRepository struct {
	client      *mongo.Client
	dbName      string
	usersColl   string
	reportsColl string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:      client,
		dbName:      dbName,
		usersColl:   "users",
		reportsColl: "daily_reports",
	}, nil
}

func (r *MongoDBRepository) users() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.usersColl)
}

// FindByID loads the user aggregate for the given hex object id.
func (r *MongoDBRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}

	var user models.User
	if err := r.users().FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}

	return &user, nil
}

// FindByEmail loads a user by email address.
func (r *MongoDBRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.users().FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	return &user, nil
}

// FindByEmailOrUsername is used at registration time to detect duplicates.
func (r *MongoDBRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"username": username},
	}}

	var user models.User
	if err := r.users().FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user by email or username: %w", err)
	}

	return &user, nil
}

// Insert stores a new user aggregate and backfills the generated object id.
func (r *MongoDBRepository) Insert(ctx context.Context, user *models.User) error {
	res, err := r.users().InsertOne(ctx, user)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

// Replace upserts the whole user aggregate by id.
func (r *MongoDBRepository) Replace(ctx context.Context, user *models.User) error {
	_, err := r.users().ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return fmt.Errorf("replace user %s: %w", user.ID.Hex(), err)
	}
	return nil
}

// FindAll streams every user aggregate; used by the nightly reporting job.
func (r *MongoDBRepository) FindAll(ctx context.Context) ([]models.User, error) {
	cursor, err := r.users().Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// SaveDailyReport stores a daily energy report.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyEnergyReport) error {
	collection := r.client.Database(r.dbName).Collection(r.reportsColl)
	if _, err := collection.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to insert daily report: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
