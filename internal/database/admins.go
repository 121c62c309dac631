package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"bikestore/internal/models"
)

var ErrAdminExists = errors.New("admin already exists")

type AdminStore struct {
	admins *mongo.Collection
}

func NewAdminStore(db *mongo.Database) *AdminStore {
	return &AdminStore{admins: db.Collection("admins")}
}

// FindByEmail returns nil when no admin has that email.
func (s *AdminStore) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	err := s.admins.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&admin)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return &admin, nil
}

func (s *AdminStore) Create(ctx context.Context, email, password string) (*models.Admin, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := models.Admin{
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		Role:         "admin",
		CreatedAt:    time.Now().UTC(),
	}
	res, err := s.admins.InsertOne(ctx, admin)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrAdminExists
	}
	if err != nil {
		return nil, fmt.Errorf("insert admin: %w", err)
	}
	admin.ID, _ = res.InsertedID.(primitive.ObjectID)
	return &admin, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
