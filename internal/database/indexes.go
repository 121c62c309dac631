package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureProductIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("products").Indexes()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("slug_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "categories", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("status_categories_createdAt"),
		},
	}

	log.Println("EnsureProductIndexes: creating slug_unique, status_categories_createdAt indexes")
	if _, err := indexes.CreateMany(ctx, models); err != nil {
		log.Println("EnsureProductIndexes: index error:", err)
		return err
	}
	log.Println("EnsureProductIndexes: product indexes created")
	return nil
}

func EnsureCategoryIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("categories").Indexes()

	slugIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetName("slug_unique").SetUnique(true),
	}

	log.Println("EnsureCategoryIndexes: creating slug_unique index")
	if _, err := indexes.CreateOne(ctx, slugIndex); err != nil {
		log.Println("EnsureCategoryIndexes: slug index error:", err)
		return err
	}
	log.Println("EnsureCategoryIndexes: slug_unique index created")
	return nil
}

func EnsureAdminIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("admins").Indexes()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	log.Println("EnsureAdminIndexes: creating email_unique index")
	if _, err := indexes.CreateOne(ctx, emailIndex); err != nil {
		log.Println("EnsureAdminIndexes: email index error:", err)
		return err
	}
	log.Println("EnsureAdminIndexes: email_unique index created")
	return nil
}

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "payment.externalPaymentId", Value: 1}},
			Options: options.Index().
				SetName("payment_externalPaymentId").
				SetPartialFilterExpression(bson.M{
					"payment.externalPaymentId": bson.M{"$gt": ""},
				}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("status_createdAt"),
		},
	}

	log.Println("EnsureOrderIndexes: creating orderNumber_unique, payment_externalPaymentId, status_createdAt indexes")
	if _, err := indexes.CreateMany(ctx, models); err != nil {
		log.Println("EnsureOrderIndexes: index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: order indexes created")
	return nil
}

// EnsureAll creates every index the service relies on. The orderNumber unique
// index is load-bearing: order number generation retries on duplicate keys.
func EnsureAll(db *mongo.Database) error {
	for _, ensure := range []func(*mongo.Database) error{
		EnsureProductIndexes,
		EnsureCategoryIndexes,
		EnsureAdminIndexes,
		EnsureOrderIndexes,
	} {
		if err := ensure(db); err != nil {
			return err
		}
	}
	return nil
}
