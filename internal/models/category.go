package models

import "time"

type CategoryRef struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
	Slug string `bson:"slug" json:"slug"`
}

type Category struct {
	ID          string       `bson:"_id" json:"id"`
	Name        string       `bson:"name" json:"name"`
	Slug        string       `bson:"slug" json:"slug"`
	Description string       `bson:"description,omitempty" json:"description,omitempty"`
	ImageURL    string       `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Parent      *CategoryRef `bson:"parent,omitempty" json:"parent,omitempty"`
	CreatedAt   time.Time    `bson:"createdAt" json:"createdAt"`
}
