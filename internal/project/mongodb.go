package project

import (
	"context"
	"errors"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type projectDoc struct {
	Id         string   `bson:"_id"`
	Members    []string `bson:"members"`
	Moderators []string `bson:"moderators,omitempty"`
}

// MongoChecker reads membership from the host application's projects
// collection.
type MongoChecker struct {
	projects *mongo.Collection
}

func NewMongoChecker(client *mongo.Client, databaseName string) *MongoChecker {
	return &MongoChecker{
		projects: client.Database(databaseName).Collection("projects"),
	}
}

func (c *MongoChecker) IsMember(ctx context.Context, projectId string, userId string) (bool, error) {
	doc, err := c.find(ctx, projectId)
	if err != nil {
		return false, err
	}

	return slices.Contains(doc.Members, userId), nil
}

func (c *MongoChecker) IsModerator(ctx context.Context, projectId string, userId string) (bool, error) {
	doc, err := c.find(ctx, projectId)
	if err != nil {
		return false, err
	}

	return slices.Contains(doc.Moderators, userId), nil
}

func (c *MongoChecker) find(ctx context.Context, projectId string) (projectDoc, error) {
	var doc projectDoc
	err := c.projects.FindOne(ctx, bson.M{"_id": projectId}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return projectDoc{}, ErrNotFound
	}
	if err != nil {
		return projectDoc{}, err
	}

	return doc, nil
}
