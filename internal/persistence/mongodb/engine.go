package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/persistence"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type messageDoc struct {
	Id         string              `bson:"_id"`
	ProjectId  string              `bson:"projectId"`
	SenderId   string              `bson:"senderId"`
	SenderName string              `bson:"senderName,omitempty"`
	Content    string              `bson:"content"`
	CreatedAt  time.Time           `bson:"createdAt"`
	IsEdited   bool                `bson:"isEdited"`
	EditedAt   *time.Time          `bson:"editedAt,omitempty"`
	ReplyToId  string              `bson:"replyToId,omitempty"`
	Mentions   []string            `bson:"mentions,omitempty"`
	Reactions  map[string][]string `bson:"reactions"`
}

type userDoc struct {
	Id        string `bson:"_id"`
	Name      string `bson:"name"`
	AvatarUrl string `bson:"avatarUrl,omitempty"`
}

// Engine persists chat messages and conversation previews in the host
// application's MongoDB database.
type Engine struct {
	messages      *mongo.Collection
	conversations *mongo.Collection
	users         *mongo.Collection
}

func NewEngine(client *mongo.Client, databaseName string) *Engine {
	database := client.Database(databaseName)

	return &Engine{
		messages:      database.Collection("messages"),
		conversations: database.Collection("conversations"),
		users:         database.Collection("users"),
	}
}

func (e *Engine) Setup(ctx context.Context) error {
	roomIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "projectId", Value: 1},
			{Key: "_id", Value: -1},
		},
	}

	_, err := e.messages.Indexes().CreateOne(ctx, roomIndexModel)

	return err
}

func (e *Engine) Create(ctx context.Context, message chat.Message) (chat.Message, error) {
	_, err := e.messages.InsertOne(ctx, toDoc(message))
	if err != nil {
		return chat.Message{}, err
	}

	return message, nil
}

func (e *Engine) Update(ctx context.Context, id string, patch persistence.MessagePatch) (chat.Message, error) {
	update := bson.M{"$set": bson.M{
		"content":  patch.Content,
		"isEdited": patch.IsEdited,
		"editedAt": patch.EditedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc messageDoc
	err := e.messages.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Message{}, persistence.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}

	return fromDoc(doc), nil
}

func (e *Engine) Delete(ctx context.Context, id string) error {
	result, err := e.messages.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}

	if result.DeletedCount == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

func (e *Engine) Get(ctx context.Context, id string) (chat.Message, error) {
	var doc messageDoc
	err := e.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Message{}, persistence.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}

	return fromDoc(doc), nil
}

func (e *Engine) SetReactions(ctx context.Context, id string, reactions map[string][]string) (chat.Message, error) {
	update := bson.M{"$set": bson.M{"reactions": reactions}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc messageDoc
	err := e.messages.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Message{}, persistence.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}

	return fromDoc(doc), nil
}

func (e *Engine) List(ctx context.Context, projectId string, beforeId string, limit int64) ([]chat.Message, error) {
	filter := bson.M{"projectId": projectId}
	if beforeId != "" {
		filter["_id"] = bson.M{"$lt": beforeId}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := e.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var docs []messageDoc
	err = cursor.All(ctx, &docs)
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, len(docs))
	for i, doc := range docs {
		messages[i] = fromDoc(doc)
	}

	return messages, nil
}

func (e *Engine) TouchConversationPreview(ctx context.Context, projectId string, last chat.Message) error {
	update := bson.M{"$set": bson.M{
		"lastMessageId":      last.Id,
		"lastMessageAt":      last.CreatedAt,
		"lastMessagePreview": last.Content,
		"lastSenderId":       last.SenderId,
	}}
	opts := options.UpdateOne().SetUpsert(true)

	_, err := e.conversations.UpdateOne(ctx, bson.M{"_id": projectId}, update, opts)

	return err
}

func (e *Engine) GetDisplay(ctx context.Context, userId string) (persistence.UserDisplay, error) {
	var doc userDoc
	err := e.users.FindOne(ctx, bson.M{"_id": userId}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return persistence.UserDisplay{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.UserDisplay{}, err
	}

	return persistence.UserDisplay{
		Id:        doc.Id,
		Name:      doc.Name,
		AvatarUrl: doc.AvatarUrl,
	}, nil
}

func toDoc(message chat.Message) messageDoc {
	return messageDoc{
		Id:         message.Id,
		ProjectId:  message.ProjectId,
		SenderId:   message.SenderId,
		SenderName: message.SenderName,
		Content:    message.Content,
		CreatedAt:  message.CreatedAt,
		IsEdited:   message.IsEdited,
		EditedAt:   message.EditedAt,
		ReplyToId:  message.ReplyToId,
		Mentions:   message.Mentions,
		Reactions:  message.Reactions,
	}
}

func fromDoc(doc messageDoc) chat.Message {
	if doc.Reactions == nil {
		doc.Reactions = map[string][]string{}
	}

	return chat.Message{
		Id:         doc.Id,
		ProjectId:  doc.ProjectId,
		SenderId:   doc.SenderId,
		SenderName: doc.SenderName,
		Content:    doc.Content,
		CreatedAt:  doc.CreatedAt,
		IsEdited:   doc.IsEdited,
		EditedAt:   doc.EditedAt,
		ReplyToId:  doc.ReplyToId,
		Mentions:   doc.Mentions,
		Reactions:  doc.Reactions,
	}
}
