package pushconfig

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/a2aserver/a2a-core/a2a/types"
)

// MongoStore is the supplemental, durable push-notification config backend:
// one document per (TaskId, Id) pair in the "push_configs" collection,
// addressed by a compound "_id" so Set can use a single upsert.
type MongoStore struct {
	collection *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// configDocument is the MongoDB document representation of a
// PushNotificationConfig.
type configDocument struct {
	ID             configKey `bson:"_id"`
	URL            string    `bson:"url"`
	Token          string    `bson:"token,omitempty"`
	Authentication bson.Raw  `bson:"authentication,omitempty"`
}

// configKey is the compound primary key identifying one config document.
type configKey struct {
	TaskID string `bson:"taskId"`
	ID     string `bson:"id"`
}

// NewMongoStore constructs a MongoStore using collection, which should
// typically be named "push_configs" on a connected MongoDB client. Callers
// are responsible for creating a unique index on "_id" (the default MongoDB
// behavior for any compound subdocument used as _id already enforces this).
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

func (s *MongoStore) Set(ctx context.Context, taskID string, config types.PushNotificationConfig) (types.PushNotificationConfig, error) {
	if config.ID == "" {
		config.ID = bson.NewObjectID().Hex()
	}
	doc := configDocument{
		ID:             configKey{TaskID: taskID, ID: config.ID},
		URL:            config.URL,
		Token:          config.Token,
		Authentication: bson.Raw(config.Authentication),
	}
	opts := options.Replace().SetUpsert(true)
	key := configKey{TaskID: taskID, ID: config.ID}
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return types.PushNotificationConfig{}, fmt.Errorf("mongodb upsert push config %s/%s: %w", taskID, config.ID, err)
	}
	return config, nil
}

func (s *MongoStore) List(ctx context.Context, taskID string) ([]types.PushNotificationConfig, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"_id.taskId": taskID})
	if err != nil {
		return nil, fmt.Errorf("mongodb list push configs for %s: %w", taskID, err)
	}
	defer cursor.Close(ctx)

	var configs []types.PushNotificationConfig
	for cursor.Next(ctx) {
		var doc configDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode push config: %w", err)
		}
		configs = append(configs, fromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb cursor error listing push configs: %w", err)
	}
	return configs, nil
}

func (s *MongoStore) Get(ctx context.Context, taskID, id string) (types.PushNotificationConfig, bool, error) {
	var doc configDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": configKey{TaskID: taskID, ID: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.PushNotificationConfig{}, false, nil
	}
	if err != nil {
		return types.PushNotificationConfig{}, false, fmt.Errorf("mongodb get push config %s/%s: %w", taskID, id, err)
	}
	return fromDocument(doc), true, nil
}

func (s *MongoStore) Delete(ctx context.Context, taskID, id string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": configKey{TaskID: taskID, ID: id}})
	if err != nil {
		return fmt.Errorf("mongodb delete push config %s/%s: %w", taskID, id, err)
	}
	return nil
}

func fromDocument(doc configDocument) types.PushNotificationConfig {
	return types.PushNotificationConfig{
		ID:             doc.ID.ID,
		URL:            doc.URL,
		Token:          doc.Token,
		Authentication: []byte(doc.Authentication),
	}
}
