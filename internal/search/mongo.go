package search

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const hashtagCollection = "post_hashtags"

type hashtagDoc struct {
	PostID    uint      `bson:"_id"`
	AuthorID  uint      `bson:"author_id"`
	Tags      []string  `bson:"tags"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoIndexer stores one document per tagged post.
type MongoIndexer struct {
	collection *mongo.Collection
}

func NewMongoIndexer(db *mongo.Database) *MongoIndexer {
	return &MongoIndexer{collection: db.Collection(hashtagCollection)}
}

// EnsureIndexes creates the tag lookup index.
func (m *MongoIndexer) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tags", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (m *MongoIndexer) IndexPost(ctx context.Context, doc Document) error {
	tags := ExtractHashtags(doc.Caption)
	if len(tags) == 0 {
		_, err := m.collection.DeleteOne(ctx, bson.M{"_id": doc.PostID})
		return err
	}

	_, err := m.collection.ReplaceOne(ctx,
		bson.M{"_id": doc.PostID},
		hashtagDoc{PostID: doc.PostID, AuthorID: doc.AuthorID, Tags: tags, CreatedAt: doc.CreatedAt},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("index post %d: %w", doc.PostID, err)
	}
	return nil
}

func (m *MongoIndexer) RemovePosts(ctx context.Context, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := m.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": postIDs}})
	return err
}

func (m *MongoIndexer) SearchHashtag(ctx context.Context, tag string, limit int) ([]uint, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := m.collection.Find(ctx, bson.M{"tags": NormalizeTag(tag)}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []hashtagDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.PostID)
	}
	return ids, nil
}
