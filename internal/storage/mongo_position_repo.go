package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig параметры подключения к MongoDB
type MongoConfig struct {
	URI        string // например mongodb://localhost:27017
	Database   string // например isoworld
	Collection string // например positions
}

// DefaultMongoConfig параметры по умолчанию
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "isoworld",
		Collection: "positions",
	}
}

// mongoPosition документ позиции; _id - ключ сущности
type mongoPosition struct {
	Entity    string    `bson:"_id"`
	Map       string    `bson:"map"`
	X         float64   `bson:"x"`
	Y         float64   `bson:"y"`
	Layer     int       `bson:"layer"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoPositionRepo хранит позиции в коллекции MongoDB (upsert по ключу сущности)
type MongoPositionRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoPositionRepo подключается и проверяет соединение
func NewMongoPositionRepo(ctx context.Context, cfg MongoConfig) (*MongoPositionRepo, error) {
	def := DefaultMongoConfig()
	if cfg.URI == "" {
		cfg.URI = def.URI
	}
	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &MongoPositionRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Save сохраняет позицию
func (r *MongoPositionRepo) Save(ctx context.Context, entity string, pos SavedPosition) error {
	return r.BatchSave(ctx, map[string]SavedPosition{entity: pos})
}

// Load загружает позицию
func (r *MongoPositionRepo) Load(ctx context.Context, entity string) (SavedPosition, bool, error) {
	if err := validateEntity(entity); err != nil {
		return SavedPosition{}, false, err
	}

	var doc mongoPosition
	err := r.collection.FindOne(ctx, bson.M{"_id": entity}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return SavedPosition{}, false, nil
	}
	if err != nil {
		return SavedPosition{}, false, fmt.Errorf("failed to get position: %w", err)
	}

	return SavedPosition{
		Map:       doc.Map,
		X:         doc.X,
		Y:         doc.Y,
		Layer:     doc.Layer,
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, true, nil
}

// Delete удаляет позицию
func (r *MongoPositionRepo) Delete(ctx context.Context, entity string) error {
	if err := validateEntity(entity); err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": entity})
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, entity)
	}
	return nil
}

// BatchSave проверяет все записи и отправляет их одним BulkWrite
func (r *MongoPositionRepo) BatchSave(ctx context.Context, positions map[string]SavedPosition) error {
	if len(positions) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(positions))
	for entity, pos := range positions {
		p, err := prepare(entity, pos)
		if err != nil {
			return err
		}
		doc := mongoPosition{
			Entity:    entity,
			Map:       p.Map,
			X:         p.X,
			Y:         p.Y,
			Layer:     p.Layer,
			UpdatedAt: p.UpdatedAt,
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": entity}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	if _, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Close закрывает соединение
func (r *MongoPositionRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}
