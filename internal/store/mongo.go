package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"myplaces/internal/model"
)

// Mongo stores places as documents in a MongoDB collection.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type placeDoc struct {
	ID        string  `bson:"_id"`
	Name      string  `bson:"name"`
	Location  string  `bson:"location,omitempty"`
	Type      string  `bson:"type,omitempty"`
	ImageData []byte  `bson:"image,omitempty"`
	Rating    float64 `bson:"rating"`
}

func (d placeDoc) place() model.Place {
	return model.Place{ID: d.ID, Name: d.Name, Location: d.Location, Type: d.Type, ImageData: d.ImageData, Rating: d.Rating}
}

// NewMongo connects to uri and uses the "places" collection of database db.
func NewMongo(ctx context.Context, uri, db string) (*Mongo, error) {
	if db == "" {
		db = "myplaces"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Mongo{client: client, collection: client.Database(db).Collection("places")}, nil
}

func (m *Mongo) CreatePlace(ctx context.Context, in model.PlaceInput) (model.Place, error) {
	in, err := validate(in)
	if err != nil {
		return model.Place{}, err
	}
	p := model.Place{ID: uuid.New().String()}
	in.Apply(&p)
	doc := placeDoc{ID: p.ID, Name: p.Name, Location: p.Location, Type: p.Type, ImageData: p.ImageData, Rating: p.Rating}
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		return model.Place{}, err
	}
	return p, nil
}

func (m *Mongo) UpdatePlace(ctx context.Context, id string, in model.PlaceInput) (model.Place, error) {
	in, err := validate(in)
	if err != nil {
		return model.Place{}, err
	}
	doc := placeDoc{ID: id, Name: in.Name, Location: in.Location, Type: in.Type, ImageData: in.ImageData, Rating: in.Rating}
	res, err := m.collection.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return model.Place{}, err
	}
	if res.MatchedCount == 0 {
		return model.Place{}, ErrNotFound
	}
	return doc.place(), nil
}

func (m *Mongo) DeletePlace(ctx context.Context, id string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) GetPlace(ctx context.Context, id string) (model.Place, error) {
	var doc placeDoc
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Place{}, ErrNotFound
	}
	if err != nil {
		return model.Place{}, err
	}
	return doc.place(), nil
}

func (m *Mongo) ListPlaces(ctx context.Context, s model.Sort) ([]model.Place, error) {
	cursor, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var docs []placeDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Place, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.place())
	}
	// Sorted here rather than server-side so ties break exactly like the other stores.
	SortPlaces(out, s)
	return out, nil
}

func (m *Mongo) Ping(ctx context.Context) error { return m.client.Ping(ctx, nil) }

func (m *Mongo) Close() error { return m.client.Disconnect(context.Background()) }
