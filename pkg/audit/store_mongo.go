package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultMongoCollection is the collection MongoStore writes to.
const DefaultMongoCollection = "audit_logs"

// MongoStore keeps audit records in a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a Store on the given database. Nested snapshot
// documents decode as maps so records read back the same way they were written.
func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	if collection == "" {
		collection = DefaultMongoCollection
	}
	coll := db.Collection(collection,
		options.Collection().SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}),
	)
	return &MongoStore{coll: coll}
}

// EnsureIndexes creates the lookup indexes used by the query service.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "action", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create audit indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Append(ctx context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// AppendBatch inserts all records with a single InsertMany.
func (s *MongoStore) AppendBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return err
		}
	}
	if _, err := s.coll.InsertMany(ctx, records); err != nil {
		return fmt.Errorf("insert audit batch: %w", err)
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}

	cur, err := s.coll.Find(ctx, mongoFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	var records []Record
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode audit records: %w", err)
	}
	return records, nil
}

func (s *MongoStore) Count(ctx context.Context, f Filter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, mongoFilter(f))
	if err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return n, nil
}

// mongoFilter renders the filter as a MongoDB query document.
func mongoFilter(f Filter) bson.D {
	q := bson.D{}
	eq := func(key, value string) {
		if value != "" {
			q = append(q, bson.E{Key: key, Value: value})
		}
	}
	eq("tenant_id", f.TenantID)
	eq("user_id", f.UserID)
	eq("action", string(f.Action))
	eq("entity_type", f.EntityType)
	eq("entity_id", f.EntityID)
	eq("correlation_id", f.CorrelationID)
	if f.Success != nil {
		q = append(q, bson.E{Key: "success", Value: *f.Success})
	}

	if !f.From.IsZero() || !f.To.IsZero() {
		r := bson.D{}
		if !f.From.IsZero() {
			r = append(r, bson.E{Key: "$gte", Value: f.From})
		}
		if !f.To.IsZero() {
			r = append(r, bson.E{Key: "$lte", Value: f.To})
		}
		q = append(q, bson.E{Key: "created_at", Value: r})
	}
	return q
}
