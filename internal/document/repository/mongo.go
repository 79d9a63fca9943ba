package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoRepo implements Store on MongoDB. Numeric ids come from a counters
// collection. A unit of work is a session transaction; FindForUpdate bumps a
// lock field on the document so a concurrent writer hits a write conflict
// and the driver retries its transaction from the start.
type MongoRepo struct {
	client   *mongo.Client
	docs     *mongo.Collection
	history  *mongo.Collection
	registry *mongo.Collection
	counters *mongo.Collection
}

func NewMongoRepo(ctx context.Context, db *mongo.Database) (*MongoRepo, error) {
	m := &MongoRepo{
		client:   db.Client(),
		docs:     db.Collection("documents"),
		history:  db.Collection("document_history"),
		registry: db.Collection("approval_registry"),
		counters: db.Collection("counters"),
	}
	if _, err := m.docs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}); err != nil {
		return nil, fmt.Errorf("create document indexes: %w", err)
	}
	if _, err := m.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "performedAt", Value: 1}},
	}); err != nil {
		return nil, fmt.Errorf("create history indexes: %w", err)
	}
	return m, nil
}

func (m *MongoRepo) nextID(ctx context.Context, name string) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return out.Seq, nil
}

func (m *MongoRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// ids are drawn outside the session so the counter never conflicts
		return nil, fn(sc, &mongoTx{repo: m, outer: ctx})
	}, opts)
	return err
}

func (m *MongoRepo) Create(ctx context.Context, d *document.Document) error {
	id, err := m.nextID(ctx, "documents")
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	d.ID = id
	d.CreatedAt = now
	d.UpdatedAt = now
	d.History = nil
	if _, err := m.docs.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: number %s", ErrDuplicateKey, d.Number)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id int64, withHistory bool) (*document.Document, error) {
	var d document.Document
	if err := m.docs.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	if withHistory {
		cur, err := m.history.Find(ctx, bson.M{"documentId": id},
			options.Find().SetSort(bson.D{{Key: "performedAt", Value: 1}, {Key: "_id", Value: 1}}))
		if err != nil {
			return nil, fmt.Errorf("get history %d: %w", id, err)
		}
		d.History = []document.HistoryEntry{}
		if err := cur.All(ctx, &d.History); err != nil {
			return nil, fmt.Errorf("decode history %d: %w", id, err)
		}
	}
	return &d, nil
}

func (m *MongoRepo) Search(ctx context.Context, f Filter, p PageRequest) (*Page, error) {
	p = p.Normalize()
	q := bson.M{}
	if len(f.IDs) > 0 {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Author != "" {
		q["author"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.Author) + "$", "$options": "i"}
	}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = *f.From
		}
		if f.To != nil {
			rng["$lte"] = *f.To
		}
		q["createdAt"] = rng
	}

	total, err := m.docs.CountDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	cur, err := m.docs.Find(ctx, q, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Size)))
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	items := []*document.Document{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return &Page{Items: items, Total: total, Page: p.Page, Size: p.Size}, nil
}

func (m *MongoRepo) IDsByStatus(ctx context.Context, status document.Status, limit int) ([]int64, int64, error) {
	q := bson.M{"status": status}
	total, err := m.docs.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s documents: %w", status, err)
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.docs.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s documents: %w", status, err)
	}
	var rows []struct {
		ID int64 `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, 0, err
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, total, nil
}

func (m *MongoRepo) Registry(ctx context.Context, documentID int64) (*document.RegistryEntry, error) {
	var e document.RegistryEntry
	if err := m.registry.FindOne(ctx, bson.M{"_id": documentID}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registry entry %d: %w", documentID, err)
	}
	return &e, nil
}

func (m *MongoRepo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

type mongoTx struct {
	repo  *MongoRepo
	outer context.Context
}

func (t *mongoTx) FindForUpdate(ctx context.Context, id int64) (*document.Document, error) {
	var d document.Document
	err := t.repo.docs.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"lockVersion": int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock document %d: %w", id, err)
	}
	return &d, nil
}

func (t *mongoTx) SaveDocument(ctx context.Context, d *document.Document) error {
	res, err := t.repo.docs.UpdateOne(ctx, bson.M{"_id": d.ID},
		bson.M{"$set": bson.M{"status": d.Status, "updatedAt": d.UpdatedAt}})
	if err != nil {
		return fmt.Errorf("save document %d: %w", d.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *mongoTx) SaveHistory(ctx context.Context, h *document.HistoryEntry) error {
	id, err := t.repo.nextID(t.outer, "document_history")
	if err != nil {
		return err
	}
	h.ID = id
	if _, err := t.repo.history.InsertOne(ctx, h); err != nil {
		return fmt.Errorf("save history for document %d: %w", h.DocumentID, err)
	}
	return nil
}

func (t *mongoTx) InsertRegistry(ctx context.Context, e *document.RegistryEntry) error {
	if _, err := t.repo.registry.InsertOne(ctx, e); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: approval registry entry for document %d: %v", ErrDuplicateKey, e.DocumentID, err)
		}
		return fmt.Errorf("insert registry entry for document %d: %w", e.DocumentID, err)
	}
	return nil
}
