// Package mongo persists bundles to MongoDB, one collection per record set.
//
// Records are upserted by id, so writing the same bundle twice leaves one
// copy. Each document carries its position in the bundle so Load returns
// records in the order they were written.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/stellify/stellify/core/recordfmt"
)

const (
	defaultTimeout = 30 * time.Second

	filesSet      = "files"
	methodsSet    = "methods"
	statementsSet = "statements"
	clausesSet    = "clauses"
	elementsSet   = "elements"
)

// Sets lists the record sets in write order.
var Sets = []string{filesSet, methodsSet, statementsSet, clausesSet, elementsSet}

// Options configures a Sink.
type Options struct {
	Client   *mongo.Client
	Database string
	// Prefix is prepended to every collection name.
	Prefix string
	// Replace drops the collections before each write instead of merging
	// into what is there.
	Replace bool
	Timeout time.Duration
}

// Sink writes bundles to a MongoDB database.
type Sink struct {
	db      *mongo.Database
	prefix  string
	replace bool
	timeout time.Duration
}

// Connect dials uri and checks the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	return client, nil
}

// New returns a sink writing to opts.Database.
func New(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Sink{
		db:      opts.Client.Database(opts.Database),
		prefix:  opts.Prefix,
		replace: opts.Replace,
		timeout: timeout,
	}, nil
}

func (s *Sink) collection(set string) *mongo.Collection {
	return s.db.Collection(s.prefix + set)
}

// Write upserts every record of b.
func (s *Sink) Write(ctx context.Context, b *recordfmt.Bundle) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.replace {
		if err := s.Drop(ctx); err != nil {
			return err
		}
	}

	writes := []struct {
		set    string
		models []mongo.WriteModel
	}{
		{filesSet, models(b.Files, fileDoc)},
		{methodsSet, models(b.Methods, methodDoc)},
		{statementsSet, models(b.Statements, statementDoc)},
		{clausesSet, models(b.Clauses, clauseDoc)},
		{elementsSet, models(b.Elements, elementDoc)},
	}
	for _, w := range writes {
		if len(w.models) == 0 {
			continue
		}
		_, err := s.collection(w.set).BulkWrite(ctx, w.models, options.BulkWrite().SetOrdered(false))
		if err != nil {
			return fmt.Errorf("mongodb write %s: %w", w.set, err)
		}
	}
	return nil
}

// Drop removes every record collection.
func (s *Sink) Drop(ctx context.Context) error {
	for _, set := range Sets {
		if err := s.collection(set).Drop(ctx); err != nil {
			return fmt.Errorf("mongodb drop %s: %w", set, err)
		}
	}
	return nil
}

// Load reads every stored record back into a bundle.
func (s *Sink) Load(ctx context.Context) (*recordfmt.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	b := &recordfmt.Bundle{Format: recordfmt.Version}
	var err error
	if b.Files, err = load(ctx, s.collection(filesSet), fromFileDoc); err != nil {
		return nil, err
	}
	if b.Methods, err = load(ctx, s.collection(methodsSet), fromMethodDoc); err != nil {
		return nil, err
	}
	if b.Statements, err = load(ctx, s.collection(statementsSet), fromStatementDoc); err != nil {
		return nil, err
	}
	if b.Clauses, err = load(ctx, s.collection(clausesSet), fromClauseDoc); err != nil {
		return nil, err
	}
	if b.Elements, err = load(ctx, s.collection(elementsSet), fromElementDoc); err != nil {
		return nil, err
	}
	return b, nil
}

func models[R any, D interface{ key() string }](recs []R, doc func(R, int) D) []mongo.WriteModel {
	out := make([]mongo.WriteModel, 0, len(recs))
	for i, r := range recs {
		d := doc(r, i)
		out = append(out, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: d.key()}}).
			SetReplacement(d).
			SetUpsert(true))
	}
	return out
}

func load[D any, R any](ctx context.Context, coll *mongo.Collection, rec func(*D) R) ([]R, error) {
	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "ord", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb find %s: %w", coll.Name(), err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb decode %s: %w", coll.Name(), err)
	}
	out := make([]R, len(docs))
	for i := range docs {
		out[i] = rec(&docs[i])
	}
	return out, nil
}
