package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrConcurrentReplace is returned when another writer recreated documents
// while ReplaceAll was running.
var ErrConcurrentReplace = errors.New("collection modified during replace")

// FirestoreStore keeps each collection as a Firestore collection whose
// document ids are zero-padded insertion sequence numbers.
//
// ReplaceAll deletes then recreates the collection with a BulkWriter; a
// concurrent reader can observe an empty or partial collection while it runs.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (c *FirestoreStore) Close() error {
	return c.client.Close()
}

func (c *FirestoreStore) ReplaceAll(ctx context.Context, collection string, docs []Document) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	collectionRef := c.client.Collection(collection)

	deleted, err := c.deleteAll(ctx, collectionRef)
	if err != nil {
		return err
	}

	bulkWriter := c.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for i, doc := range docs {
		job, err := bulkWriter.Create(collectionRef.Doc(sequenceID(i)), doc)
		if err != nil {
			bulkWriter.End()
			return fmt.Errorf("failed to queue create %d in %s: %w", i, collection, err)
		}
		jobs = append(jobs, job)
	}
	bulkWriter.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, classifyCreateError(err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to create %d of %d documents in %s: %w", len(errs), len(docs), collection, errors.Join(errs...))
	}

	slog.Info("Replaced Firestore collection", "collection", collection, "deleted", deleted, "created", len(docs))
	return nil
}

func (c *FirestoreStore) deleteAll(ctx context.Context, collectionRef *firestore.CollectionRef) (int, error) {
	iter := collectionRef.Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bulkWriter.End()
			return 0, fmt.Errorf("failed to iterate %s for deletion: %w", collectionRef.ID, err)
		}
		job, err := bulkWriter.Delete(doc.Ref)
		if err != nil {
			bulkWriter.End()
			return 0, fmt.Errorf("failed to queue delete for ID %s: %w", doc.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bulkWriter.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return 0, fmt.Errorf("failed to delete from %s: %w", collectionRef.ID, err)
		}
	}
	return len(jobs), nil
}

func (c *FirestoreStore) Find(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(collection, q.Filters, q.Sort); err != nil {
		return nil, err
	}

	fq := applyFilters(c.client.Collection(collection).Query, q.Filters)
	if q.Sort != nil {
		dir := firestore.Asc
		if q.Sort.Direction == Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.Sort.Field, dir)
	}
	// Ties and unsorted queries fall back to insertion order.
	fq = fq.OrderBy(firestore.DocumentID, firestore.Asc)
	if q.Skip > 0 {
		fq = fq.Offset(q.Skip)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}

	iter := fq.Documents(ctx)
	defer iter.Stop()

	out := []Document{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if status.Code(err) == codes.FailedPrecondition {
				slog.Error("Firestore query needs a composite index", "collection", collection, "error", err)
			}
			return nil, fmt.Errorf("failed to query %s: %w", collection, err)
		}
		out = append(out, doc.Data())
	}
	return out, nil
}

func (c *FirestoreStore) Count(ctx context.Context, collection string, filters []Filter) (int, error) {
	if err := validateQuery(collection, filters, nil); err != nil {
		return 0, err
	}

	fq := applyFilters(c.client.Collection(collection).Query, filters)
	countSnapshot, err := fq.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}

	countValue, ok := countSnapshot["all"]
	if !ok {
		return 0, fmt.Errorf("count aggregation result was invalid: 'all' key missing")
	}
	n, err := countFromAggregation(countValue)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// countFromAggregation reads a count aggregation value. The client has
// returned both raw int64 and *firestorepb.Value across versions.
func countFromAggregation(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case *firestorepb.Value:
		return val.GetIntegerValue(), nil
	default:
		return 0, fmt.Errorf("count aggregation result has unexpected type %T", v)
	}
}

func applyFilters(q firestore.Query, filters []Filter) firestore.Query {
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			q = q.Where(f.Field, "==", f.Value)
		case OpLTE:
			q = q.Where(f.Field, "<=", f.Value)
		case OpPrefix:
			prefix, _ := f.Value.(string)
			q = q.Where(f.Field, ">=", prefix).Where(f.Field, "<", prefix+"\uf8ff")
		case OpNotNull:
			q = q.Where(f.Field, "!=", nil)
		}
	}
	return q
}

// classifyCreateError marks AlreadyExists failures, which only happen when
// another replace recreated the ids after deleteAll.
func classifyCreateError(err error) error {
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("%w: %w", ErrConcurrentReplace, err)
	}
	return err
}

func sequenceID(i int) string {
	return fmt.Sprintf("%09d", i)
}
