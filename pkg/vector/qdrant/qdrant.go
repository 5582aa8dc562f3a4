// Package qdrant provides a vector.Driver backed by Qdrant's gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/vector"
)

const (
	// DefaultCollectionName is the collection papers are stored in.
	DefaultCollectionName = "innotree_papers"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	// payload keys reserved by the driver
	docIDKey   = "doc_id"
	contentKey = "content"
)

// pointIDSpace namespaces the UUIDs derived from document IDs; Qdrant only
// accepts UUIDs or integers as point IDs.
var pointIDSpace = uuid.MustParse("6f1d2c1e-3a0b-4f7e-9b55-2f0a4e8d9c11")

// api is the subset of *pb.Client the driver uses.
type api interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *pb.CreateCollection) error
	Upsert(ctx context.Context, req *pb.UpsertPoints) (*pb.UpdateResult, error)
	Query(ctx context.Context, req *pb.QueryPoints) ([]*pb.ScoredPoint, error)
	Get(ctx context.Context, req *pb.GetPoints) ([]*pb.RetrievedPoint, error)
	Delete(ctx context.Context, req *pb.DeletePoints) (*pb.UpdateResult, error)
	Close() error
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// Dimensions sizes the collection when it has to be created.
	Dimensions uint64
}

// Driver implements vector.Driver on a Qdrant collection with cosine
// distance.
type Driver struct {
	client     api
	collection string
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and creates the collection if needed.
func NewDriver(ctx context.Context, c Config, log *slog.Logger) (*Driver, error) {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	client, err := pb.NewClient(&pb.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	d, err := newDriver(ctx, client, c, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	return d, nil
}

func newDriver(ctx context.Context, client api, c Config, log *slog.Logger) (*Driver, error) {
	d := &Driver{
		client:     client,
		collection: c.CollectionName,
		logger:     logger.OrNop(log),
	}
	if d.collection == "" {
		d.collection = DefaultCollectionName
	}

	exists, err := client.CollectionExists(ctx, d.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, d.collection, err)
	}
	if !exists {
		if c.Dimensions == 0 {
			return nil, fmt.Errorf("qdrant collection %q does not exist and dimensions are not configured", d.collection)
		}
		err := client.CreateCollection(ctx, &pb.CreateCollection{
			CollectionName: d.collection,
			VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
				Size:     c.Dimensions,
				Distance: pb.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("creating collection %q: %w", d.collection, err)
		}
		d.logger.Info("created qdrant collection", "collection", d.collection, "dimensions", c.Dimensions)
	}
	return d, nil
}

func pointID(docID string) *pb.PointId {
	return pb.NewID(uuid.NewSHA1(pointIDSpace, []byte(docID)).String())
}

func pointIDs(ids []string) []*pb.PointId {
	out := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		out[i] = pointID(id)
	}
	return out
}

// Add upserts documents. Metadata is stored as payload next to the
// document ID and content.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(docs))
	for i, doc := range docs {
		payload := make(map[string]any, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			payload[k] = v
		}
		payload[docIDKey] = doc.ID
		payload[contentKey] = doc.Content

		values, err := pb.TryValueMap(payload)
		if err != nil {
			return fmt.Errorf("encoding payload for doc %s: %w", doc.ID, err)
		}
		points[i] = &pb.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: pb.NewVectorsDense(doc.Embedding),
			Payload: values,
		}
	}

	_, err := d.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: d.collection,
		Wait:           pb.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}
	d.logger.Debug("added documents to qdrant", "count", len(docs))
	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	points, err := d.client.Query(ctx, &pb.QueryPoints{
		CollectionName: d.collection,
		Query:          pb.NewQueryDense(embedding),
		Limit:          pb.PtrOf(uint64(topK)),
		WithPayload:    pb.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, len(points))
	for i, p := range points {
		results[i] = vector.QueryResult{
			Document: fromPayload(p.GetPayload()),
			Score:    p.GetScore(),
		}
	}
	d.logger.Debug("queried qdrant", "results", len(results))
	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	points, err := d.client.Get(ctx, &pb.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs(ids),
		WithPayload:    pb.NewWithPayload(true),
		WithVectors:    pb.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, len(points))
	for i, p := range points {
		docs[i] = fromPayload(p.GetPayload())
		if dense := p.GetVectors().GetVector().GetDenseVector(); dense != nil {
			docs[i].Embedding = dense.GetData()
		}
	}
	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := d.client.Delete(ctx, &pb.DeletePoints{
		CollectionName: d.collection,
		Wait:           pb.PtrOf(true),
		Points:         pb.NewPointsSelectorIDs(pointIDs(ids)),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	d.logger.Debug("deleted documents from qdrant", "count", len(ids))
	return nil
}

// Close tears down the gRPC connections.
func (d *Driver) Close() error {
	return d.client.Close()
}

func fromPayload(payload map[string]*pb.Value) vector.Document {
	doc := vector.Document{}
	for k, v := range payload {
		switch k {
		case docIDKey:
			doc.ID = v.GetStringValue()
		case contentKey:
			doc.Content = v.GetStringValue()
		default:
			if doc.Metadata == nil {
				doc.Metadata = make(map[string]any)
			}
			doc.Metadata[k] = fromValue(v)
		}
	}
	return doc
}

func fromValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	case *pb.Value_StructValue:
		out := make(map[string]any)
		for k, f := range kind.StructValue.GetFields() {
			out[k] = fromValue(f)
		}
		return out
	case *pb.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, e := range values {
			out[i] = fromValue(e)
		}
		return out
	default:
		return nil
	}
}

var _ vector.Driver = (*Driver)(nil)
