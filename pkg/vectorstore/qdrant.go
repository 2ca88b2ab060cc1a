package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the clustered, external Store backend.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantStore adapts github.com/qdrant/go-client to the Store contract,
// grounded on the teacher's own Qdrant provider: same client
// construction, same collection-exists-before-create guard, same
// payload/value conversion for metadata round-tripping.
type QdrantStore struct {
	client *qdrant.Client
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantStore{client: client}, nil
}

func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: check collection %q: %w", name, err)
	}
	if exists {
		return nil
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	return s.client.DeleteCollection(ctx, name)
}

func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.client.CollectionExists(ctx, name)
}

func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	return s.client.ListCollections(ctx)
}

func toQdrantPayload(metadata map[string]any) (map[string]*qdrant.Value, error) {
	payload := make(map[string]*qdrant.Value, len(metadata))
	for k, v := range metadata {
		val, err := qdrant.NewValue(v)
		if err != nil {
			return nil, fmt.Errorf("qdrant: convert metadata %q: %w", k, err)
		}
		payload[k] = val
	}
	return payload, nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.CreateCollection(ctx, collection, len(docs[0].Embedding)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		metadata := d.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["content"] = d.Content
		payload, err := toQdrantPayload(metadata)
		if err != nil {
			return err
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(d.ID),
			Vectors: qdrant.NewVectors(d.Embedding...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q: %w", collection, err)
	}
	return nil
}

func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete from %q: %w", collection, err)
	}
	return nil
}

func buildQdrantFilter(filter map[string]any) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		val, err := qdrant.NewValue(value)
		if err != nil {
			continue
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   key,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: val.GetStringValue()}},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, cfg SearchConfig) ([]SearchResult, error) {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 10
	}
	req := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(cfg.IncludeMetadata),
		WithVectors:    qdrant.NewWithVectors(cfg.IncludeEmbeddings),
	}
	if len(cfg.Filter) > 0 {
		req.Filter = buildQdrantFilter(cfg.Filter)
	}
	if cfg.ScoreThreshold != nil {
		threshold := float32(*cfg.ScoreThreshold)
		req.ScoreThreshold = &threshold
	}

	points, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search %q: %w", collection, err)
	}

	out := make([]SearchResult, 0, len(points.Result))
	for _, p := range points.Result {
		out = append(out, SearchResult{
			Document: pointToDocument(p.Id, p.Payload, p.Vectors),
			Score:    float64(p.Score),
		})
	}
	return out, nil
}

func (s *QdrantStore) Get(ctx context.Context, collection string, id string) (Document, bool, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return Document{}, false, fmt.Errorf("qdrant: get %q from %q: %w", id, collection, err)
	}
	if len(points) == 0 {
		return Document{}, false, nil
	}
	p := points[0]
	return pointToDocument(p.Id, p.Payload, p.Vectors), true, nil
}

func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count %q: %w", collection, err)
	}
	return int(count), nil
}

func pointToDocument(id *qdrant.PointId, payload map[string]*qdrant.Value, vectors *qdrant.VectorsOutput) Document {
	doc := Document{Metadata: map[string]any{}}
	if id != nil {
		switch v := id.PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			doc.ID = v.Uuid
		case *qdrant.PointId_Num:
			doc.ID = fmt.Sprintf("%d", v.Num)
		}
	}
	for key, value := range payload {
		converted := qdrantValueToAny(value)
		if key == "content" {
			if s, ok := converted.(string); ok {
				doc.Content = s
				continue
			}
		}
		doc.Metadata[key] = converted
	}
	if vectors != nil {
		if vec := vectors.GetVector(); vec != nil {
			if dense, ok := vec.Vector.(*qdrant.VectorOutput_Dense); ok && dense.Dense != nil {
				doc.Embedding = dense.Dense.Data
			}
		}
	}
	return doc
}

func qdrantValueToAny(value *qdrant.Value) any {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	default:
		return nil
	}
}
