// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/embedding"
	"github.com/ragforge/mcprag/pkg/errs"
)

// Upserts are chunked so one large document cannot produce an oversized
// gRPC message.
const upsertBatchSize = 100

// Qdrant adapts the go-client to the Store contract.
type Qdrant struct {
	client *qdrant.Client

	// timeout bounds each store call so a hung server cannot pin a
	// request worker indefinitely.
	timeout time.Duration
}

// NewQdrant connects over gRPC.
func NewQdrant(cfg *config.VectorStoreConfig) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, errs.E(errs.Internal, "vector.connect", "failed to create qdrant client", err)
	}
	return &Qdrant{client: client, timeout: cfg.Timeout}, nil
}

// callCtx derives the per-call deadline. A zero timeout passes the
// caller's context through unchanged.
func (q *Qdrant) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, q.timeout)
}

// EnsureCollection creates the collection with the named dense and
// sparse slots if it does not exist. The dense dimension is fixed for
// the collection's lifetime.
func (q *Qdrant) EnsureCollection(ctx context.Context, name string, denseDim int) error {
	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return errs.E(errs.Transient, "vector.ensure", "failed to check collection", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			VectorDense: {
				Size:     uint64(denseDim),
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			VectorSparse: {
				Modifier: qdrant.Modifier_Idf.Enum(),
			},
		}),
	})
	if err != nil {
		return errs.E(errs.Transient, "vector.ensure", fmt.Sprintf("failed to create collection %s", name), err)
	}
	return nil
}

func (q *Qdrant) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return false, errs.E(errs.Transient, "vector.exists", "failed to check collection", err)
	}
	return exists, nil
}

func (q *Qdrant) DeleteCollection(ctx context.Context, name string) error {
	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	if err := q.client.DeleteCollection(ctx, name); err != nil {
		return errs.E(errs.Transient, "vector.delete_collection", fmt.Sprintf("failed to delete collection %s", name), err)
	}
	return nil
}

func (q *Qdrant) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	names, err := q.client.ListCollections(ctx)
	if err != nil {
		return nil, errs.E(errs.Transient, "vector.list_collections", "failed to list collections", err)
	}
	return names, nil
}

func (q *Qdrant) CollectionPointCount(ctx context.Context, name string) (uint64, error) {
	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	info, err := q.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return 0, errs.E(errs.Transient, "vector.count", fmt.Sprintf("failed to get info for %s", name), err)
	}
	if info.PointsCount == nil {
		return 0, nil
	}
	return *info.PointsCount, nil
}

func (q *Qdrant) Upsert(ctx context.Context, collection string, points []Point) error {
	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))

		batch := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range points[start:end] {
			vectors := map[string]*qdrant.Vector{
				VectorDense: qdrant.NewVector(p.Dense...),
			}
			if !p.Sparse.IsEmpty() {
				vectors[VectorSparse] = qdrant.NewVectorSparse(p.Sparse.Indices, p.Sparse.Values)
			}
			batch = append(batch, &qdrant.PointStruct{
				Id:      qdrant.NewID(p.ID),
				Vectors: qdrant.NewVectorsMap(vectors),
				Payload: qdrant.NewValueMap(p.Payload),
			})
		}

		// Each batch gets its own deadline; a large document is many
		// calls, not one long one.
		batchCtx, cancel := q.callCtx(ctx)
		_, err := q.client.Upsert(batchCtx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         batch,
		})
		cancel()
		if err != nil {
			return errs.E(errs.Transient, "vector.upsert",
				fmt.Sprintf("failed to upsert %d points into %s", end-start, collection), err)
		}
	}
	return nil
}

func (q *Qdrant) SearchDense(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]ScoredPoint, error) {
	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          qdrant.PtrOf(VectorDense),
		Limit:          qdrant.PtrOf(uint64(opts.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.ScoreThreshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(opts.ScoreThreshold)
	}
	if len(opts.Filter) > 0 {
		query.Filter = buildFilter(opts.Filter)
	}

	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	hits, err := q.client.Query(ctx, query)
	if err != nil {
		return nil, errs.E(errs.Transient, "vector.search_dense",
			fmt.Sprintf("dense search in %s failed", collection), err)
	}
	return convertScored(hits), nil
}

func (q *Qdrant) SearchSparse(ctx context.Context, collection string, sparse embedding.SparseVector, opts SearchOptions) ([]ScoredPoint, error) {
	if sparse.IsEmpty() {
		return nil, nil
	}

	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuerySparse(sparse.Indices, sparse.Values),
		Using:          qdrant.PtrOf(VectorSparse),
		Limit:          qdrant.PtrOf(uint64(opts.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.ScoreThreshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(opts.ScoreThreshold)
	}
	if len(opts.Filter) > 0 {
		query.Filter = buildFilter(opts.Filter)
	}

	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	hits, err := q.client.Query(ctx, query)
	if err != nil {
		return nil, errs.E(errs.Transient, "vector.search_sparse",
			fmt.Sprintf("sparse search in %s failed", collection), err)
	}
	return convertScored(hits), nil
}

func (q *Qdrant) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Record, error) {
	scroll := &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		scroll.Filter = buildFilter(filter)
	}

	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	points, err := q.client.Scroll(ctx, scroll)
	if err != nil {
		return nil, errs.E(errs.Transient, "vector.scroll",
			fmt.Sprintf("scroll in %s failed", collection), err)
	}

	records := make([]Record, 0, len(points))
	for _, p := range points {
		records = append(records, Record{
			ID:      pointIDString(p.Id),
			Payload: payloadToMap(p.Payload),
		})
	}
	return records, nil
}

func (q *Qdrant) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: buildFilter(filter),
			},
		},
	})
	if err != nil {
		return errs.E(errs.Transient, "vector.delete",
			fmt.Sprintf("delete by filter in %s failed", collection), err)
	}
	return nil
}

func (q *Qdrant) HealthCheck(ctx context.Context) error {
	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	if _, err := q.client.HealthCheck(ctx); err != nil {
		return errs.E(errs.Transient, "vector.health", "qdrant health check failed", err)
	}
	return nil
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}

// buildFilter converts exact-match conditions to a must-clause filter.
func buildFilter(filter Filter) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		var match *qdrant.Match
		switch v := value.(type) {
		case string:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}
		case int:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
		case int64:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}
		case bool:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}
		default:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", v)}}
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{Key: key, Match: match},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func convertScored(points []*qdrant.ScoredPoint) []ScoredPoint {
	results := make([]ScoredPoint, 0, len(points))
	for _, p := range points {
		results = append(results, ScoredPoint{
			ID:      pointIDString(p.Id),
			Score:   p.Score,
			Payload: payloadToMap(p.Payload),
		})
	}
	return results
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	}
	return ""
}

// payloadToMap unwraps protobuf values into plain Go types.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	result := make(map[string]any, len(payload))
	for key, value := range payload {
		result[key] = valueToAny(value)
	}
	return result
}

func valueToAny(value *qdrant.Value) any {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = valueToAny(item)
		}
		return list
	case *qdrant.Value_StructValue:
		if v.StructValue == nil {
			return nil
		}
		nested := make(map[string]any, len(v.StructValue.Fields))
		for key, item := range v.StructValue.Fields {
			nested[key] = valueToAny(item)
		}
		return nested
	default:
		return nil
	}
}

var _ Store = (*Qdrant)(nil)
