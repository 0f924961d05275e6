// Package vectorindex holds vector index backends that live outside the
// SQLite database.
package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/core"
)

const (
	DefaultClassName = "MiniRagChunk"

	propText       = "text"
	propDocumentID = "document_id"
	propFilename   = "filename"
	propChunkIndex = "chunk_index"
	propMetadata   = "metadata_json"

	defaultTimeout   = 30 * time.Second
	alreadyExistsMsg = "already exists"
)

type WeaviateConfig struct {
	Host      string
	Scheme    string
	APIKey    string
	ClassName string
	Timeout   time.Duration
}

// Weaviate is a VectorIndex backed by a Weaviate class with no vectorizer;
// vectors are always supplied by the caller.
type Weaviate struct {
	client    *weaviate.Client
	className string
	logger    *zap.Logger
}

var _ core.VectorIndex = (*Weaviate)(nil)

func NewWeaviate(ctx context.Context, cfg WeaviateConfig, logger *zap.Logger) (*Weaviate, error) {
	if cfg.Host == "" {
		return nil, errors.New("weaviate host is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.ClassName == "" {
		cfg.ClassName = DefaultClassName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var authConfig auth.Config
	if cfg.APIKey != "" {
		authConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:             cfg.Host,
		Scheme:           cfg.Scheme,
		AuthConfig:       authConfig,
		ConnectionClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	w := &Weaviate{
		client:    client,
		className: cfg.ClassName,
		logger:    logger.With(zap.String("component", "weaviate"), zap.String("class", cfg.ClassName)),
	}
	if err := w.ensureClass(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Weaviate) ensureClass(ctx context.Context) error {
	exists, err := w.client.Schema().ClassExistenceChecker().WithClassName(w.className).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check weaviate class: %w", err)
	}
	if exists {
		return nil
	}

	err = w.client.Schema().ClassCreator().WithClass(chunkClass(w.className)).Do(ctx)
	if err != nil && !strings.Contains(err.Error(), alreadyExistsMsg) {
		return fmt.Errorf("failed to create weaviate class %s: %w", w.className, err)
	}
	w.logger.Info("Weaviate class ready")
	return nil
}

func chunkClass(name string) *models.Class {
	filterable := true
	return &models.Class{
		Class:       name,
		Description: "Document chunks with caller-supplied embeddings",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: propText, DataType: []string{"text"}},
			{Name: propDocumentID, DataType: []string{"text"}, IndexFilterable: &filterable},
			{Name: propFilename, DataType: []string{"text"}, IndexFilterable: &filterable},
			{Name: propChunkIndex, DataType: []string{"int"}},
			{Name: propMetadata, DataType: []string{"text"}},
		},
	}
}

// Upsert writes records in one batch. Objects are keyed by record ID so a
// repeated upsert replaces the previous vector.
func (w *Weaviate) Upsert(ctx context.Context, records []core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	objects := make([]*models.Object, len(records))
	for i, rec := range records {
		obj, err := toObject(w.className, rec)
		if err != nil {
			return err
		}
		objects[i] = obj
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate batch upsert failed: %w", err)
	}
	var msgs []string
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil {
			for _, e := range r.Result.Errors.Error {
				if e != nil {
					msgs = append(msgs, e.Message)
				}
			}
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("weaviate rejected %d objects: %s", len(msgs), strings.Join(msgs, "; "))
	}
	w.logger.Debug("Upserted chunks", zap.Int("count", len(records)))
	return nil
}

// Delete removes objects one by one; a missing object is not an error.
func (w *Weaviate) Delete(ctx context.Context, ids []string) error {
	var failed []string
	for _, id := range ids {
		err := w.client.Data().Deleter().
			WithClassName(w.className).
			WithID(id).
			Do(ctx)
		if err != nil && !isNotFound(err) {
			failed = append(failed, id)
			w.logger.Warn("Failed to delete chunk", zap.String("id", id), zap.Error(err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("weaviate failed to delete %d of %d objects", len(failed), len(ids))
	}
	return nil
}

func isNotFound(err error) bool {
	var clientErr *fault.WeaviateClientError
	return errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound
}

func toObject(className string, rec core.VectorRecord) (*models.Object, error) {
	if !strfmt.IsUUID(rec.ID) {
		return nil, fmt.Errorf("weaviate object id %q is not a uuid", rec.ID)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk metadata: %w", err)
	}
	props := map[string]interface{}{
		propText:     rec.Text,
		propMetadata: string(metadata),
	}
	if v, ok := rec.Metadata["document_id"].(string); ok {
		props[propDocumentID] = v
	}
	if v, ok := rec.Metadata["filename"].(string); ok {
		props[propFilename] = v
	}
	if v, ok := rec.Metadata["chunk_index"].(int); ok {
		props[propChunkIndex] = v
	}
	return &models.Object{
		Class:      className,
		ID:         strfmt.UUID(rec.ID),
		Properties: props,
		Vector:     rec.Vector,
	}, nil
}

func (w *Weaviate) Query(ctx context.Context, vector []float32, k int) ([]core.RetrievedItem, error) {
	if k <= 0 {
		return nil, nil
	}
	nearVector := (&graphql.NearVectorArgumentBuilder{}).WithVector(vector)
	result, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithNearVector(nearVector).
		WithFields(
			graphql.Field{Name: propText},
			graphql.Field{Name: propMetadata},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{
				{Name: "id"},
				{Name: "certainty"},
			}},
		).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate nearVector query failed: %w", err)
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		return nil, fmt.Errorf("weaviate graphql errors: %s", strings.Join(msgs, "; "))
	}
	return parseNearVectorResult(w.className, result.Data), nil
}

// parseNearVectorResult converts the Get.<Class> list of a GraphQL response
// into retrieval items, keeping the server's order.
func parseNearVectorResult(className string, data map[string]models.JSONObject) []core.RetrievedItem {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	rows, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	items := make([]core.RetrievedItem, 0, len(rows))
	for _, row := range rows {
		m, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		item := core.RetrievedItem{Origin: core.OriginVector}
		if v, ok := m[propText].(string); ok {
			item.Text = v
		}
		if v, ok := m[propMetadata].(string); ok && v != "" {
			var md core.Metadata
			if err := json.Unmarshal([]byte(v), &md); err == nil {
				item.Metadata = md
			}
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				item.ID = id
			}
			if certainty, ok := additional["certainty"].(float64); ok {
				item.Score = certainty
			}
		}
		if item.ID == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}
