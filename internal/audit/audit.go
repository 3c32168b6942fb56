// Package audit records every notification dispatch in Elasticsearch.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
)

// Recorder stores dispatch records. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, rec models.DispatchRecord) error
	Recent(ctx context.Context, actorID int64, limit int) ([]models.DispatchRecord, error)
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, models.DispatchRecord) error { return nil }

func (Nop) Recent(context.Context, int64, int) ([]models.DispatchRecord, error) { return nil, nil }

// ESRecorder indexes one document per dispatch.
type ESRecorder struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewESRecorder(client *elasticsearch.Client, index string, log logger.Logger) *ESRecorder {
	return &ESRecorder{
		client: client,
		index:  index,
		logger: logger.ForComponent(log, "audit"),
	}
}

// Record assigns an id and creation time when missing and indexes rec.
func (r *ESRecorder) Record(ctx context.Context, rec models.DispatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return apperrors.NewAuditIndexFailedError(err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(body),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(rec.ID),
	)
	if err != nil {
		return apperrors.NewAuditIndexFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return apperrors.NewAuditIndexFailedError(fmt.Errorf("index %s: %s: %s", r.index, res.Status(), msg))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.DispatchRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Recent returns the newest records for actorID, or for every actor when
// actorID is zero.
func (r *ESRecorder) Recent(ctx context.Context, actorID int64, limit int) ([]models.DispatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := map[string]interface{}{
		"size": limit,
		"sort": []interface{}{map[string]interface{}{"createdAt": map[string]string{"order": "desc"}}},
	}
	if actorID > 0 {
		query["query"] = map[string]interface{}{"term": map[string]interface{}{"actorId": actorID}}
	} else {
		query["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, apperrors.NewAuditIndexFailedError(err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewAuditIndexFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewAuditIndexFailedError(fmt.Errorf("search %s: %s", r.index, res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewAuditIndexFailedError(err)
	}

	out := make([]models.DispatchRecord, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
