package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method string
	Path   string
	Body   string
}

func newTestES(t *testing.T, status int, response string) (*elasticsearch.Client, func() []capturedRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return client, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func TestESRecorder_Record(t *testing.T) {
	client, requests := newTestES(t, http.StatusCreated, `{"result":"created"}`)
	rec := NewESRecorder(client, "notification-dispatches", logger.NewTestLogger(t))

	err := rec.Record(context.Background(), models.DispatchRecord{
		Kind:     models.TypeOrderAssigned,
		ActorID:  12,
		OrderID:  900,
		Channels: models.ChannelFlags{Email: true},
	})
	require.NoError(t, err)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.True(t, strings.HasPrefix(reqs[0].Path, "/notification-dispatches/_doc/"))

	var doc models.DispatchRecord
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &doc))
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.Equal(t, int64(12), doc.ActorID)
	assert.True(t, doc.Channels.Email)
}

func TestESRecorder_RecordErrorStatus(t *testing.T) {
	client, _ := newTestES(t, http.StatusServiceUnavailable, `{"error":"unavailable"}`)
	rec := NewESRecorder(client, "notification-dispatches", logger.NewNoOpLogger())

	err := rec.Record(context.Background(), models.DispatchRecord{Kind: models.TypeNewOrder})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeAuditIndexFailed))
}

func TestESRecorder_Recent(t *testing.T) {
	client, requests := newTestES(t, http.StatusOK, `{"hits":{"hits":[
		{"_source":{"id":"b","kind":"order_assigned","actorId":3,"channels":{"realTime":true}}},
		{"_source":{"id":"a","kind":"order_updated","actorId":3,"channels":{}}}
	]}}`)
	rec := NewESRecorder(client, "notification-dispatches", logger.NewNoOpLogger())

	out, err := rec.Recent(context.Background(), 3, 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.True(t, out[0].Channels.RealTime)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/notification-dispatches/_search", reqs[0].Path)
	assert.Contains(t, reqs[0].Body, `"actorId":3`)
	assert.Contains(t, reqs[0].Body, `"size":5`)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	assert.NoError(t, r.Record(context.Background(), models.DispatchRecord{}))
	out, err := r.Recent(context.Background(), 0, 10)
	assert.NoError(t, err)
	assert.Empty(t, out)
}
