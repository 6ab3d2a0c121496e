package recommend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEvents struct {
	all        []models.EventCard
	interested []models.EventCard
}

func (s *stubEvents) Query(_ context.Context, q repository.EventQuery) ([]models.EventCard, error) {
	if q.Interested != nil && *q.Interested {
		return s.interested, nil
	}
	return s.all, nil
}

type stubUsers struct{}

func (stubUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	if id != 1 {
		return nil, nil
	}
	return &models.User{ID: 1}, nil
}

func (stubUsers) Tags(context.Context, int64) ([]string, error) {
	return []string{"music", "hiking"}, nil
}

func toolCallResponse(args string) string {
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []any{map[string]any{
					"id":   "call_1",
					"type": "function",
					"function": map[string]any{
						"name":      toolName,
						"arguments": args,
					},
				}},
			},
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newTestRecommender(t *testing.T, handler http.HandlerFunc, events *stubEvents) *Recommender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "gpt-4"}, events, stubUsers{}, zap.NewNop())
}

func TestRecommendTrustsOnlyIDs(t *testing.T) {
	var body map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		// 2 is already interesting to the user; 99 is not a candidate.
		_, _ = io.WriteString(w, toolCallResponse(`{"events":[{"id":1,"title":"made up"},{"id":2},{"id":99}]}`))
	}
	events := &stubEvents{
		all:        []models.EventCard{{ID: 1, Title: "Jazz night"}, {ID: 2, Title: "Trail run"}, {ID: 3, Title: "Tax seminar"}},
		interested: []models.EventCard{{ID: 2, Title: "Trail run"}},
	}
	r := newTestRecommender(t, handler, events)

	got, err := r.Recommend(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "Jazz night", got[0].Title)

	assert.Equal(t, "gpt-4", body["model"])
	choice := body["tool_choice"].(map[string]any)
	assert.Equal(t, toolName, choice["function"].(map[string]any)["name"])
}

func TestRecommendDisabledWithoutKey(t *testing.T) {
	r := New(Config{}, &stubEvents{}, stubUsers{}, zap.NewNop())
	_, err := r.Recommend(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestRecommendUnknownUser(t *testing.T) {
	r := newTestRecommender(t, func(http.ResponseWriter, *http.Request) {}, &stubEvents{})
	_, err := r.Recommend(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRecommendNoCandidatesSkipsModel(t *testing.T) {
	var calls int32
	r := newTestRecommender(t, func(http.ResponseWriter, *http.Request) { atomic.AddInt32(&calls, 1) }, &stubEvents{})

	got, err := r.Recommend(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRecommendBreakerOpens(t *testing.T) {
	var calls int32
	handler := func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}
	r := newTestRecommender(t, handler, &stubEvents{all: []models.EventCard{{ID: 1}}})

	for i := 0; i < 3; i++ {
		_, err := r.Recommend(context.Background(), 1)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := r.Recommend(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRecommendCanceledCallerKeepsBreakerClosed(t *testing.T) {
	handler := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, toolCallResponse(`{"events":[{"id":1}]}`))
	}
	r := newTestRecommender(t, handler, &stubEvents{all: []models.EventCard{{ID: 1}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := r.Recommend(ctx, 1)
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, r.breaker.State())

	got, err := r.Recommend(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
