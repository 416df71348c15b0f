package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/config"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmehdipour/topic-notifier/internal/service/article"
	"github.com/jmehdipour/topic-notifier/internal/service/queue"
	"github.com/jmehdipour/topic-notifier/internal/service/subscription"
	"github.com/jmehdipour/topic-notifier/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDeliveries struct {
	got repository.DeliveryFilter
}

func (f *fakeDeliveries) List(_ context.Context, flt repository.DeliveryFilter) ([]model.Delivery, error) {
	f.got = flt
	return []model.Delivery{{ID: "d1", Topic: flt.Topic, Status: model.DeliverySent, CreatedAt: time.Now().UTC()}}, nil
}

type harness struct {
	srv        *Server
	subs       *repository.SubscriptionsRepositoryImpl
	outbox     *repository.OutboxRepositoryImpl
	deliveries *fakeDeliveries
	user       model.User
}

func newHarness(t *testing.T) harness {
	t.Helper()

	db := testutil.NewDB(t)
	log := zap.NewNop()
	users := repository.NewUsersRepository(db)
	subs := repository.NewSubscriptionsRepository(db)
	courses := repository.NewCoursesRepository(db)
	outbox := repository.NewOutboxRepository(db)
	q := queue.New(outbox, config.KafkaTopics{Subscriptions: "subs", Notifications: "notes"})
	deliveries := &fakeDeliveries{}

	srv := NewServer(config.Config{}, Deps{
		Users:         users,
		Subscriptions: subs,
		Toggler:       subscription.New(db, subs, courses, q, log),
		Articles:      article.New(db, courses, repository.NewArticlesRepository(), q, log),
		Deliveries:    deliveries,
	}, log)

	testutil.InsertCourse(t, db, "Computer Science", "bsc-cs", "Math 101", "math101")
	return harness{
		srv:        srv,
		subs:       subs,
		outbox:     outbox,
		deliveries: deliveries,
		user:       testutil.InsertUser(t, db, "alice", "alice@example.com"),
	}
}

func (h harness) do(t *testing.T, method, path, apiKey, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestAuth(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(t, http.MethodGet, "/v1/subscriptions", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/v1/subscriptions", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestToggleCourse(t *testing.T) {
	h := newHarness(t)
	key := h.user.APIKey

	rec, body := h.do(t, http.MethodPost, "/v1/courses/subscribe/math101", key, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, true, body["subscribed"])
	assert.Equal(t, "math101", body["topic"])
	assert.NotEmpty(t, body["message_id"])

	// Simulate the subscribe handler having run, then toggle again.
	require.NoError(t, h.subs.Add(context.Background(), nil, &model.Subscription{UserID: h.user.ID, Topic: "math101", CreatedAt: time.Now().UTC()}))
	rec, body = h.do(t, http.MethodPost, "/v1/courses/subscribe/math101", key, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, false, body["subscribed"])

	rec, _ = h.do(t, http.MethodPost, "/v1/courses/subscribe/unknown", key, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleDegree(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(t, http.MethodPost, "/v1/degrees/subscribe/bsc-cs", h.user.APIKey, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "bsc-cs", body["topic"])

	// Course slugs are not degree topics.
	rec, _ = h.do(t, http.MethodPost, "/v1/degrees/subscribe/math101", h.user.APIKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishArticle(t *testing.T) {
	h := newHarness(t)
	key := h.user.APIKey

	rec, body := h.do(t, http.MethodPost, "/v1/courses/math101/articles", key, `{"title":"Limits","content":"..."}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "limits", body["slug"])
	assert.Len(t, body["message_ids"], 2)

	pending, err := h.outbox.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	rec, body = h.do(t, http.MethodPost, "/v1/courses/math101/articles", key, `{"content":"no title"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["fields"], "title")

	rec, _ = h.do(t, http.MethodPost, "/v1/courses/nope/articles", key, `{"title":"x","content":"y"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/v1/courses/math101/articles", key, `{bad json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSubscriptions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, topic := range []string{"math101", "bsc-cs"} {
		require.NoError(t, h.subs.Add(ctx, nil, &model.Subscription{UserID: h.user.ID, Topic: topic, CreatedAt: time.Now().UTC()}))
	}

	rec, body := h.do(t, http.MethodGet, "/v1/subscriptions", h.user.APIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	assert.Equal(t, []any{"bsc-cs", "math101"}, body["topics"])
}

func TestListDeliveries(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(t, http.MethodGet, "/v1/reports/deliveries?topic=math101&status=failed&limit=5000&offset=10", h.user.APIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	assert.Equal(t, "math101", h.deliveries.got.Topic)
	assert.Equal(t, model.DeliveryFailed, h.deliveries.got.Status)
	assert.Equal(t, 50, h.deliveries.got.Limit)
	assert.Equal(t, 10, h.deliveries.got.Offset)

	_, _ = h.do(t, http.MethodGet, "/v1/reports/deliveries?status=bogus", h.user.APIKey, "")
	assert.Empty(t, h.deliveries.got.Status)
}
