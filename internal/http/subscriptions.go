package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jmehdipour/topic-notifier/internal/http/middleware"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/service/subscription"
	echo "github.com/labstack/echo/v4"
)

type Toggler interface {
	ToggleCourse(ctx context.Context, userID int64, slug string) (subscription.Result, error)
	ToggleDegree(ctx context.Context, userID int64, slug string) (subscription.Result, error)
}

type SubscriptionLister interface {
	ListByUser(ctx context.Context, userID int64, topicPrefix string) ([]model.Subscription, error)
}

type toggleFunc func(ctx context.Context, userID int64, slug string) (subscription.Result, error)

// toggleHandler serves POST /courses/subscribe/:slug and /degrees/subscribe/:slug.
func toggleHandler(toggle toggleFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		slug := strings.TrimSpace(c.Param("slug"))
		res, err := toggle(c.Request().Context(), userID, slug)
		switch {
		case errors.Is(err, subscription.ErrTopicNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		case err != nil:
			c.Logger().Errorf("toggle subscription %q: %v", slug, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusAccepted, res)
	}
}

func listSubscriptionsHandler(subs SubscriptionLister) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		rows, err := subs.ListByUser(c.Request().Context(), userID, strings.TrimSpace(c.QueryParam("prefix")))
		if err != nil {
			c.Logger().Errorf("list subscriptions: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		topics := make([]string, 0, len(rows))
		for _, s := range rows {
			topics = append(topics, s.Topic)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":  len(topics),
			"topics": topics,
		})
	}
}
