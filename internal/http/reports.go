package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/topic-notifier/internal/http/middleware"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	echo "github.com/labstack/echo/v4"
)

type DeliveryLister interface {
	List(ctx context.Context, f repository.DeliveryFilter) ([]model.Delivery, error)
}

// listDeliveriesHandler serves the ClickHouse delivery log.
func listDeliveriesHandler(repo DeliveryLister) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := middleware.UserIDFromCtx(c); !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		f := repository.DeliveryFilter{Limit: 50}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			if st := model.DeliveryStatus(raw); st.Valid() {
				f.Status = st
			}
		}
		f.Topic = strings.TrimSpace(c.QueryParam("topic"))

		rows, err := repo.List(c.Request().Context(), f)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
