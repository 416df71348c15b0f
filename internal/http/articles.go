package http

import (
	"context"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jmehdipour/topic-notifier/internal/http/middleware"
	"github.com/jmehdipour/topic-notifier/internal/service/article"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type ArticlePublisher interface {
	Publish(ctx context.Context, authorID int64, courseSlug string, d article.Draft) (article.Created, error)
}

// publishArticleHandler serves POST /courses/:slug/articles.
func publishArticleHandler(svc ArticlePublisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var d article.Draft
		if err := c.Bind(&d); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		out, err := svc.Publish(c.Request().Context(), userID, c.Param("slug"), d)
		if err != nil {
			var verrs validation.Errors
			switch {
			case errors.As(err, &verrs):
				return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": "validation failed", "fields": verrs})
			case errors.Is(err, article.ErrCourseNotFound):
				return c.JSON(http.StatusNotFound, map[string]string{"error": "course not found"})
			}

			log.Errorf("publish article: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"id":          out.Article.ID,
			"slug":        out.Article.Slug,
			"message_ids": out.MessageIDs,
		})
	}
}
