package article

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmehdipour/topic-notifier/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var ErrCourseNotFound = errors.New("course not found")

// Enqueuer writes a message to the dispatch queue inside tx.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx *sqlx.Tx, msg model.Message) (string, error)
}

// Draft is an article as submitted by its author.
type Draft struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
}

func (d Draft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&d.Content, validation.Required),
	)
}

// Created is the stored article plus the ids of the queued notifications.
type Created struct {
	Article    model.Article `json:"article"`
	MessageIDs []string      `json:"message_ids"`
}

type Service struct {
	db       *sqlx.DB
	courses  repository.CoursesRepository
	articles repository.ArticlesRepository
	queue    Enqueuer
	log      *zap.Logger
	policy   *bluemonday.Policy
	now      func() time.Time
}

func New(
	db *sqlx.DB,
	courses repository.CoursesRepository,
	articles repository.ArticlesRepository,
	queue Enqueuer,
	log *zap.Logger,
) *Service {
	return &Service{
		db:       db,
		courses:  courses,
		articles: articles,
		queue:    queue,
		log:      log,
		policy:   bluemonday.StrictPolicy(),
		now:      time.Now,
	}
}

// Publish stores the article and, in the same transaction, queues one
// PublishTopic for the course topic and one for its degree topic.
// Both are queued on every successful save, whether or not the draft is published.
func (s *Service) Publish(ctx context.Context, authorID int64, courseSlug string, d Draft) (Created, error) {
	if err := d.Validate(); err != nil {
		return Created{}, err
	}

	course, err := s.courses.CourseBySlug(ctx, courseSlug)
	if err != nil {
		return Created{}, fmt.Errorf("lookup course: %w", err)
	}
	if course == nil {
		return Created{}, ErrCourseNotFound
	}

	now := s.now().UTC()
	a := model.Article{
		CourseID:  course.ID,
		AuthorID:  authorID,
		Title:     d.Title,
		Content:   d.Content,
		Published: d.Published,
		CreatedAt: now,
	}
	if d.Published {
		a.PublishedAt = &now
	}

	// A concurrent publish can claim the same slug between the lookup and
	// the insert; the next attempt sees it and picks the following suffix.
	var out Created
	for attempt := 1; ; attempt++ {
		out, err = s.save(ctx, course, a)
		if err == nil || !errors.Is(err, repository.ErrSlugTaken) || attempt == slugAttempts {
			break
		}
		s.log.Debug("article slug taken, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		return Created{}, err
	}

	s.log.Info("article published",
		zap.Int64("article_id", out.Article.ID),
		zap.String("course", course.Slug),
		zap.String("degree", course.DegreeSlug),
		zap.Strings("message_ids", out.MessageIDs),
	)
	return out, nil
}

const slugAttempts = 3

func (s *Service) save(ctx context.Context, course *model.CourseWithDegree, a model.Article) (Created, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Created{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if a.Slug, err = s.uniqueSlug(ctx, tx, a.Title); err != nil {
		return Created{}, fmt.Errorf("article slug: %w", err)
	}
	if err := s.articles.Insert(ctx, tx, &a); err != nil {
		return Created{}, fmt.Errorf("insert article: %w", err)
	}

	subject, body := s.notification(course.Name, a.Title)
	out := Created{Article: a}
	for _, topic := range []string{course.Slug, course.DegreeSlug} {
		id, err := s.queue.Enqueue(ctx, tx, model.NewPublishTopic(topic, subject, body))
		if err != nil {
			return Created{}, err
		}
		out.MessageIDs = append(out.MessageIDs, id)
	}

	if err := tx.Commit(); err != nil {
		return Created{}, err
	}
	return out, nil
}

// notification builds the subject (plain text) and HTML body shared by both topics.
func (s *Service) notification(courseName, title string) (subject, body string) {
	subject = "New article in course: " + courseName + ": " + title
	body = "<p>A new article was published in course " + s.policy.Sanitize(courseName) + ".</p>"
	return subject, body
}

func (s *Service) uniqueSlug(ctx context.Context, tx *sqlx.Tx, title string) (string, error) {
	base := util.Slugify(title)
	if base == "" {
		base = "article"
	}

	slug := base
	for n := 2; ; n++ {
		taken, err := s.articles.SlugExists(ctx, tx, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(n)
	}
}
