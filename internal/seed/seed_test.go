package seed

import (
	"context"
	"testing"

	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmehdipour/topic-notifier/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_IsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	res, err := Run(ctx, db, Demo)
	require.NoError(t, err)
	assert.Equal(t, Result{Users: 3, Degrees: 2, Courses: 5}, res)

	_, err = Run(ctx, db, Demo)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM courses`))
	assert.Equal(t, 5, n)
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 3, n)

	c, err := repository.NewCoursesRepository(db).CourseBySlug(ctx, "programming-in-go")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "b-sc-computer-science", c.DegreeSlug)

	u, err := repository.NewUsersRepository(db).GetByAPIKey(ctx, "33333333333333333333333333333333")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Empty(t, u.Email)
}
