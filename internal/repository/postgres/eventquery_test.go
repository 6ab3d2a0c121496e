package postgres

import (
	"strings"
	"testing"

	"github.com/lalith-99/excursia/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestBuildEventQueryNoFilters(t *testing.T) {
	sql, args, err := BuildEventQuery(repository.EventQuery{})
	require.NoError(t, err)

	assert.Empty(t, args)
	assert.Contains(t, sql, "WHERE TRUE")
	assert.Contains(t, sql, "ORDER BY e.date ASC, e.id ASC")
	assert.NotContains(t, sql, "LIMIT")
}

func TestBuildEventQueryRequiresUser(t *testing.T) {
	cases := []repository.EventQuery{
		{Audience: "public"},
		{Audience: "friends"},
		{Interested: boolPtr(true)},
		{Applied: boolPtr(false)},
	}
	for _, q := range cases {
		_, _, err := BuildEventQuery(q)
		assert.ErrorIs(t, err, repository.ErrAuthRequired)
	}
}

func TestBuildEventQuerySearchWithoutUser(t *testing.T) {
	sql, args, err := BuildEventQuery(repository.EventQuery{Search: " hike "})
	require.NoError(t, err)

	assert.Equal(t, []any{"%hike%"}, args)
	assert.Contains(t, sql, "e.title ILIKE $1")
	assert.Contains(t, sql, "to_char(e.date, 'YYYY-MM-DD') ILIKE $1")
}

func TestBuildEventQueryNumbersPlaceholdersInOrder(t *testing.T) {
	sql, args, err := BuildEventQuery(repository.EventQuery{
		Audience:   "public",
		Search:     "jazz",
		UserID:     7,
		Interested: boolPtr(false),
		Applied:    boolPtr(true),
		Descending: true,
		Limit:      10,
	})
	require.NoError(t, err)

	assert.Equal(t, []any{int64(7), int64(7), int64(7), "%jazz%", 10}, args)

	assert.Contains(t, sql, "e.audience = 'public' OR (e.audience = 'friends' AND e.user_id IN (")
	assert.Contains(t, sql, "WHERE user_id1 = $1")
	assert.Contains(t, sql, "WHERE user_id2 = $1")
	assert.Contains(t, sql, "e.id NOT IN (SELECT event_id FROM event_interests WHERE user_id = $2)")
	assert.Contains(t, sql, "e.id IN (SELECT event_id FROM event_applications WHERE user_id = $3 AND status IN ('pending', 'accepted'))")
	assert.Contains(t, sql, "ILIKE $4")
	assert.Contains(t, sql, "ORDER BY e.date DESC, e.id DESC")
	assert.True(t, strings.HasSuffix(sql, "LIMIT $5"))
}

func TestBuildEventQueryFriendsAudience(t *testing.T) {
	sql, args, err := BuildEventQuery(repository.EventQuery{Audience: "friends", UserID: 3})
	require.NoError(t, err)

	assert.Equal(t, []any{int64(3)}, args)
	assert.Contains(t, sql, "WHERE e.user_id IN (")
	assert.NotContains(t, sql, "e.audience = 'public'")
}

func TestBuildEventQueryUnknownAudience(t *testing.T) {
	_, _, err := BuildEventQuery(repository.EventQuery{Audience: "everyone", UserID: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrAuthRequired)
}
