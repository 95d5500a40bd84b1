package boiledrepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/user"
	"github.com/coachingcentre/platform/storage/database/sqlboiler"
	"github.com/coachingcentre/platform/tests"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := boiledrepos.NewUserRepository(testutil.OpenDB(t))

	ada := testutil.CreateUser(t, repo, "Ada Lovelace", "adalove", "ada@coaching.test", "Tr1cky#Horse", []string{user.RoleInstructor}, true)
	bob := testutil.CreateUser(t, repo, "Bob", "bobby1", "bob@coaching.test", "", []string{user.RoleLearner}, false)
	cat := testutil.CreateUser(t, repo, "Cat", "catcat", "cat@coaching.test", "", []string{user.RoleAdmin, user.RoleLearner}, true)

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{ID: ada.ID})
		require.NoError(t, err)
		assert.Equal(t, ada.Username, got.Username)
		assert.Equal(t, []string{user.RoleInstructor}, got.Roles)
		assert.NoError(t, got.CheckPassword("Tr1cky#Horse"))
	})

	t.Run("get by username or email", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "bob@coaching.test"})
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)
		assert.False(t, got.Active())
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
		assert.Equal(t, user.ErrNotFound, err)
		_, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "nobody"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUserExists, repo.CheckUsernameUniqueness(ctx, "adalove", "", nil))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "adalove", "ada@coaching.test", []user.User{ada}))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "newbie", "newbie@coaching.test", nil))

		dup := user.User{Name: "Dup", Username: "adalove", CreatedAt: ada.CreatedAt, UpdatedAt: ada.UpdatedAt}
		_, err := repo.CreateUser(ctx, dup)
		assert.Equal(t, user.ErrUserExists, err)
	})

	t.Run("query", func(t *testing.T) {
		active := true
		tests := []struct {
			name   string
			filter *user.QueryFilter
			want   []string
		}{
			{name: "all", want: []string{ada.ID, bob.ID, cat.ID}},
			{name: "search", filter: &user.QueryFilter{Search: "LOVE"}, want: []string{ada.ID}},
			{name: "role", filter: &user.QueryFilter{Roles: []string{user.RoleLearner}}, want: []string{bob.ID, cat.ID}},
			{name: "active learners", filter: &user.QueryFilter{Roles: []string{user.RoleLearner}, IsActive: &active}, want: []string{cat.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				users, err := repo.QueryUsers(ctx, tt.filter, []core.DBOrdering{{Field: "name", Ascending: true}})
				require.NoError(t, err)
				got := make([]string, 0, len(users))
				for _, u := range users {
					got = append(got, u.ID)
				}
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		bob.Name = "Robert"
		bob.SetActive(true)
		_, err := repo.UpdateUser(ctx, bob)
		require.NoError(t, err)

		got, err := repo.GetUser(ctx, user.GetFilter{ID: bob.ID})
		require.NoError(t, err)
		assert.Equal(t, "Robert", got.Name)
		assert.True(t, got.Active())
	})
}
