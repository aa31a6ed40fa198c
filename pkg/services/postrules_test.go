package services

import (
	"errors"
	"testing"

	"socialnet/pkg/errs"
	"socialnet/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanDeletePost(t *testing.T) {
	post := model.Post{PostID: 1, Sender: 10}
	sender := model.User{ID: 10}
	admin := model.User{ID: 20, Role: model.RoleAdmin}
	stranger := model.User{ID: 30}

	assert.True(t, canDeletePost(sender, post))
	assert.True(t, canDeletePost(admin, post))
	assert.False(t, canDeletePost(stranger, post))

	// pure predicate: repeated evaluation yields the same result
	assert.True(t, canDeletePost(sender, post))
}

func TestCanEditPost(t *testing.T) {
	post := model.Post{PostID: 1, Sender: 10}
	sender := model.User{ID: 10}
	admin := model.User{ID: 20, Role: model.RoleAdmin}

	assert.True(t, canEditPost(sender, post))
	// admins are deliberately not granted edit rights
	assert.False(t, canEditPost(admin, post))
}

func TestCanSeePost(t *testing.T) {
	public := model.Post{PostID: 1, Sender: 10, IsPrivate: false}
	private := model.Post{PostID: 2, Sender: 10, IsPrivate: true}
	senderFriends := []int64{30}

	sender := model.User{ID: 10}
	admin := model.User{ID: 20, Role: model.RoleAdmin}
	friend := model.User{ID: 30}
	stranger := model.User{ID: 40}

	for _, actor := range []model.User{sender, admin, friend, stranger} {
		assert.True(t, canSeePost(actor, public, senderFriends))
	}

	assert.True(t, canSeePost(sender, private, senderFriends))
	assert.True(t, canSeePost(admin, private, senderFriends))
	assert.True(t, canSeePost(friend, private, senderFriends))
	assert.False(t, canSeePost(stranger, private, senderFriends))
}

func TestValidateSearchQuery(t *testing.T) {
	trimmed, err := validateSearchQuery("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", trimmed)

	_, err = validateSearchQuery("   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = validateSearchQuery(" a ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	// boundary: two characters is the minimum, counted in runes
	_, err = validateSearchQuery("ab")
	require.NoError(t, err)
	_, err = validateSearchQuery("é")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	_, err = validateSearchQuery("éé")
	require.NoError(t, err)
}

func TestValidateReportType(t *testing.T) {
	allowed := []string{"spam", "harassment", "other"}

	require.NoError(t, validateReportType("spam", allowed))

	err := validateReportType("boring", allowed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestCrossedThreshold(t *testing.T) {
	assert.False(t, crossedThreshold(4, 5))
	assert.True(t, crossedThreshold(5, 5))
	// fires only on the transition, not on every report past it
	assert.False(t, crossedThreshold(6, 5))
}

func TestContainsID(t *testing.T) {
	assert.True(t, containsID([]int64{1, 2, 3}, 2))
	assert.False(t, containsID([]int64{1, 2, 3}, 4))
	assert.False(t, containsID(nil, 1))
}
