package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"socialnet/pkg/errs"
	"socialnet/pkg/model"

	"github.com/ServiceWeaver/weaver/weavertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The tests below run the real components against live backends
// (mongodb, memcached, redis, elasticsearch, rabbitmq on localhost).
// They are skipped unless SOCIALNET_INTEGRATION is set.

const integrationConfig = `
["socialnet/pkg/services/PostService"]
max_message_length = 1000
report_types = ["spam", "harassment", "hate", "violence", "other"]
moderation_threshold = 5
cache_ttl_seconds = 60
admin_id = 1
admin_uid = "admin-0"
region = "test"

["socialnet/pkg/services/PostStorageService"]
mongodb_address = "localhost"
mongodb_port = 27017
region = "test"

["socialnet/pkg/services/UserDirectoryService"]
mongodb_address = "localhost"
mongodb_port = 27017
memcached_address = "localhost"
memcached_port = 11211
region = "test"

["socialnet/pkg/services/PostCacheService"]
redis_address = "localhost"
redis_port = 6379
region = "test"

["socialnet/pkg/services/SearchIndexService"]
elasticsearch_address = "localhost"
elasticsearch_port = 9200
max_results = 50
region = "test"

["socialnet/pkg/services/CommentService"]
mongodb_address = "localhost"
mongodb_port = 27017
region = "test"

["socialnet/pkg/services/NotificationService"]
rabbitmq_address = "localhost"
rabbitmq_port = 5672
rabbitmq_username = "admin"
rabbitmq_password = "admin"
region = "test"

["socialnet/pkg/services/MediaService"]
region = "test"
`

func integrationRunner(t *testing.T) weavertest.Runner {
	t.Helper()
	if os.Getenv("SOCIALNET_INTEGRATION") == "" {
		t.Skip("set SOCIALNET_INTEGRATION to run against live backends")
	}
	runner := weavertest.Local
	runner.Config = integrationConfig
	return runner
}

// seedUsers provisions fresh, mutually-befriended users for one test run.
// Ids are derived from the current time so runs do not collide.
func seedUsers(ctx context.Context, t *testing.T, directory UserDirectoryService, n int) []model.User {
	t.Helper()
	base := time.Now().UnixNano()
	users := make([]model.User, n)
	for i := range users {
		users[i] = model.User{
			ID:       base + int64(i),
			UID:      fmt.Sprintf("it-user-%d-%d", base, i),
			Name:     fmt.Sprintf("User %d", i),
			Username: fmt.Sprintf("user%d", i),
		}
	}
	for i := range users {
		for j := range users {
			if i != j {
				users[i].Friends = append(users[i].Friends, users[j].ID)
			}
		}
		require.NoError(t, directory.Insert(ctx, users[i]))
	}
	return users
}

func TestPostIDCounter(t *testing.T) {
	p := &postService{currentTimestamp: -1}

	// two ids minted within the same millisecond must differ
	first, err := p.getCounter(42)
	require.NoError(t, err)
	second, err := p.getCounter(42)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, first+1, second)

	// the counter restarts when the clock moves forward
	next, err := p.getCounter(43)
	require.NoError(t, err)
	assert.Equal(t, int64(0), next)

	// a clock going backwards is refused
	_, err = p.getCounter(41)
	assert.Error(t, err)
}

func TestPostLifecycleVisibility(t *testing.T) {
	runner := integrationRunner(t)
	runner.Test(t, func(t *testing.T, svc PostService, directory UserDirectoryService) {
		ctx := context.Background()
		users := seedUsers(ctx, t, directory, 2)
		sender, friend := users[0], users[1]

		stranger := model.User{
			ID:       time.Now().UnixNano() + 100,
			UID:      fmt.Sprintf("it-stranger-%d", time.Now().UnixNano()),
			Name:     "Stranger",
			Username: "stranger",
		}
		require.NoError(t, directory.Insert(ctx, stranger))

		post, err := svc.Create(ctx, sender.UID, "hello from the lifecycle test", nil, false)
		require.NoError(t, err)
		assert.Equal(t, sender.ID, post.Sender)
		assert.Equal(t, 0, post.Reports.ReportNum)

		got, err := svc.GetByID(ctx, post.PostID, true)
		require.NoError(t, err)
		assert.Equal(t, post.PostID, got.PostID)
		assert.Equal(t, sender.UID, got.SenderInfo.UID)

		// public post: visible to everyone
		for _, uid := range []string{sender.UID, friend.UID, stranger.UID} {
			visible, err := svc.CanSee(ctx, uid, post.PostID)
			require.NoError(t, err)
			assert.True(t, visible, "uid %s", uid)
		}

		// flip to private: friends keep access, strangers lose it
		_, err = svc.Edit(ctx, sender.UID, post.PostID, model.PostEdit{IsPrivate: true})
		require.NoError(t, err)

		visible, err := svc.CanSee(ctx, friend.UID, post.PostID)
		require.NoError(t, err)
		assert.True(t, visible)

		visible, err = svc.CanSee(ctx, stranger.UID, post.PostID)
		require.NoError(t, err)
		assert.False(t, visible)

		// only the sender may edit, even admins are excluded
		_, err = svc.Edit(ctx, friend.UID, post.PostID, model.PostEdit{IsPrivate: false})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrForbidden))
	})
}

func TestToggleLike(t *testing.T) {
	runner := integrationRunner(t)
	runner.Test(t, func(t *testing.T, svc PostService, directory UserDirectoryService) {
		ctx := context.Background()
		users := seedUsers(ctx, t, directory, 2)
		sender, liker := users[0], users[1]

		post, err := svc.Create(ctx, sender.UID, "like me", nil, false)
		require.NoError(t, err)

		// senders cannot like their own posts
		_, _, err = svc.ToggleLike(ctx, sender.UID, post.PostID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrForbidden))

		updated, isLiked, err := svc.ToggleLike(ctx, liker.UID, post.PostID)
		require.NoError(t, err)
		assert.True(t, isLiked)
		assert.Contains(t, updated.Likes, liker.ID)

		// toggling again removes the like
		updated, isLiked, err = svc.ToggleLike(ctx, liker.UID, post.PostID)
		require.NoError(t, err)
		assert.False(t, isLiked)
		assert.NotContains(t, updated.Likes, liker.ID)
	})
}

func TestReportThresholdAndDuplicates(t *testing.T) {
	runner := integrationRunner(t)
	runner.Test(t, func(t *testing.T, svc PostService, directory UserDirectoryService) {
		ctx := context.Background()
		users := seedUsers(ctx, t, directory, 7)
		sender, reporters := users[0], users[1:]

		post, err := svc.Create(ctx, sender.UID, "report me", nil, false)
		require.NoError(t, err)

		// senders cannot report their own posts
		_, err = svc.Report(ctx, sender.UID, post.PostID, "spam", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrForbidden))

		// unknown report types are rejected
		_, err = svc.Report(ctx, reporters[0].UID, post.PostID, "boring", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrValidation))

		for i, reporter := range reporters[:5] {
			updated, err := svc.Report(ctx, reporter.UID, post.PostID, "spam", "reported in test")
			require.NoError(t, err)
			assert.Equal(t, i+1, updated.Reports.ReportNum)
		}

		// a user may report a given post at most once
		_, err = svc.Report(ctx, reporters[0].UID, post.PostID, "spam", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrConflict))

		// the flagged post shows up in the moderation queue
		queue, err := svc.ListModerationQueue(ctx)
		require.NoError(t, err)
		found := false
		for _, queued := range queue {
			if queued.PostID == post.PostID {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestSearch(t *testing.T) {
	runner := integrationRunner(t)
	runner.Test(t, func(t *testing.T, svc PostService, directory UserDirectoryService) {
		ctx := context.Background()
		users := seedUsers(ctx, t, directory, 2)
		sender, searcher := users[0], users[1]

		// one character after trimming is rejected, two are accepted
		_, err := svc.Search(ctx, " a ", searcher.UID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrValidation))

		marker := fmt.Sprintf("glimmering%d", time.Now().UnixNano())
		post, err := svc.Create(ctx, sender.UID, "a "+marker+" post", nil, false)
		require.NoError(t, err)

		// elasticsearch is near-real-time; wait out the refresh interval
		time.Sleep(2 * time.Second)

		results, err := svc.Search(ctx, marker, searcher.UID)
		require.NoError(t, err)
		found := false
		for _, result := range results {
			if result.PostID == post.PostID {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestDeleteAuthorizationAndCascade(t *testing.T) {
	runner := integrationRunner(t)
	runner.Test(t, func(t *testing.T, svc PostService, directory UserDirectoryService, comments CommentService) {
		ctx := context.Background()
		users := seedUsers(ctx, t, directory, 2)
		sender, stranger := users[0], users[1]

		admin := model.User{
			ID:       time.Now().UnixNano() + 200,
			UID:      fmt.Sprintf("it-admin-%d", time.Now().UnixNano()),
			Role:     model.RoleAdmin,
			Name:     "Admin",
			Username: "admin",
		}
		require.NoError(t, directory.Insert(ctx, admin))

		post, err := svc.Create(ctx, sender.UID, "delete me", nil, false)
		require.NoError(t, err)

		// two comments to exercise the cascade
		base := time.Now().UnixNano()
		for i := int64(0); i < 2; i++ {
			require.NoError(t, comments.Add(ctx, model.Comment{
				CommentID: base + i,
				PostID:    post.PostID,
				Sender:    stranger.ID,
				Text:      "a comment",
				CreatedAt: time.Now().UnixMilli(),
			}))
		}
		got, err := svc.GetByID(ctx, post.PostID, false)
		require.NoError(t, err)
		assert.Len(t, got.Comments, 2)

		ok, err := svc.CanDelete(ctx, stranger.UID, post.PostID)
		require.NoError(t, err)
		assert.False(t, ok)

		err = svc.Delete(ctx, stranger.UID, post.PostID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrForbidden))

		ok, err = svc.CanDelete(ctx, admin.UID, post.PostID)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, svc.Delete(ctx, sender.UID, post.PostID))

		_, err = svc.GetByID(ctx, post.PostID, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrNotFound))

		// deleting again reports the post as gone
		err = svc.Delete(ctx, sender.UID, post.PostID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrNotFound))
	})
}
