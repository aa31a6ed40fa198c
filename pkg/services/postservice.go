package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"socialnet/pkg/errs"
	sn_metrics "socialnet/pkg/metrics"
	"socialnet/pkg/model"
	"socialnet/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostService orchestrates the post lifecycle: creation, retrieval,
// edits, likes, reports, deletion, search, and the visibility and
// moderation rules around them. Every mutating operation resolves the
// acting identity through the user directory first.
type PostService interface {
	Create(ctx context.Context, actorUID string, text string, attachments []model.Attachment, isPrivate bool) (model.Post, error)
	CanDelete(ctx context.Context, actorUID string, postID int64) (bool, error)
	Delete(ctx context.Context, actorUID string, postID int64) error
	Edit(ctx context.Context, actorUID string, postID int64, edit model.PostEdit) (model.Post, error)
	ToggleLike(ctx context.Context, actorUID string, postID int64) (model.Post, bool, error)
	Report(ctx context.Context, actorUID string, postID int64, reportType string, comment string) (model.Post, error)
	GetByID(ctx context.Context, postID int64, useCache bool) (model.Post, error)
	CanSee(ctx context.Context, actorUID string, postID int64) (bool, error)
	ListAll(ctx context.Context) ([]model.Post, error)
	ListModerationQueue(ctx context.Context) ([]model.Post, error)
	ListByAuthor(ctx context.Context, authorUID string) ([]model.Post, error)
	MutualFriends(ctx context.Context, actorUID string) ([]string, error)
	Search(ctx context.Context, queryText string, actorUID string) ([]model.Post, error)
}

var _ weaver.NotRetriable = PostService.Create
var _ weaver.NotRetriable = PostService.ToggleLike
var _ weaver.NotRetriable = PostService.Report

type postServiceOptions struct {
	MaxMessageLength    int      `toml:"max_message_length"`
	ReportTypes         []string `toml:"report_types"`
	ModerationThreshold int      `toml:"moderation_threshold"`
	CacheTTLSeconds     int      `toml:"cache_ttl_seconds"`
	AdminID             int64    `toml:"admin_id"`
	AdminUID            string   `toml:"admin_uid"`
	Region              string   `toml:"region"`
}

type postService struct {
	weaver.Implements[PostService]
	weaver.WithConfig[postServiceOptions]
	userDirectory weaver.Ref[UserDirectoryService]
	postStorage   weaver.Ref[PostStorageService]
	postCache     weaver.Ref[PostCacheService]
	searchIndex   weaver.Ref[SearchIndexService]
	notifier      weaver.Ref[NotificationService]
	comments      weaver.Ref[CommentService]
	media         weaver.Ref[MediaService]
	machineID        string
	counter          int64
	currentTimestamp int64
	mu               sync.Mutex
}

func (p *postService) Init(ctx context.Context) error {
	logger := p.Logger(ctx)
	p.machineID = utils.GetMachineID()
	p.currentTimestamp = -1
	p.counter = 0
	logger.Info("post service running!", "region", p.Config().Region, "machine_id", p.machineID,
		"max_message_length", p.Config().MaxMessageLength, "moderation_threshold", p.Config().ModerationThreshold,
	)
	return nil
}

func (p *postService) getCounter(timestamp int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentTimestamp > timestamp {
		return 0, fmt.Errorf("timestamps are not incremental")
	}
	if p.currentTimestamp != timestamp {
		p.currentTimestamp = timestamp
		p.counter = 0
	}
	counter := p.counter
	p.counter += 1
	return counter, nil
}

func (p *postService) genPostID() (int64, error) {
	timestamp := time.Now().UnixMilli() - utils.CUSTOM_EPOCH
	counter, err := p.getCounter(timestamp)
	if err != nil {
		return 0, err
	}
	return utils.GenUniqueID(p.machineID, timestamp, counter)
}

func (p *postService) region() sn_metrics.RegionLabel {
	return sn_metrics.RegionLabel{Region: p.Config().Region}
}

// Create validates and persists a new post, mirrors it into the search
// index, and notifies the sender's friends. The index write and the
// notifications are best-effort; only validation, identity resolution
// and the store write can fail the operation.
func (p *postService) Create(ctx context.Context, actorUID string, text string, attachments []model.Attachment, isPrivate bool) (model.Post, error) {
	logger := p.Logger(ctx)
	logger.Debug("entering Create", "actor_uid", actorUID, "is_private", isPrivate)
	start := time.Now()

	actor, err := p.userDirectory.Get().ResolveByUID(ctx, actorUID)
	if err != nil {
		return model.Post{}, err
	}

	text, err = utils.ValidateBoundedString(text, "post text", p.Config().MaxMessageLength)
	if err != nil {
		return model.Post{}, err
	}
	if len(attachments) > 0 {
		err = p.media.Get().ValidateAttachments(ctx, attachments)
		if err != nil {
			return model.Post{}, err
		}
	} else {
		attachments = []model.Attachment{}
	}

	postID, err := p.genPostID()
	if err != nil {
		logger.Error("error generating post id", "msg", err.Error())
		return model.Post{}, err
	}

	now := time.Now().UnixMilli()
	post := model.Post{
		PostID:         postID,
		Sender:         actor.ID,
		SenderName:     actor.Name,
		SenderUsername: actor.Username,
		SenderProfile:  actor.Profile,
		Text:           text,
		Attachments:    attachments,
		IsPrivate:      isPrivate,
		Likes:          []int64{},
		Comments:       []int64{},
		Reports:        model.EmptyReports(),
		CreatedAt:      now,
		UpdatedAt:      now,
		SenderInfo:     actor.Summary(),
	}
	err = p.postStorage.Get().Insert(ctx, post)
	if err != nil {
		return model.Post{}, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("post_id", postID),
	)

	indexDoc := model.PostIndexDoc{
		UID:            actor.UID,
		Text:           text,
		IsPrivate:      isPrivate,
		SenderUsername: actor.Username,
		SenderName:     actor.Name,
		CreatedAt:      time.UnixMilli(now).UTC().Format(time.RFC3339),
	}
	err = p.searchIndex.Get().Index(ctx, postID, indexDoc)
	if err != nil {
		// the post stands; the index entry is repaired on the next edit
		logger.Error("error indexing created post", "post_id", postID, "msg", err.Error())
		sn_metrics.Inconsistencies.Get(p.region()).Inc()
	}

	p.notifyFriends(ctx, actor, postID)

	sn_metrics.CreatedPosts.Get(p.region()).Inc()
	sn_metrics.CreatePostDurationMs.Get(p.region()).Put(float64(time.Since(start).Milliseconds()))
	return post, nil
}

// notifyFriends fans out the new-post notification, one goroutine per
// friend. Failures are independent and only logged.
func (p *postService) notifyFriends(ctx context.Context, actor model.User, postID int64) {
	logger := p.Logger(ctx)

	var wg sync.WaitGroup
	for _, friendID := range actor.Friends {
		wg.Add(1)
		go func(friendID int64) {
			defer wg.Done()
			friend, err := p.userDirectory.Get().ResolveByID(ctx, friendID)
			if err != nil {
				logger.Warn("error resolving friend for notification", "friend_id", friendID, "msg", err.Error())
				return
			}
			payload := model.NotificationPayload{
				Type:  model.NotificationNewPost,
				Title: fmt.Sprintf("A new post from %s", actor.Name),
				Body:  "",
				Link:  fmt.Sprintf("/posts/%d", postID),
			}
			err = p.notifier.Get().Send(ctx, friendID, friend.UID, "", payload)
			if err != nil {
				logger.Warn("error notifying friend", "friend_id", friendID, "msg", err.Error())
			}
		}(friendID)
	}
	wg.Wait()
}

// CanDelete is a pure predicate with no side effects, used both for
// enforcement and for UI affordance queries.
func (p *postService) CanDelete(ctx context.Context, actorUID string, postID int64) (bool, error) {
	post, err := p.postStorage.Get().Find(ctx, postID, false)
	if err != nil {
		return false, err
	}
	actor, err := p.userDirectory.Get().ResolveByUID(ctx, actorUID)
	if err != nil {
		return false, err
	}
	return canDeletePost(actor, post), nil
}

// Delete cascades over the post's comments (best-effort), then removes
// the post, its index entry, and finally its cache entry. The cache is
// invalidated last so a concurrent read cannot repopulate it from state
// that is about to disappear.
func (p *postService) Delete(ctx context.Context, actorUID string, postID int64) error {
	logger := p.Logger(ctx)
	logger.Debug("entering Delete", "actor_uid", actorUID, "post_id", postID)

	post, err := p.postStorage.Get().Find(ctx, postID, false)
	if err != nil {
		return err
	}
	actor, err := p.userDirectory.Get().ResolveByUID(ctx, actorUID)
	if err != nil {
		return err
	}
	if !canDeletePost(actor, post) {
		return errs.Forbiddenf("user (%d) can't delete post (%d)", actor.ID, postID)
	}

	for _, commentID := range post.Comments {
		err := p.comments.Get().ForceDelete(ctx, actor.ID, commentID)
		if err != nil {
			logger.Warn("error deleting comment in cascade", "comment_id", commentID, "msg", err.Error())
		}
	}

	err = p.postStorage.Get().Delete(ctx, postID)
	if err != nil {
		return err
	}
	err = p.searchIndex.Get().Delete(ctx, postID)
	if err != nil {
		logger.Error("error deleting post from search index", "post_id", postID, "msg", err.Error())
		sn_metrics.Inconsistencies.Get(p.region()).Inc()
	}
	err = p.postCache.Get().Invalidate(ctx, postID)
	if err != nil {
		logger.Error("error invalidating deleted post in cache", "post_id", postID, "msg", err.Error())
	}

	sn_metrics.DeletedPosts.Get(p.region()).Inc()
	return nil
}

// Edit applies text and privacy as two separate conditional writes; both
// must succeed for the edit to report success, and there is no
// compensating rollback between them. Attachments cannot be edited.
func (p *postService) Edit(ctx context.Context, actorUID string, postID int64, edit model.PostEdit) (model.Post, error) {
	logger := p.Logger(ctx)
	logger.Debug("entering Edit", "actor_uid", actorUID, "post_id", postID)

	post, err := p.postStorage.Get().Find(ctx, postID, false)
	if err != nil {
		return model.Post{}, err
	}
	actor, err := p.userDirectory.Get().ResolveByUID(ctx, actorUID)
	if err != nil {
		return model.Post{}, err
	}
	if !canEditPost(actor, post) {
		return model.Post{}, errs.Forbiddenf("user (%d) can't edit post (%d)", actor.ID, postID)
	}

	text := edit.Text
	if edit.HasText {
		text, err = utils.ValidateBoundedString(text, "post text", p.Config().MaxMessageLength)
		if err != nil {
			return model.Post{}, err
		}
		err = p.postStorage.Get().UpdateText(ctx, postID, actor.ID, text, edit.TouchTimestamps)
		if err != nil {
			return model.Post{}, err
		}
	}
	err = p.postStorage.Get().UpdatePrivacy(ctx, postID, actor.ID, edit.IsPrivate, edit.TouchTimestamps)
	if err != nil {
		return model.Post{}, err
	}

	patch := model.PostIndexPatch{
		Text:      text,
		HasText:   edit.HasText,
		IsPrivate: edit.IsPrivate,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	err = p.searchIndex.Get().Update(ctx, postID, patch)
	if err != nil {
		logger.Error("error mirroring edit into search index", "post_id", postID, "msg", err.Error())
		sn_metrics.Inconsistencies.Get(p.region()).Inc()
	}

	err = p.postCache.Get().Invalidate(ctx, postID)
	if err != nil {
		logger.Error("error invalidating edited post in cache", "post_id", postID, "msg", err.Error())
	}

	return p.postStorage.Get().Find(ctx, postID, true)
}

// ToggleLike flips the actor's membership in the liker set. Senders
// cannot like their own posts. Adding a like notifies the sender,
// best-effort. Returns the updated post and the new liked state.
func (p *postService) ToggleLike(ctx context.Context, actorUID string, postID int64) (model.Post, bool, error) {
	logger := p.Logger(ctx)
	logger.Debug("entering ToggleLike", "actor_uid", actorUID, "post_id", postID)

	post, err := p.postStorage.Get().Find(ctx, postID, false)
	if err != nil {
		return model.Post{}, false, err
	}
	actor, err := p.userDirectory.Get().ResolveByUID(ctx, actorUID)
	if err != nil {
		return model.Post{}, false, err
	}
	if actor.ID == post.Sender {
		return model.Post{}, false, errs.Forbiddenf("you can't like your own post")
	}

	removed, err := p.postStorage.Get().RemoveLike(ctx, postID, actor.ID)
	if err != nil {
		return model.Post{}, false, err
	}
	isLiked := false
	if !removed {
		_, err = p.postStorage.Get().AddLike(ctx, postID, actor.ID)
		if err != nil {
			return model.Post{}, false, err
		}
		isLiked = true

		owner, err := p.userDirectory.Get().ResolveByID(ctx, post.Sender)
		if err != nil {
			logger.Warn("error resolving post owner for notification", "sender", post.Sender, "msg", err.Error())
		} else {
			payload := model.NotificationPayload{
				Type:  model.NotificationPostLiked,
				Title: fmt.Sprintf("%s liked your post", actor.Name),
				Body:  "",
				Link:  fmt.Sprintf("/posts/%d", postID),
			}
			err = p.notifier.Get().Send(ctx, post.Sender, owner.UID, "", payload)
			if err != nil {
				logger.Warn("error notifying post owner", "sender", post.Sender, "msg", err.Error())
			}
		}
	}

	err = p.postCache.Get().Invalidate(ctx, postID)
	if err != nil {
		logger.Error("error invalidating liked post in cache", "post_id", postID, "msg", err.Error())
	}

	updated, err := p.postStorage.Get().Find(ctx, postID, true)
	if err != nil {
		return model.Post{}, false, err
	}
	sn_metrics.LikeToggles.Get(p.region()).Inc()
	return updated, isLiked, nil
}

// Report appends the actor to the post's report aggregate. Self-reports
// are forbidden and a user may report a given post at most once. The
// moderation notification to the configured administrator fires exactly
// once, on the report that reaches the threshold.
func (p *postService) Report(ctx context.Context, actorUID string, postID int64, reportType string, comment string) (model.Post, error) {
	logger := p.Logger(ctx)
	logger.Debug("entering Report", "actor_uid", actorUID, "post_id", postID, "report_type", reportType)

	post, err := p.postStorage.Get().Find(ctx, postID, false)
	if err != nil {
		return model.Post{}, err
	}
	actor, err := p.userDirectory.Get().ResolveByUID(ctx, actorUID)
	if err != nil {
		return model.Post{}, err
	}

	// defensive double-invalidation, mirrored after the mutation
	err = p.postCache.Get().Invalidate(ctx, postID)
	if err != nil {
		logger.Error("error invalidating reported post in cache", "post_id", postID, "msg", err.Error())
	}

	if actor.ID == post.Sender {
		return model.Post{}, errs.Forbiddenf("you can't report your own post")
	}
	reportType, err = utils.ValidateString(reportType, "report type")
	if err != nil {
		return model.Post{}, err
	}
	err = validateReportType(reportType, p.Config().ReportTypes)
	if err != nil {
		return model.Post{}, err
	}
	if comment != "" {
		comment, err = utils.ValidateBoundedString(comment, "report comment", p.Config().MaxMessageLength)
		if err != nil {
			return model.Post{}, err
		}
	}

	updated, err := p.postStorage.Get().AppendReport(ctx, postID, actor.ID, reportType, comment)
	if err != nil {
		return model.Post{}, err
	}
	sn_metrics.ReportsFiled.Get(p.region()).Inc()

	if crossedThreshold(updated.Reports.ReportNum, p.Config().ModerationThreshold) {
		payload := model.NotificationPayload{
			Type:  model.NotificationSystem,
			Title: fmt.Sprintf("Post (%d) has been flagged a lot!", postID),
			Body:  fmt.Sprintf("Post was sent by %s", updated.SenderName),
			Link:  fmt.Sprintf("/posts/%d", postID),
		}
		err = p.notifier.Get().Send(ctx, p.Config().AdminID, p.Config().AdminUID, "", payload)
		if err != nil {
			logger.Warn("error notifying administrator", "msg", err.Error())
		}
		sn_metrics.ModerationFlags.Get(p.region()).Inc()
	}

	err = p.postCache.Get().Invalidate(ctx, postID)
	if err != nil {
		logger.Error("error invalidating reported post in cache", "post_id", postID, "msg", err.Error())
	}
	return updated, nil
}

// GetByID returns the post, optionally serving it from the cache. A miss
// loads the expanded document from the store and repopulates the cache
// with the configured TTL.
func (p *postService) GetByID(ctx context.Context, postID int64, useCache bool) (model.Post, error) {
	logger := p.Logger(ctx)

	if useCache {
		post, ok, err := p.postCache.Get().Get(ctx, postID)
		if err != nil {
			logger.Error("error reading post from cache", "post_id", postID, "msg", err.Error())
		} else if ok {
			return post, nil
		}
	}

	post, err := p.postStorage.Get().Find(ctx, postID, true)
	if err != nil {
		return model.Post{}, err
	}
	err = p.postCache.Get().Put(ctx, post, p.Config().CacheTTLSeconds)
	if err != nil {
		logger.Error("error writing post to cache", "post_id", postID, "msg", err.Error())
	}
	return post, nil
}

// CanSee evaluates the visibility rule freshly on every call.
func (p *postService) CanSee(ctx context.Context, actorUID string, postID int64) (bool, error) {
	post, err := p.postStorage.Get().Find(ctx, postID, false)
	if err != nil {
		return false, err
	}
	if !post.IsPrivate {
		return true, nil
	}
	actor, err := p.userDirectory.Get().ResolveByUID(ctx, actorUID)
	if err != nil {
		return false, err
	}
	if actor.ID == post.Sender || actor.Role == model.RoleAdmin {
		return true, nil
	}
	senderFriends, err := p.userDirectory.Get().Friends(ctx, post.Sender)
	if err != nil {
		return false, err
	}
	return canSeePost(actor, post, senderFriends), nil
}

func (p *postService) ListAll(ctx context.Context) ([]model.Post, error) {
	return p.postStorage.Get().ListAll(ctx)
}

func (p *postService) ListModerationQueue(ctx context.Context) ([]model.Post, error) {
	return p.postStorage.Get().ListModeration(ctx, p.Config().ModerationThreshold)
}

func (p *postService) ListByAuthor(ctx context.Context, authorUID string) ([]model.Post, error) {
	author, err := p.userDirectory.Get().ResolveByUID(ctx, authorUID)
	if err != nil {
		return nil, err
	}
	return p.postStorage.Get().ListBySender(ctx, author.ID)
}

// MutualFriends returns the external ids of the actor's friends whose own
// friend list contains the actor. One directory lookup per friend,
// evaluated freshly on every call.
func (p *postService) MutualFriends(ctx context.Context, actorUID string) ([]string, error) {
	logger := p.Logger(ctx)

	actor, err := p.userDirectory.Get().ResolveByUID(ctx, actorUID)
	if err != nil {
		return nil, err
	}

	var mutual []string
	for _, friendID := range actor.Friends {
		friend, err := p.userDirectory.Get().ResolveByID(ctx, friendID)
		if err != nil {
			logger.Warn("error resolving friend for mutuality check", "friend_id", friendID, "msg", err.Error())
			continue
		}
		if containsID(friend.Friends, actor.ID) {
			mutual = append(mutual, friend.UID)
		}
	}
	return mutual, nil
}

// Search runs the fuzzy index query filtered to what the actor may see
// (public posts, the actor's own, and posts by mutual friends), then
// re-resolves every hit against the post store so results reflect the
// current state rather than the indexing-time snapshot.
func (p *postService) Search(ctx context.Context, queryText string, actorUID string) ([]model.Post, error) {
	logger := p.Logger(ctx)
	start := time.Now()

	queryText, err := validateSearchQuery(queryText)
	if err != nil {
		return nil, err
	}

	hasActor := actorUID != ""
	var mutualUIDs []string
	if hasActor {
		mutualUIDs, err = p.MutualFriends(ctx, actorUID)
		if err != nil {
			return nil, err
		}
	}

	postIDs, err := p.searchIndex.Get().Query(ctx, queryText, actorUID, hasActor, mutualUIDs)
	if err != nil {
		return nil, err
	}

	results := []model.Post{}
	for _, postID := range postIDs {
		post, err := p.GetByID(ctx, postID, false)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				// index entry outlived the post
				logger.Warn("search hit no longer exists", "post_id", postID)
				sn_metrics.Inconsistencies.Get(p.region()).Inc()
				continue
			}
			return nil, err
		}
		results = append(results, post)
	}

	sn_metrics.SearchDurationMs.Get(p.region()).Put(float64(time.Since(start).Milliseconds()))
	return results, nil
}
