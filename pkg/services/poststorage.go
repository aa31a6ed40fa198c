package services

import (
	"context"
	"time"

	"socialnet/pkg/errs"
	"socialnet/pkg/model"
	"socialnet/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostStorageService owns the posts collection. Mutations are single
// conditional updates keyed by post id; likes and reports never do a
// client-side read-modify-write of the arrays, so concurrent toggles and
// reports cannot lose updates.
type PostStorageService interface {
	Insert(ctx context.Context, post model.Post) error
	Find(ctx context.Context, postID int64, expandSender bool) (model.Post, error)
	ListAll(ctx context.Context) ([]model.Post, error)
	ListModeration(ctx context.Context, threshold int) ([]model.Post, error)
	ListBySender(ctx context.Context, senderID int64) ([]model.Post, error)
	AddLike(ctx context.Context, postID int64, userID int64) (bool, error)
	RemoveLike(ctx context.Context, postID int64, userID int64) (bool, error)
	AppendReport(ctx context.Context, postID int64, reporterID int64, reportType string, comment string) (model.Post, error)
	UpdateText(ctx context.Context, postID int64, senderID int64, text string, touch bool) error
	UpdatePrivacy(ctx context.Context, postID int64, senderID int64, isPrivate bool, touch bool) error
	Delete(ctx context.Context, postID int64) error
}

var _ weaver.NotRetriable = PostStorageService.Insert
var _ weaver.NotRetriable = PostStorageService.AppendReport

type postStorageServiceOptions struct {
	MongoDBAddr string `toml:"mongodb_address"`
	MongoDBPort int    `toml:"mongodb_port"`
	Region      string `toml:"region"`
}

type postStorageService struct {
	weaver.Implements[PostStorageService]
	weaver.WithConfig[postStorageServiceOptions]
	mongoClient *mongo.Client
}

func (p *postStorageService) Init(ctx context.Context) error {
	logger := p.Logger(ctx)

	var err error
	p.mongoClient, err = storage.MongoDBClient(ctx, p.Config().MongoDBAddr, p.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "post_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err = p.posts().Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		logger.Error("error ensuring unique post id index", "msg", err.Error())
		return err
	}

	logger.Info("post storage service running!", "region", p.Config().Region,
		"mongodb_addr", p.Config().MongoDBAddr, "mongodb_port", p.Config().MongoDBPort,
	)
	return nil
}

func (p *postStorageService) posts() *mongo.Collection {
	return p.mongoClient.Database("poststore").Collection("posts")
}

func (p *postStorageService) users() *mongo.Collection {
	return p.mongoClient.Database("userdirectory").Collection("users")
}

func (p *postStorageService) Insert(ctx context.Context, post model.Post) error {
	logger := p.Logger(ctx)
	logger.Debug("entering Insert", "post_id", post.PostID, "sender", post.Sender)

	r, err := p.posts().InsertOne(ctx, post)
	if err != nil {
		logger.Error("error writing post", "msg", err.Error())
		return err
	}
	logger.Debug("inserted post", "objectid", r.InsertedID)
	return nil
}

// expandSender embeds the sender's current user summary. The summaries
// map lets list queries reuse lookups across posts by the same sender.
func (p *postStorageService) expandSender(ctx context.Context, post *model.Post, summaries map[int64]model.UserSummary) error {
	if summaries != nil {
		if summary, ok := summaries[post.Sender]; ok {
			post.SenderInfo = summary
			return nil
		}
	}
	var user model.User
	filter := bson.D{
		{Key: "user_id", Value: post.Sender},
	}
	err := p.users().FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// sender no longer resolvable; keep the creation-time snapshot
			return nil
		}
		return err
	}
	post.SenderInfo = user.Summary()
	if summaries != nil {
		summaries[post.Sender] = post.SenderInfo
	}
	return nil
}

func (p *postStorageService) Find(ctx context.Context, postID int64, expandSender bool) (model.Post, error) {
	logger := p.Logger(ctx)
	logger.Debug("entering Find", "post_id", postID)

	var post model.Post
	filter := bson.D{
		{Key: "post_id", Value: postID},
	}
	err := p.posts().FindOne(ctx, filter).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return model.Post{}, errs.NotFoundf("no post with id (%d)", postID)
		}
		logger.Error("error reading post from mongodb", "msg", err.Error())
		return model.Post{}, err
	}
	if expandSender {
		err = p.expandSender(ctx, &post, nil)
		if err != nil {
			logger.Error("error expanding post sender", "msg", err.Error())
			return model.Post{}, err
		}
	}
	return post, nil
}

func (p *postStorageService) list(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]model.Post, error) {
	logger := p.Logger(ctx)

	cur, err := p.posts().Find(ctx, filter, opts)
	if err != nil {
		logger.Error("error reading posts from mongodb", "msg", err.Error())
		return nil, err
	}
	var posts []model.Post
	err = cur.All(ctx, &posts)
	if err != nil {
		logger.Error("error parsing posts from mongodb result", "msg", err.Error())
		return nil, err
	}

	summaries := make(map[int64]model.UserSummary)
	for i := range posts {
		err = p.expandSender(ctx, &posts[i], summaries)
		if err != nil {
			logger.Error("error expanding post sender", "msg", err.Error())
			return nil, err
		}
	}
	return posts, nil
}

// ListAll returns every post, newest first. Full-scan semantics.
func (p *postStorageService) ListAll(ctx context.Context) ([]model.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return p.list(ctx, bson.D{}, opts)
}

// ListModeration returns posts whose report count reached the threshold,
// newest first.
func (p *postStorageService) ListModeration(ctx context.Context, threshold int) ([]model.Post, error) {
	filter := bson.M{
		"reports.report_num": bson.M{"$gte": threshold},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return p.list(ctx, filter, opts)
}

// ListBySender returns the sender's posts; ordering is left to the caller.
func (p *postStorageService) ListBySender(ctx context.Context, senderID int64) ([]model.Post, error) {
	filter := bson.D{
		{Key: "sender", Value: senderID},
	}
	return p.list(ctx, filter, nil)
}

// AddLike adds the user to the liker set. Returns false when the user was
// already present.
func (p *postStorageService) AddLike(ctx context.Context, postID int64, userID int64) (bool, error) {
	logger := p.Logger(ctx)
	logger.Debug("entering AddLike", "post_id", postID, "user_id", userID)

	filter := bson.D{
		{Key: "post_id", Value: postID},
	}
	update := bson.M{
		"$addToSet": bson.M{"likes": userID},
	}
	result, err := p.posts().UpdateOne(ctx, filter, update)
	if err != nil {
		logger.Error("error adding like in mongodb", "msg", err.Error())
		return false, err
	}
	if result.MatchedCount == 0 {
		return false, errs.NotFoundf("no post with id (%d)", postID)
	}
	return result.ModifiedCount == 1, nil
}

// RemoveLike pulls the user from the liker set. Returns false when the
// user was not a liker.
func (p *postStorageService) RemoveLike(ctx context.Context, postID int64, userID int64) (bool, error) {
	logger := p.Logger(ctx)
	logger.Debug("entering RemoveLike", "post_id", postID, "user_id", userID)

	filter := bson.D{
		{Key: "post_id", Value: postID},
	}
	update := bson.M{
		"$pull": bson.M{"likes": userID},
	}
	result, err := p.posts().UpdateOne(ctx, filter, update)
	if err != nil {
		logger.Error("error removing like in mongodb", "msg", err.Error())
		return false, err
	}
	if result.MatchedCount == 0 {
		return false, errs.NotFoundf("no post with id (%d)", postID)
	}
	return result.ModifiedCount == 1, nil
}

// AppendReport appends one slot to the four parallel report sequences in
// a single update whose filter requires the reporter to be absent. A
// concurrent duplicate loses the filter match and surfaces as a conflict.
func (p *postStorageService) AppendReport(ctx context.Context, postID int64, reporterID int64, reportType string, comment string) (model.Post, error) {
	logger := p.Logger(ctx)
	logger.Debug("entering AppendReport", "post_id", postID, "reporter_id", reporterID, "report_type", reportType)

	searchNotReported := bson.M{
		"$and": []bson.M{
			{"post_id": postID},
			{"reports.reporters": bson.M{"$ne": reporterID}},
		},
	}
	update := bson.M{
		"$push": bson.M{
			"reports.reporters":    reporterID,
			"reports.report_types": reportType,
			"reports.comments":     comment,
		},
		"$inc": bson.M{
			"reports.report_num": 1,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var post model.Post
	err := p.posts().FindOneAndUpdate(ctx, searchNotReported, update, opts).Decode(&post)
	if err == nil {
		return post, nil
	}
	if err != mongo.ErrNoDocuments {
		logger.Error("error appending report in mongodb", "msg", err.Error())
		return model.Post{}, err
	}

	// no match: either the post is gone or the reporter already reported it
	_, err = p.Find(ctx, postID, false)
	if err != nil {
		return model.Post{}, err
	}
	return model.Post{}, errs.Conflictf("user (%d) already reported post (%d)", reporterID, postID)
}

func (p *postStorageService) conditionalSet(ctx context.Context, postID int64, senderID int64, fields bson.M, touch bool) error {
	logger := p.Logger(ctx)

	if touch {
		fields["updated_at"] = time.Now().UnixMilli()
	}
	filter := bson.D{
		{Key: "post_id", Value: postID},
		{Key: "sender", Value: senderID},
	}
	update := bson.M{
		"$set": fields,
	}
	result, err := p.posts().UpdateOne(ctx, filter, update)
	if err != nil {
		logger.Error("error updating post in mongodb", "msg", err.Error())
		return err
	}
	if result.MatchedCount == 0 {
		return errs.NotFoundf("no post with id (%d) and sender (%d)", postID, senderID)
	}
	return nil
}

// UpdateText and UpdatePrivacy are deliberately two separate conditional
// writes; the edit path applies them in sequence.
func (p *postStorageService) UpdateText(ctx context.Context, postID int64, senderID int64, text string, touch bool) error {
	return p.conditionalSet(ctx, postID, senderID, bson.M{"text": text}, touch)
}

func (p *postStorageService) UpdatePrivacy(ctx context.Context, postID int64, senderID int64, isPrivate bool, touch bool) error {
	return p.conditionalSet(ctx, postID, senderID, bson.M{"is_private": isPrivate}, touch)
}

func (p *postStorageService) Delete(ctx context.Context, postID int64) error {
	logger := p.Logger(ctx)
	logger.Debug("entering Delete", "post_id", postID)

	filter := bson.D{
		{Key: "post_id", Value: postID},
	}
	result, err := p.posts().DeleteOne(ctx, filter)
	if err != nil {
		logger.Error("error deleting post from mongodb", "msg", err.Error())
		return err
	}
	if result.DeletedCount == 0 {
		return errs.NotFoundf("no post with id (%d)", postID)
	}
	return nil
}
