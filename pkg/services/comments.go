package services

import (
	"context"

	"socialnet/pkg/errs"
	"socialnet/pkg/model"
	"socialnet/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CommentService is the collaborator owning the comments collection. The
// post deletion cascade calls ForceDelete per comment and tolerates
// failures.
type CommentService interface {
	Add(ctx context.Context, comment model.Comment) error
	ForceDelete(ctx context.Context, actorID int64, commentID int64) error
}

type commentServiceOptions struct {
	MongoDBAddr string `toml:"mongodb_address"`
	MongoDBPort int    `toml:"mongodb_port"`
	Region      string `toml:"region"`
}

type commentService struct {
	weaver.Implements[CommentService]
	weaver.WithConfig[commentServiceOptions]
	mongoClient *mongo.Client
}

func (c *commentService) Init(ctx context.Context) error {
	logger := c.Logger(ctx)

	var err error
	c.mongoClient, err = storage.MongoDBClient(ctx, c.Config().MongoDBAddr, c.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	logger.Info("comment service running!", "region", c.Config().Region,
		"mongodb_addr", c.Config().MongoDBAddr, "mongodb_port", c.Config().MongoDBPort,
	)
	return nil
}

func (c *commentService) comments() *mongo.Collection {
	return c.mongoClient.Database("comments").Collection("comments")
}

func (c *commentService) posts() *mongo.Collection {
	return c.mongoClient.Database("poststore").Collection("posts")
}

func (c *commentService) Add(ctx context.Context, comment model.Comment) error {
	logger := c.Logger(ctx)
	logger.Debug("entering Add", "comment_id", comment.CommentID, "post_id", comment.PostID)

	_, err := c.comments().InsertOne(ctx, comment)
	if err != nil {
		logger.Error("error inserting comment in mongodb", "msg", err.Error())
		return err
	}

	filter := bson.D{
		{Key: "post_id", Value: comment.PostID},
	}
	update := bson.M{
		"$addToSet": bson.M{"comments": comment.CommentID},
	}
	_, err = c.posts().UpdateOne(ctx, filter, update)
	if err != nil {
		logger.Error("error referencing comment on post in mongodb", "msg", err.Error())
		return err
	}
	return nil
}

// ForceDelete removes the comment regardless of who wrote it and pulls
// its reference from the owning post. The actor is recorded for the log
// only; authorization happened at the post level.
func (c *commentService) ForceDelete(ctx context.Context, actorID int64, commentID int64) error {
	logger := c.Logger(ctx)
	logger.Debug("entering ForceDelete", "actor_id", actorID, "comment_id", commentID)

	var comment model.Comment
	filter := bson.D{
		{Key: "comment_id", Value: commentID},
	}
	err := c.comments().FindOne(ctx, filter).Decode(&comment)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return errs.NotFoundf("no comment with id (%d)", commentID)
		}
		logger.Error("error reading comment from mongodb", "msg", err.Error())
		return err
	}

	_, err = c.comments().DeleteOne(ctx, filter)
	if err != nil {
		logger.Error("error deleting comment from mongodb", "msg", err.Error())
		return err
	}

	postFilter := bson.D{
		{Key: "post_id", Value: comment.PostID},
	}
	update := bson.M{
		"$pull": bson.M{"comments": commentID},
	}
	_, err = c.posts().UpdateOne(ctx, postFilter, update)
	if err != nil {
		logger.Error("error dereferencing comment on post in mongodb", "msg", err.Error())
		return err
	}
	return nil
}
