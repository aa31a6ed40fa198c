package services

import (
	"context"
	"encoding/json"

	"socialnet/pkg/errs"
	"socialnet/pkg/model"
	"socialnet/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"github.com/bradfitz/gomemcache/memcache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserDirectoryService resolves identities and answers friend-graph
// queries. It owns the users collection; everything else references
// users by internal id.
type UserDirectoryService interface {
	ResolveByUID(ctx context.Context, uid string) (model.User, error)
	ResolveByID(ctx context.Context, userID int64) (model.User, error)
	Friends(ctx context.Context, userID int64) ([]int64, error)
	Insert(ctx context.Context, user model.User) error
}

type userDirectoryServiceOptions struct {
	MongoDBAddr   string `toml:"mongodb_address"`
	MongoDBPort   int    `toml:"mongodb_port"`
	MemCachedAddr string `toml:"memcached_address"`
	MemCachedPort int    `toml:"memcached_port"`
	Region        string `toml:"region"`
}

type userDirectoryService struct {
	weaver.Implements[UserDirectoryService]
	weaver.WithConfig[userDirectoryServiceOptions]
	mongoClient     *mongo.Client
	memCachedClient *memcache.Client
}

func (u *userDirectoryService) Init(ctx context.Context) error {
	logger := u.Logger(ctx)

	var err error
	u.mongoClient, err = storage.MongoDBClient(ctx, u.Config().MongoDBAddr, u.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	u.memCachedClient = storage.MemCachedClient(u.Config().MemCachedAddr, u.Config().MemCachedPort)

	logger.Info("user directory service running!", "region", u.Config().Region,
		"mongodb_addr", u.Config().MongoDBAddr, "mongodb_port", u.Config().MongoDBPort,
		"memcached_addr", u.Config().MemCachedAddr, "memcached_port", u.Config().MemCachedPort,
	)
	return nil
}

// ResolveByUID attempts to read the user from memcached and falls back to
// mongodb on a miss, repopulating the cache entry.
func (u *userDirectoryService) ResolveByUID(ctx context.Context, uid string) (model.User, error) {
	logger := u.Logger(ctx)
	logger.Debug("entering ResolveByUID", "uid", uid)

	item, err := u.memCachedClient.Get("users/uid/" + uid)
	if err != nil && err != memcache.ErrCacheMiss {
		logger.Error("error reading user from memcached", "msg", err.Error())
	} else if err == nil {
		var user model.User
		err := json.Unmarshal(item.Value, &user)
		if err == nil {
			return user, nil
		}
		logger.Error("error parsing user from memcached result", "msg", err.Error())
	}

	collection := u.mongoClient.Database("userdirectory").Collection("users")
	filter := bson.D{
		{Key: "uid", Value: uid},
	}
	var user model.User
	err = collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return model.User{}, errs.NotFoundf("no user with uid (%s)", uid)
		}
		logger.Error("error reading user from mongodb", "msg", err.Error())
		return model.User{}, err
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		logger.Error("error converting user to json", "msg", err.Error())
		return user, nil
	}
	err = u.memCachedClient.Set(&memcache.Item{Key: "users/uid/" + uid, Value: userJSON})
	if err != nil {
		logger.Error("error writing user to memcached", "msg", err.Error())
	}
	return user, nil
}

func (u *userDirectoryService) ResolveByID(ctx context.Context, userID int64) (model.User, error) {
	logger := u.Logger(ctx)
	logger.Debug("entering ResolveByID", "user_id", userID)

	collection := u.mongoClient.Database("userdirectory").Collection("users")
	filter := bson.D{
		{Key: "user_id", Value: userID},
	}
	var user model.User
	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return model.User{}, errs.NotFoundf("no user with id (%d)", userID)
		}
		logger.Error("error reading user from mongodb", "msg", err.Error())
		return model.User{}, err
	}
	return user, nil
}

func (u *userDirectoryService) Friends(ctx context.Context, userID int64) ([]int64, error) {
	user, err := u.ResolveByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Friends, nil
}

// Insert writes the user to mongodb. Used for provisioning; account
// management itself lives outside this system.
func (u *userDirectoryService) Insert(ctx context.Context, user model.User) error {
	logger := u.Logger(ctx)
	logger.Debug("entering Insert", "user_id", user.ID, "uid", user.UID)

	collection := u.mongoClient.Database("userdirectory").Collection("users")
	_, err := collection.InsertOne(ctx, user)
	if err != nil {
		logger.Error("error inserting new user in mongodb", "msg", err.Error())
		return err
	}
	err = u.memCachedClient.Delete("users/uid/" + user.UID)
	if err != nil && err != memcache.ErrCacheMiss {
		logger.Error("error invalidating user in memcached", "msg", err.Error())
	}
	return nil
}
