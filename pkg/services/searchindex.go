package services

import (
	"context"
	"strconv"
	"strings"

	"socialnet/pkg/model"
	"socialnet/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"github.com/olivere/elastic/v7"
)

const postIndexName = "posts"

// postIndexMapping keeps uid as a keyword so the visibility filter can use
// exact terms, while text and sender_username stay analyzed for the fuzzy
// multi-field match.
const postIndexMapping = `{
	"mappings": {
		"properties": {
			"uid":             { "type": "keyword" },
			"text":            { "type": "text" },
			"is_private":      { "type": "boolean" },
			"sender_username": { "type": "text" },
			"sender_name":     { "type": "text" },
			"created_at":      { "type": "date" },
			"updated_at":      { "type": "date" }
		}
	}
}`

// SearchIndexService mirrors post documents into elasticsearch and runs
// the fuzzy visibility-filtered queries over them.
type SearchIndexService interface {
	Index(ctx context.Context, postID int64, doc model.PostIndexDoc) error
	Update(ctx context.Context, postID int64, patch model.PostIndexPatch) error
	Delete(ctx context.Context, postID int64) error
	Query(ctx context.Context, queryText string, actorUID string, hasActor bool, visibleUIDs []string) ([]int64, error)
}

type searchIndexServiceOptions struct {
	ElasticAddr string `toml:"elasticsearch_address"`
	ElasticPort int    `toml:"elasticsearch_port"`
	MaxResults  int    `toml:"max_results"`
	Region      string `toml:"region"`
}

type searchIndexService struct {
	weaver.Implements[SearchIndexService]
	weaver.WithConfig[searchIndexServiceOptions]
	elasticClient *elastic.Client
}

func (s *searchIndexService) Init(ctx context.Context) error {
	logger := s.Logger(ctx)

	var err error
	s.elasticClient, err = storage.ElasticClient(s.Config().ElasticAddr, s.Config().ElasticPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	exists, err := s.elasticClient.IndexExists(postIndexName).Do(ctx)
	if err != nil {
		logger.Error("error checking posts index", "msg", err.Error())
		return err
	}
	if !exists {
		_, err = s.elasticClient.CreateIndex(postIndexName).BodyString(postIndexMapping).Do(ctx)
		if err != nil {
			logger.Error("error creating posts index", "msg", err.Error())
			return err
		}
	}

	logger.Info("search index service running!", "region", s.Config().Region,
		"elasticsearch_addr", s.Config().ElasticAddr, "elasticsearch_port", s.Config().ElasticPort,
	)
	return nil
}

func (s *searchIndexService) Index(ctx context.Context, postID int64, doc model.PostIndexDoc) error {
	logger := s.Logger(ctx)
	logger.Debug("entering Index", "post_id", postID)

	_, err := s.elasticClient.Index().
		Index(postIndexName).
		Id(strconv.FormatInt(postID, 10)).
		BodyJson(doc).
		Do(ctx)
	if err != nil {
		logger.Error("error indexing post", "post_id", postID, "msg", err.Error())
		return err
	}
	return nil
}

func (s *searchIndexService) Update(ctx context.Context, postID int64, patch model.PostIndexPatch) error {
	logger := s.Logger(ctx)
	logger.Debug("entering Update", "post_id", postID)

	doc := map[string]interface{}{
		"is_private": patch.IsPrivate,
	}
	if patch.HasText {
		doc["text"] = patch.Text
	}
	if patch.UpdatedAt != "" {
		doc["updated_at"] = patch.UpdatedAt
	}

	_, err := s.elasticClient.Update().
		Index(postIndexName).
		Id(strconv.FormatInt(postID, 10)).
		Doc(doc).
		Do(ctx)
	if err != nil {
		logger.Error("error updating indexed post", "post_id", postID, "msg", err.Error())
		return err
	}
	return nil
}

func (s *searchIndexService) Delete(ctx context.Context, postID int64) error {
	logger := s.Logger(ctx)
	logger.Debug("entering Delete", "post_id", postID)

	_, err := s.elasticClient.Delete().
		Index(postIndexName).
		Id(strconv.FormatInt(postID, 10)).
		Do(ctx)
	if err != nil {
		logger.Error("error deleting indexed post", "post_id", postID, "msg", err.Error())
		return err
	}
	return nil
}

// buildSearchQuery assembles the query: a fuzzy multi-field match over
// text and sender username, AND a visibility filter of which at least one
// clause must hold (public, authored by the actor, or authored by one of
// the visible uids).
func buildSearchQuery(queryText string, actorUID string, hasActor bool, visibleUIDs []string) *elastic.BoolQuery {
	match := elastic.NewMultiMatchQuery(strings.ToLower(queryText), "text", "sender_username").
		Fuzziness("AUTO").
		Operator("or").
		MinimumShouldMatch("60%")

	visibility := elastic.NewBoolQuery().
		Should(elastic.NewTermQuery("is_private", false)).
		MinimumShouldMatch("1")
	if hasActor {
		visibility = visibility.Should(elastic.NewTermQuery("uid", actorUID))
		if len(visibleUIDs) > 0 {
			uids := make([]interface{}, len(visibleUIDs))
			for i, uid := range visibleUIDs {
				uids[i] = uid
			}
			visibility = visibility.Should(elastic.NewTermsQuery("uid", uids...))
		}
	}

	return elastic.NewBoolQuery().Must(match).Filter(visibility)
}

// Query returns the ids of matching posts, ranked. Callers re-resolve the
// ids against the post store; the index document is never returned.
func (s *searchIndexService) Query(ctx context.Context, queryText string, actorUID string, hasActor bool, visibleUIDs []string) ([]int64, error) {
	logger := s.Logger(ctx)
	logger.Debug("entering Query", "query", queryText, "actor_uid", actorUID)

	query := buildSearchQuery(queryText, actorUID, hasActor, visibleUIDs)
	maxResults := s.Config().MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}
	result, err := s.elasticClient.Search().
		Index(postIndexName).
		Query(query).
		Size(maxResults).
		Do(ctx)
	if err != nil {
		logger.Error("error querying posts index", "msg", err.Error())
		return nil, err
	}

	var postIDs []int64
	if result.Hits == nil {
		return postIDs, nil
	}
	for _, hit := range result.Hits.Hits {
		postID, err := strconv.ParseInt(hit.Id, 10, 64)
		if err != nil {
			logger.Error("error parsing post id from search hit", "id", hit.Id, "msg", err.Error())
			continue
		}
		postIDs = append(postIDs, postID)
	}
	return postIDs, nil
}
