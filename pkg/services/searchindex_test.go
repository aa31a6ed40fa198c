package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func querySource(t *testing.T, queryText string, actorUID string, hasActor bool, visibleUIDs []string) string {
	t.Helper()
	src, err := buildSearchQuery(queryText, actorUID, hasActor, visibleUIDs).Source()
	require.NoError(t, err)
	data, err := json.Marshal(src)
	require.NoError(t, err)
	return string(data)
}

func TestBuildSearchQueryMatchClause(t *testing.T) {
	src := querySource(t, "HeLLo World", "user-a", true, nil)

	// fuzzy, case-folded, multi-field with the 60% terms threshold
	assert.Contains(t, src, `"multi_match"`)
	assert.Contains(t, src, `"hello world"`)
	assert.Contains(t, src, `"fuzziness":"AUTO"`)
	assert.Contains(t, src, `"operator":"or"`)
	assert.Contains(t, src, `"minimum_should_match":"60%"`)
	assert.Contains(t, src, `"text"`)
	assert.Contains(t, src, `"sender_username"`)
}

func TestBuildSearchQueryAnonymousVisibility(t *testing.T) {
	src := querySource(t, "hello", "", false, nil)

	// anonymous searches only see public posts
	assert.Contains(t, src, `"is_private":false`)
	assert.NotContains(t, src, `"uid"`)
}

func TestBuildSearchQueryActorVisibility(t *testing.T) {
	src := querySource(t, "hello", "user-a", true, nil)

	assert.Contains(t, src, `"is_private":false`)
	assert.Contains(t, src, `"uid":"user-a"`)
	// no terms clause without mutual friends
	assert.NotContains(t, src, `"terms"`)
}

func TestBuildSearchQueryMutualFriendVisibility(t *testing.T) {
	src := querySource(t, "hello", "user-a", true, []string{"user-b", "user-c"})

	assert.Contains(t, src, `"uid":"user-a"`)
	assert.Contains(t, src, `"terms"`)
	assert.Contains(t, src, `"user-b"`)
	assert.Contains(t, src, `"user-c"`)
}
