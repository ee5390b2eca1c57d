package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/kart-io/sentinel-cluster/internal/model"
)

// TestAttachContext 测试消息附带同一会话中紧邻的前序轮次。
func TestAttachContext(t *testing.T) {
	h := []messageDoc{
		{ID: "1", SessionID: "s", Role: "user", Content: "a"},
		{ID: "2", SessionID: "s", Role: "assistant", Content: "b"},
		{ID: "3", SessionID: "s", Role: "user", Content: "c"},
		{ID: "4", SessionID: "s", Role: "assistant", Content: "d"},
		{ID: "5", SessionID: "s", Role: "user", Content: "e"},
	}
	docs := []messageDoc{h[4], h[0], {ID: "x", SessionID: "other", Role: "user", Content: "z"}}

	items := attachContext(docs, map[string][]messageDoc{"s": h}, 3)
	require.Len(t, items, 3)

	last := items[0].(*model.Message)
	assert.Equal(t, []model.Turn{
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
		{Role: "assistant", Content: "d"},
	}, last.Previous)

	assert.Empty(t, items[1].(*model.Message).Previous)
	assert.Empty(t, items[2].(*model.Message).Previous)
}

func TestItemFilter(t *testing.T) {
	f := itemFilter("p1", map[string]any{"tags": "billing", "project_id": "spoofed"})
	assert.Equal(t, "p1", f["project_id"])
	assert.Equal(t, "billing", f["tags"])
}

func TestFingerprintIndexes(t *testing.T) {
	idx := fingerprintIndexes()
	require.Len(t, idx, 3)
	for _, m := range idx {
		require.NotNil(t, m.Options.Unique)
		assert.True(t, *m.Options.Unique)
		assert.NotNil(t, m.Options.PartialFilterExpression)
	}
	assert.Equal(t, "task_id", idx[0].Keys.(bson.D)[0].Key)
}

func TestCompletionFields(t *testing.T) {
	now := time.Now()
	f := completionFields(model.Completion{NbClusters: 3}, now)
	assert.Equal(t, model.StatusCompleted, f["status"])
	assert.Equal(t, 100.0, f["percent_of_completion"])
	assert.Equal(t, []string{}, f["clusters_ids"])
	assert.Equal(t, []model.PCAPoint{}, f["pca"])
	assert.Equal(t, now, f["completed_at"])
}

func TestFindFilter(t *testing.T) {
	f := findFilter(model.ScopeUsers, []string{"u1"}, "m", "i")
	assert.Equal(t, bson.M{"$in": []string{"u1"}}, f["user_id"])
	assert.Equal(t, "m", f["model"])
}

// TestRecentUsersPipeline 测试用户粒度先按最近会话聚合并限制用户数。
func TestRecentUsersPipeline(t *testing.T) {
	f := bson.M{"project_id": "p"}
	pipeline := recentUsersPipeline(f, 7)
	require.Len(t, pipeline, 4)

	assert.Equal(t, "$match", pipeline[0][0].Key)
	assert.Equal(t, f, pipeline[0][0].Value)
	assert.Equal(t, "$group", pipeline[1][0].Key)
	assert.Equal(t, "$sort", pipeline[2][0].Key)
	assert.Equal(t, bson.E{Key: "$limit", Value: int64(7)}, pipeline[3][0])
}

func TestGroupUsers(t *testing.T) {
	sessions := []*model.Session{
		{ID: "s1", UserID: "u1"},
		{ID: "s2", UserID: "u2"},
		{ID: "s3", UserID: "u1"},
		{ID: "s4", UserID: "u3"},
		{ID: "s5", UserID: "u1"},
	}

	items := groupUsers(sessions, 2, 2)
	require.Len(t, items, 2)
	u1 := items[0].(*model.User)
	assert.Equal(t, "u1", u1.ID)
	require.Len(t, u1.Sessions, 2)
	assert.Equal(t, "s1", u1.Sessions[0].ID)
	assert.Equal(t, "s3", u1.Sessions[1].ID)
	assert.Equal(t, "u2", items[1].ItemID())

	assert.Len(t, groupUsers(sessions, 0, 0), 3)
	assert.Empty(t, groupUsers(nil, 5, 5))
}
