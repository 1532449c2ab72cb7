package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/threadbbs/models"
)

func TestBuildTreeOrdersRepliesAndFiles(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	root := models.Post{ID: 1, CreatedAt: t0}
	descendants := []models.Post{
		{ID: 4, ParentID: uintPtr(1), CreatedAt: t0.Add(time.Minute)},
		{ID: 2, ParentID: uintPtr(1), CreatedAt: t0.Add(2 * time.Minute)},
		{ID: 3, ParentID: uintPtr(1), CreatedAt: t0.Add(time.Minute)},
		{ID: 5, ParentID: uintPtr(3), CreatedAt: t0.Add(3 * time.Minute)},
		{ID: 9, ParentID: uintPtr(42), CreatedAt: t0},
	}
	files := []models.Attachment{
		{ID: 8, PostID: 1, Filename: "b.txt"},
		{ID: 7, PostID: 1, Filename: "a.txt"},
		{ID: 6, PostID: 5, Filename: "c.txt"},
	}

	out := BuildTree([]models.Post{root}, descendants, files)
	require.Len(t, out, 1)
	r := out[0]

	require.Len(t, r.Replies, 3)
	assert.Equal(t, []uint{3, 4, 2}, []uint{r.Replies[0].ID, r.Replies[1].ID, r.Replies[2].ID})
	require.Len(t, r.Replies[0].Replies, 1)
	assert.Equal(t, uint(5), r.Replies[0].Replies[0].ID)
	assert.Equal(t, "c.txt", r.Replies[0].Replies[0].Files[0].Filename)

	require.Len(t, r.Files, 2)
	assert.Equal(t, "a.txt", r.Files[0].Filename)
	assert.Equal(t, "b.txt", r.Files[1].Filename)
}

func TestBuildTreeLeavesEmptyArrays(t *testing.T) {
	out := BuildTree([]models.Post{{ID: 1}}, nil, nil)

	b, err := json.Marshal(out[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"files":[]`)
	assert.Contains(t, string(b), `"replies":[]`)
	assert.Contains(t, string(b), `"parent":null`)
}

func TestSerializeNestsToAnyDepth(t *testing.T) {
	svc, db := newTestService(t)
	t0 := time.Now().UTC().Truncate(time.Second)

	root := insertPost(t, db, nil, t0)
	parent := root.ID
	const depth = 150
	for i := 1; i <= depth; i++ {
		p := insertPost(t, db, &parent, t0.Add(time.Duration(i)*time.Second))
		parent = p.ID
	}

	view, err := svc.Serialize(bg, root)
	require.NoError(t, err)

	levels := 0
	for n := view; len(n.Replies) > 0; n = n.Replies[0] {
		require.Len(t, n.Replies, 1)
		levels++
	}
	assert.Equal(t, depth, levels)
}

func TestSerializeRepliesFollowCreationTime(t *testing.T) {
	svc, db := newTestService(t)
	t0 := time.Now().UTC().Truncate(time.Second)

	root := insertPost(t, db, nil, t0)
	later := insertPost(t, db, &root.ID, t0.Add(2*time.Minute))
	earlier := insertPost(t, db, &root.ID, t0.Add(time.Minute))

	view, err := svc.Serialize(bg, root)
	require.NoError(t, err)
	require.Len(t, view.Replies, 2)
	assert.Equal(t, earlier.ID, view.Replies[0].ID)
	assert.Equal(t, later.ID, view.Replies[1].ID)
}

func TestBuildTreeDeepChainEncodes(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	const depth = 10000
	descendants := make([]models.Post, 0, depth)
	for i := 2; i <= depth+1; i++ {
		descendants = append(descendants, models.Post{ID: uint(i), ParentID: uintPtr(uint(i - 1)), CreatedAt: t0})
	}

	out := BuildTree([]models.Post{{ID: 1, CreatedAt: t0}}, descendants, nil)
	require.Len(t, out, 1)

	b, err := json.Marshal(out[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"id":10001,`)
}

func TestSerializeManyKeepsInputOrder(t *testing.T) {
	svc, db := newTestService(t)
	t0 := time.Now().UTC().Truncate(time.Second)

	a := insertPost(t, db, nil, t0)
	b := insertPost(t, db, nil, t0)
	late := insertPost(t, db, &a.ID, t0.Add(time.Hour))
	early := insertPost(t, db, &a.ID, t0.Add(time.Minute))
	require.NoError(t, db.Create(&models.Attachment{PostID: late.ID, Filename: "x.txt", ContentType: "text/plain", Payload: "eA=="}).Error)

	views, err := svc.SerializeMany(bg, []models.Post{b, a})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, b.ID, views[0].ID)
	assert.Empty(t, views[0].Replies)

	require.Len(t, views[1].Replies, 2)
	assert.Equal(t, early.ID, views[1].Replies[0].ID)
	assert.Equal(t, late.ID, views[1].Replies[1].ID)
	require.Len(t, views[1].Replies[1].Files, 1)
	assert.Equal(t, "eA==", views[1].Replies[1].Files[0].FileBase64)
}

func TestLoadDescendantsStopsOnCycles(t *testing.T) {
	_, db := newTestService(t)
	t0 := time.Now().UTC()

	x := insertPost(t, db, nil, t0)
	y := insertPost(t, db, &x.ID, t0)
	// corrupt data: x now points back at its own child
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", x.ID).Update("parent_id", y.ID).Error)

	got, err := loadDescendants(db, []uint{x.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, y.ID, got[0].ID)
}
