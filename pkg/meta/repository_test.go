package meta

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"pocket/pkg/errs"
	"pocket/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_ShoveIndex(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	parentHash := mockHash("parent_data")
	s := mustNewShove(t, mockHash("tree_data"), []types.Hash{parentHash}, "Alice", "Init", 1700000000)

	mustIndexShove(t, repo, s, "First index should succeed")
	mustIndexShove(t, repo, s, "2nd write (idempotency check) failed")

	stored, err := repo.GetShoveIndex(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.AuthorName)
	assert.JSONEq(t, fmt.Sprintf(`["%s"]`, parentHash), string(stored.Parents))

	var count int64
	require.NoError(t, repo.db.GetConn().Model(&ShoveModel{}).Where("hash = ?", string(s.ID())).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = repo.GetShoveIndex(ctx, mockHash("missing"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRepository_FindShovesByAuthor(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s1 := mustNewShove(t, mockHash("t1"), nil, "Alice", "1", 1000)
	s2 := mustNewShove(t, mockHash("t2"), nil, "Bob", "2", 2000)
	s3 := mustNewShove(t, mockHash("t3"), nil, "Alice", "3", 3000)
	mustIndexShove(t, repo, s1)
	mustIndexShove(t, repo, s2)
	mustIndexShove(t, repo, s3)

	results, err := repo.FindShovesByAuthor(ctx, "Alice", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, string(s3.ID()), results[0].Hash, "Newest shove should be first")
	assert.Equal(t, string(s1.ID()), results[1].Hash)

	byEmail, err := repo.FindShovesByAuthor(ctx, "Bob@example.com", 0)
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)
}

func TestRepository_Timeline_CAS(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	mustCreateTimeline(t, repo, "main", "")

	tl, err := repo.GetTimeline(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tl.Version)
	assert.Empty(t, tl.Head)

	// 版本号不匹配
	err = repo.UpdateHead(ctx, "main", mockHash("v2"), 999)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	require.NoError(t, repo.UpdateHead(ctx, "main", mockHash("v2"), 1))
	tl, err = repo.GetTimeline(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, int64(2), tl.Version)
	assert.Equal(t, string(mockHash("v2")), tl.Head)
}

func TestRepository_Timeline_Lifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	mustCreateTimeline(t, repo, "main", "")
	mustCreateTimeline(t, repo, "feature", mockHash("x"))

	err := repo.CreateTimeline(ctx, "main", "")
	assert.ErrorIs(t, err, ErrTimelineExists)

	tls, err := repo.ListTimelines(ctx)
	require.NoError(t, err)
	require.Len(t, tls, 2)
	assert.Equal(t, "feature", tls[0].Name)

	require.NoError(t, repo.SetRemote(ctx, "feature", "origin", "feature"))
	tl, err := repo.GetTimeline(ctx, "feature")
	require.NoError(t, err)
	assert.Equal(t, "origin", tl.RemoteName)

	require.NoError(t, repo.DeleteTimeline(ctx, "feature"))
	_, err = repo.GetTimeline(ctx, "feature")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteTimeline(ctx, "feature"), ErrTimelineNotFound)
}

func TestRepository_Pile(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.PutPileEntry(ctx, PileEntry{Path: "b.txt", Status: "added", Hash: string(mockHash("b"))}))
	require.NoError(t, repo.PutPileEntry(ctx, PileEntry{Path: "a.txt", Status: "added", Hash: string(mockHash("a"))}))
	// 覆盖
	require.NoError(t, repo.PutPileEntry(ctx, PileEntry{Path: "a.txt", Status: "modified", Hash: string(mockHash("a2"))}))

	entries, err := repo.ListPile(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Path)
	assert.Equal(t, "modified", entries[0].Status)

	// 暂存到 stash 槽位
	require.NoError(t, repo.MovePile(ctx, "", "stash/main"))
	entries, err = repo.ListPile(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
	stashed, err := repo.ListPile(ctx, "stash/main")
	require.NoError(t, err)
	assert.Len(t, stashed, 2)

	removed, err := repo.DeletePileEntry(ctx, "stash/main", "a.txt")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.DeletePileEntry(ctx, "stash/main", "a.txt")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRepository_MergeState(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	ms, err := repo.GetMergeState(ctx)
	require.NoError(t, err)
	assert.Nil(t, ms)

	require.NoError(t, repo.SaveMergeState(ctx, MergeState{Source: "feature", Target: "main"}, []Conflict{
		{Path: "z.txt", Ours: string(mockHash("o")), Theirs: string(mockHash("t"))},
		{Path: "a.txt", Ours: string(mockHash("o2"))},
	}))

	ms, err = repo.GetMergeState(ctx)
	require.NoError(t, err)
	require.NotNil(t, ms)
	assert.Equal(t, "feature", ms.Source)

	cs, err := repo.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "a.txt", cs[0].Path)

	cs[0].Resolved = true
	cs[0].Resolution = "ours"
	require.NoError(t, repo.SaveConflict(ctx, cs[0]))
	c, err := repo.GetConflict(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, c.Resolved)

	require.NoError(t, repo.ClearMergeState(ctx))
	ms, err = repo.GetMergeState(ctx)
	require.NoError(t, err)
	assert.Nil(t, ms)
	cs, err = repo.ListConflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestRepository_Transaction_Rollback(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	mustCreateTimeline(t, repo, "main", "")

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx *Repository) error {
		require.NoError(t, tx.UpdateHead(ctx, "main", mockHash("h"), 1))
		require.NoError(t, tx.SetSetting(ctx, KeyActiveTimeline, "main"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	tl, err := repo.GetTimeline(ctx, "main")
	require.NoError(t, err)
	assert.Empty(t, tl.Head, "事务失败时 head 不能移动")

	_, ok, err := repo.GetSetting(ctx, KeyActiveTimeline)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_FileStat(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	got, err := repo.GetFileStat(ctx, "a.txt")
	require.NoError(t, err)
	assert.Nil(t, got, "Should return nil on cache miss")

	require.NoError(t, repo.SaveFileStat(ctx, FileStat{Path: "a.txt", Size: 3, ModTimeNs: 42, Hash: string(mockHash("a"))}))
	require.NoError(t, repo.SaveFileStat(ctx, FileStat{Path: "a.txt", Size: 4, ModTimeNs: 43, Hash: string(mockHash("a2"))}))

	got, err = repo.GetFileStat(ctx, "a.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(4), got.Size)
	assert.Equal(t, string(mockHash("a2")), got.Hash)
}

func TestNewDB_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "state.db")})
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.CreateTimeline(ctx, "main", ""))

	_, err = NewDB(ctx, Config{Driver: "mysql"})
	assert.Error(t, err)
}
