package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"pocket/pkg/config"
	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/ignore"
	"pocket/pkg/lock"
	"pocket/pkg/logging"
	"pocket/pkg/merge"
	"pocket/pkg/pile"
	"pocket/pkg/types"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 测试辅助
// -----------------------------------------------------------------------------

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	v := viper.New()
	v.Set("user.name", "Tester")
	v.Set("user.email", "tester@example.com")
	repo, err := Init(context.Background(), t.TempDir(), Options{Viper: v})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func writeFile(t *testing.T, r *Repository, rel, content string) {
	t.Helper()
	abs := filepath.Join(r.Root(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func readFile(t *testing.T, r *Repository, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.Root(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func fileExists(r *Repository, rel string) bool {
	_, err := os.Stat(filepath.Join(r.Root(), filepath.FromSlash(rel)))
	return err == nil
}

// shoveFile 写入、暂存并提交一个文件
func shoveFile(t *testing.T, r *Repository, rel, content, msg string) *core.Shove {
	t.Helper()
	ctx := context.Background()
	writeFile(t, r, rel, content)
	_, err := r.Pile(ctx, []string{rel}, false)
	require.NoError(t, err)
	s, err := r.Shove(ctx, msg)
	require.NoError(t, err)
	return s
}

func headOf(t *testing.T, r *Repository, timeline string) types.Hash {
	t.Helper()
	tl, err := r.refs.Get(context.Background(), timeline)
	require.NoError(t, err)
	return types.Hash(tl.Head)
}

func collectLog(t *testing.T, r *Repository, opts LogOptions) []*core.Shove {
	t.Helper()
	seq, err := r.Log(context.Background(), opts)
	require.NoError(t, err)
	var out []*core.Shove
	for s, err := range seq {
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

// -----------------------------------------------------------------------------
// 存储初始化
// -----------------------------------------------------------------------------

func testRepoWithStorage(t *testing.T, storageType string) *Repository {
	cfg := &config.Config{}
	cfg.Storage.Type = storageType
	return &Repository{dataDir: t.TempDir(), Config: cfg, Logger: logging.Discard()}
}

func TestInitStore_Disk(t *testing.T) {
	r := testRepoWithStorage(t, "disk")
	store, err := r.initStore(context.Background(), objectsDir)
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.DirExists(t, filepath.Join(r.dataDir, objectsDir))
}

func TestInitStore_S3_MissingBucket(t *testing.T) {
	r := testRepoWithStorage(t, "s3")
	store, err := r.initStore(context.Background(), objectsDir)
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "bucket is required")
}

func TestInitStore_UnknownType(t *testing.T) {
	r := testRepoWithStorage(t, "ftp")
	store, err := r.initStore(context.Background(), objectsDir)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

// -----------------------------------------------------------------------------
// 仓库生命周期
// -----------------------------------------------------------------------------

func TestInit_EmptyRepositoryStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", st.Timeline)
	assert.True(t, st.Head.IsZero())
	assert.Empty(t, st.Staged)
	assert.Nil(t, st.Merging)
	assert.Empty(t, collectLog(t, r, LogOptions{}))

	_, err = Init(ctx, r.Root(), Options{Viper: viper.New()})
	assert.ErrorIs(t, err, errs.ErrInvalidState, "重复初始化")
}

func TestOpen_DiscoversFromSubdirectory(t *testing.T) {
	r := newTestRepo(t)
	sub := filepath.Join(r.Root(), "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	opened, err := Open(context.Background(), sub, Options{Viper: viper.New()})
	require.NoError(t, err)
	defer opened.Close()
	assert.Equal(t, r.Root(), opened.Root())
	require.NotNil(t, opened.Logger)
	opened.Logger.Debug("opened from subdirectory", "dir", sub)

	_, err = Open(context.Background(), t.TempDir(), Options{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPileShoveLog(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	s := shoveFile(t, r, "a.txt", "hello", "first")
	assert.True(t, s.IsRoot())
	assert.Equal(t, "Tester", s.Author.Name)

	// head 指向新 Shove，暂存区为空
	assert.Equal(t, s.ID(), headOf(t, r, "main"))
	changes, err := r.Diff(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)

	shoves := collectLog(t, r, LogOptions{})
	require.Len(t, shoves, 1)
	snap, err := r.snapshot(ctx, shoves[0].ID())
	require.NoError(t, err)
	require.Contains(t, snap, "a.txt")
	data, err := r.objects.GetBlob(ctx, snap["a.txt"].Hash, snap["a.txt"].Size)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// 没有变更时不能提交
	_, err = r.Shove(ctx, "again")
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Clean())
}

func TestLog_LimitAndAuthor(t *testing.T) {
	r := newTestRepo(t)
	shoveFile(t, r, "a.txt", "1", "one")
	shoveFile(t, r, "a.txt", "22", "two")
	last := shoveFile(t, r, "a.txt", "333", "three")

	all := collectLog(t, r, LogOptions{})
	require.Len(t, all, 3)
	assert.Equal(t, last.ID(), all[0].ID())

	assert.Len(t, collectLog(t, r, LogOptions{Limit: 2}), 2)
	assert.Len(t, collectLog(t, r, LogOptions{Author: "tester@example.com", Limit: 2}), 2)
	assert.Empty(t, collectLog(t, r, LogOptions{Author: "nobody"}))
}

func TestUnpile(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	writeFile(t, r, "docs/a.md", "a")
	writeFile(t, r, "docs/b.md", "b")
	writeFile(t, r, "c.txt", "c")
	_, err := r.PileAll(ctx, false)
	require.NoError(t, err)

	removed, err := r.Unpile(ctx, []string{"docs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.md", "docs/b.md"}, removed)

	_, err = r.Unpile(ctx, []string{"missing.txt"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	changes, err := r.Diff(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "c.txt", changes[0].Path)
}

func TestPilePattern_IgnoredUnlessForced(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	writeFile(t, r, "debug.log", "noise")

	res, err := r.PilePattern(ctx, "*.log", false)
	require.NoError(t, err)
	assert.Empty(t, res.Staged)

	res, err = r.PilePattern(ctx, "*.log", true)
	require.NoError(t, err)
	require.Len(t, res.Staged, 1)
	assert.Equal(t, "debug.log", res.Staged[0].Path)
}

// -----------------------------------------------------------------------------
// Timeline
// -----------------------------------------------------------------------------

func TestTimelines_CreateListDelete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	s := shoveFile(t, r, "a.txt", "hello", "first")

	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))
	assert.Equal(t, s.ID(), headOf(t, r, "feature"))
	assert.ErrorIs(t, r.CreateTimeline(ctx, "feature", ""), errs.ErrInvalidState)
	assert.ErrorIs(t, r.CreateTimeline(ctx, "bad name", ""), errs.ErrInvalidState)
	assert.ErrorIs(t, r.CreateTimeline(ctx, "other", "nosuchthing"), errs.ErrNotFound)

	tls, err := r.ListTimelines(ctx)
	require.NoError(t, err)
	require.Len(t, tls, 2)
	assert.Equal(t, "feature", tls[0].Name)
	assert.False(t, tls[0].Active)
	assert.True(t, tls[1].Active)

	require.NoError(t, r.TrackRemote(ctx, "feature", "origin", "feature"))
	tl, err := r.refs.Get(ctx, "feature")
	require.NoError(t, err)
	assert.Equal(t, "origin", tl.RemoteName)

	assert.ErrorIs(t, r.DeleteTimeline(ctx, "main"), errs.ErrInvalidState, "不能删除当前 Timeline")
	require.NoError(t, r.DeleteTimeline(ctx, "feature"))
	assert.ErrorIs(t, r.DeleteTimeline(ctx, "feature"), errs.ErrNotFound)
}

func TestSwitch_ReconcilesWorktree(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	shoveFile(t, r, "a.txt", "hello", "first")
	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))

	require.NoError(t, r.Switch(ctx, "feature", SwitchNormal))
	shoveFile(t, r, "a.txt", "hello world", "edit")
	shoveFile(t, r, "only-feature.txt", "f", "add")

	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))
	assert.Equal(t, "hello", readFile(t, r, "a.txt"))
	assert.False(t, fileExists(r, "only-feature.txt"))

	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", st.Timeline)

	assert.ErrorIs(t, r.Switch(ctx, "nope", SwitchNormal), errs.ErrNotFound)
}

// fileOnMainDirOnFeature 让 main 上的 x 是文件，feature 上的 x 是目录
func fileOnMainDirOnFeature(t *testing.T, r *Repository) {
	t.Helper()
	ctx := context.Background()
	shoveFile(t, r, "keep.txt", "k", "base")
	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))
	shoveFile(t, r, "x", "file on main", "x as file")

	require.NoError(t, r.Switch(ctx, "feature", SwitchNormal))
	assert.False(t, fileExists(r, "x"))
	shoveFile(t, r, "x/y", "nested on feature", "x as dir")
}

func TestSwitch_FileDirectorySwap(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	fileOnMainDirOnFeature(t, r)

	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))
	assert.Equal(t, "file on main", readFile(t, r, "x"))

	require.NoError(t, r.Switch(ctx, "feature", SwitchNormal))
	assert.Equal(t, "nested on feature", readFile(t, r, "x/y"))
	assert.Equal(t, "k", readFile(t, r, "keep.txt"))
}

func TestSwitch_DirtyPile(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	shoveFile(t, r, "a.txt", "v1", "first")
	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))

	writeFile(t, r, "a.txt", "v2 staged")
	_, err := r.Pile(ctx, []string{"a.txt"}, false)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Switch(ctx, "feature", SwitchNormal), errs.ErrInvalidState)

	// stash：暂存区随 main 保存，切回时恢复
	require.NoError(t, r.Switch(ctx, "feature", SwitchStash))
	assert.Equal(t, "v1", readFile(t, r, "a.txt"))
	tls, err := r.ListTimelines(ctx)
	require.NoError(t, err)
	assert.True(t, tls[slices.IndexFunc(tls, func(i TimelineInfo) bool { return i.Name == "main" })].Stashed)

	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))
	assert.Equal(t, "v2 staged", readFile(t, r, "a.txt"))
	changes, err := r.Diff(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, pile.Modified, changes[0].Kind)

	// force：丢弃暂存区
	require.NoError(t, r.Switch(ctx, "feature", SwitchForce))
	assert.Equal(t, "v1", readFile(t, r, "a.txt"))
	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))
	changes, err = r.Diff(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestSwitch_RefusesToOverwriteLocalEdits(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	shoveFile(t, r, "a.txt", "v1", "first")
	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))
	require.NoError(t, r.Switch(ctx, "feature", SwitchNormal))
	shoveFile(t, r, "a.txt", "v2", "edit")
	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))

	writeFile(t, r, "a.txt", "local edit")
	assert.ErrorIs(t, r.Switch(ctx, "feature", SwitchNormal), errs.ErrInvalidState)
	assert.Equal(t, "local edit", readFile(t, r, "a.txt"))

	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", st.Timeline, "失败时不切换")
}

// -----------------------------------------------------------------------------
// 合并
// -----------------------------------------------------------------------------

// diverge 在 main 与 feature 上分别提交 a.txt 的不同修改
func diverge(t *testing.T, r *Repository, ours, theirs string) {
	t.Helper()
	ctx := context.Background()
	shoveFile(t, r, "a.txt", "hello", "base")
	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))
	require.NoError(t, r.Switch(ctx, "feature", SwitchNormal))
	shoveFile(t, r, "a.txt", theirs, "theirs")
	shoveFile(t, r, "b.txt", "from feature", "add b")
	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))
	shoveFile(t, r, "a.txt", ours, "ours")
}

func TestMerge_FastForward(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	shoveFile(t, r, "a.txt", "hello", "first")
	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))
	require.NoError(t, r.Switch(ctx, "feature", SwitchNormal))
	edit := shoveFile(t, r, "a.txt", "hello world", "edit")
	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))

	res, err := r.Merge(ctx, "feature", MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, merge.FastForward, res.Kind)
	assert.Nil(t, res.Shove, "fast-forward 不生成 Shove")
	assert.Equal(t, edit.ID(), headOf(t, r, "main"))
	assert.Equal(t, "hello world", readFile(t, r, "a.txt"))
	assert.Len(t, collectLog(t, r, LogOptions{}), 2)

	res, err = r.Merge(ctx, "feature", MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, merge.UpToDate, res.Kind)
}

func TestMerge_NoFastForwardMode(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := shoveFile(t, r, "a.txt", "hello", "first")
	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))
	require.NoError(t, r.Switch(ctx, "feature", SwitchNormal))
	edit := shoveFile(t, r, "a.txt", "hello world", "edit")
	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))

	res, err := r.Merge(ctx, "feature", MergeOptions{Mode: merge.AlwaysCreateShove})
	require.NoError(t, err)
	require.NotNil(t, res.Shove)
	assert.Equal(t, []types.Hash{base.ID(), edit.ID()}, res.Shove.ParentIDs())
}

func TestMerge_CleanThreeWay(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	shoveFile(t, r, "a.txt", "hello", "base")
	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))
	require.NoError(t, r.Switch(ctx, "feature", SwitchNormal))
	theirs := shoveFile(t, r, "b.txt", "bbb", "add b")
	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))
	ours := shoveFile(t, r, "c.txt", "ccc", "add c")

	_, err := r.Merge(ctx, "feature", MergeOptions{Mode: merge.FastForwardOnly})
	assert.ErrorIs(t, err, merge.ErrDiverged)

	res, err := r.Merge(ctx, "feature", MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, merge.ThreeWayMerge, res.Kind)
	require.NotNil(t, res.Shove)
	assert.True(t, res.Shove.IsMerge())
	assert.Equal(t, []types.Hash{ours.ID(), theirs.ID()}, res.Shove.ParentIDs())
	assert.Equal(t, "Merge feature into main", res.Shove.Message)
	assert.Equal(t, res.Shove.ID(), headOf(t, r, "main"))

	assert.Equal(t, "bbb", readFile(t, r, "b.txt"))
	assert.Equal(t, "ccc", readFile(t, r, "c.txt"))
	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Clean())
}

func TestMerge_ConflictResolveFinish(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	diverge(t, r, "hello ours", "hello theirs")
	oursHead := headOf(t, r, "main")

	res, err := r.Merge(ctx, "feature", MergeOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConflict)
	require.NotNil(t, res)
	require.Len(t, res.Conflicts, 1)
	c := res.Conflicts[0]
	assert.Equal(t, "a.txt", c.Path)
	assert.False(t, c.Base.IsZero())
	assert.False(t, c.Ours.IsZero())
	assert.False(t, c.Theirs.IsZero())

	// 冲突路径保留 ours，不写入冲突标记；非冲突的变更已进入工作区
	assert.Equal(t, "hello ours", readFile(t, r, "a.txt"))
	assert.Equal(t, "from feature", readFile(t, r, "b.txt"))

	st, err := r.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.Merging)
	assert.Equal(t, "feature", st.Merging.Source)
	require.Len(t, st.Conflicts, 1)

	// 合并期间禁止提交与切换
	_, err = r.Shove(ctx, "too early")
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	assert.ErrorIs(t, r.Switch(ctx, "feature", SwitchForce), errs.ErrInvalidState)
	_, err = r.FinishMerge(ctx, "")
	assert.ErrorIs(t, err, errs.ErrConflict)

	assert.ErrorIs(t, r.Resolve(ctx, "b.txt", merge.Resolution{Kind: merge.UseOurs}), errs.ErrNotFound)
	require.NoError(t, r.Resolve(ctx, "a.txt", merge.Resolution{Kind: merge.UseTheirs}))
	assert.Equal(t, "hello theirs", readFile(t, r, "a.txt"))

	s, err := r.FinishMerge(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, oursHead, s.ParentIDs()[0])
	assert.Equal(t, headOf(t, r, "feature"), s.ParentIDs()[1])
	assert.Equal(t, "Merge feature into main", s.Message)

	snap, err := r.snapshot(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, snap.Paths())

	st, err = r.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.Merging)
	assert.True(t, st.Clean())
}

func TestMerge_FileDirectoryConflict(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	fileOnMainDirOnFeature(t, r)
	oursHead := headOf(t, r, "feature")

	res, err := r.Merge(ctx, "main", MergeOptions{})
	require.ErrorIs(t, err, errs.ErrConflict)
	var ce *errs.ConflictError
	require.ErrorAs(t, err, &ce)
	require.NotNil(t, res)

	var paths []string
	for _, c := range res.Conflicts {
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{"x", "x/y"}, paths)
	assert.Equal(t, "nested on feature", readFile(t, r, "x/y"), "工作区保留 ours")
	assert.Equal(t, oursHead, headOf(t, r, "feature"))

	require.NoError(t, r.Resolve(ctx, "x", merge.Resolution{Kind: merge.UseOurs}))
	require.NoError(t, r.Resolve(ctx, "x/y", merge.Resolution{Kind: merge.UseOurs}))
	s, err := r.FinishMerge(ctx, "")
	require.NoError(t, err)

	snap, err := r.snapshot(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt", "x/y"}, snap.Paths())
}

func TestMerge_ResolveWithContentAndDelete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	diverge(t, r, "hello ours", "hello theirs")

	_, err := r.Merge(ctx, "feature", MergeOptions{})
	require.ErrorIs(t, err, errs.ErrConflict)

	require.NoError(t, r.Resolve(ctx, "a.txt", merge.Resolution{Kind: merge.UseContent, Content: []byte("hand merged")}))
	assert.Equal(t, "hand merged", readFile(t, r, "a.txt"))
	require.NoError(t, r.Resolve(ctx, "a.txt", merge.Resolution{Kind: merge.UseDelete}))
	assert.False(t, fileExists(r, "a.txt"))

	s, err := r.FinishMerge(ctx, "merged by hand")
	require.NoError(t, err)
	snap, err := r.snapshot(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, snap.Paths())
}

func TestMerge_OursStrategy(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	diverge(t, r, "hello ours", "hello theirs")

	res, err := r.Merge(ctx, "feature", MergeOptions{Strategy: "ours"})
	require.NoError(t, err)
	require.NotNil(t, res.Shove)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, "hello ours", readFile(t, r, "a.txt"))
	assert.Equal(t, "from feature", readFile(t, r, "b.txt"))

	_, err = r.Merge(ctx, "feature", MergeOptions{Strategy: "octopus"})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestMerge_Abort(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	diverge(t, r, "hello ours", "hello theirs")
	oursHead := headOf(t, r, "main")

	_, err := r.Merge(ctx, "feature", MergeOptions{})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.NoError(t, r.AbortMerge(ctx))

	assert.Equal(t, "hello ours", readFile(t, r, "a.txt"))
	assert.False(t, fileExists(r, "b.txt"))
	assert.Equal(t, oursHead, headOf(t, r, "main"))
	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.Merging)
	assert.True(t, st.Clean())

	assert.ErrorIs(t, r.AbortMerge(ctx), errs.ErrInvalidState, "没有进行中的合并")
}

func TestMerge_RequiresEmptyPile(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	diverge(t, r, "hello ours", "hello theirs")
	writeFile(t, r, "new.txt", "n")
	_, err := r.Pile(ctx, []string{"new.txt"}, false)
	require.NoError(t, err)

	_, err = r.Merge(ctx, "feature", MergeOptions{})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

// -----------------------------------------------------------------------------
// Undo / Redo
// -----------------------------------------------------------------------------

func TestUndoRedo_Shove(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Undo(ctx)
	assert.ErrorIs(t, err, ErrNothingToUndo)

	first := shoveFile(t, r, "a.txt", "v1", "first")
	second := shoveFile(t, r, "a.txt", "v2 longer", "second")

	op, err := r.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, opShove, op.Kind)
	assert.Equal(t, first.ID(), headOf(t, r, "main"))
	// 撤销提交后变更回到暂存区，工作区不变
	changes, err := r.Diff(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "a.txt", changes[0].Path)
	assert.Equal(t, "v2 longer", readFile(t, r, "a.txt"))

	_, err = r.Redo(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID(), headOf(t, r, "main"))
	changes, err = r.Diff(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)

	_, err = r.Redo(ctx)
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestUndo_SwitchRestoresWorktree(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	shoveFile(t, r, "a.txt", "v1", "first")
	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))
	require.NoError(t, r.Switch(ctx, "feature", SwitchNormal))
	shoveFile(t, r, "a.txt", "v2 on feature", "edit")
	require.NoError(t, r.Switch(ctx, "main", SwitchNormal))
	assert.Equal(t, "v1", readFile(t, r, "a.txt"))

	op, err := r.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, opSwitch, op.Kind)
	assert.Equal(t, "v2 on feature", readFile(t, r, "a.txt"))
	active, err := r.refs.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feature", active)
}

func TestUndo_NewOperationDropsRedo(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	shoveFile(t, r, "a.txt", "v1", "first")
	_, err := r.Undo(ctx)
	require.NoError(t, err)

	require.NoError(t, r.CreateTimeline(ctx, "feature", ""))
	_, err = r.Redo(ctx)
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

// -----------------------------------------------------------------------------
// 并发与远程原语
// -----------------------------------------------------------------------------

func TestLock_BusyRepository(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	r.Config.Lock.Timeout = 100 * time.Millisecond
	writeFile(t, r, "a.txt", "hello")

	held, err := lock.Acquire(ctx, filepath.Join(r.dataDir, lockFile), time.Second)
	require.NoError(t, err)

	_, err = r.Pile(ctx, []string{"a.txt"}, false)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	assert.Contains(t, err.Error(), "busy")

	// 写入状态缓存或索引的读取类操作同样需要锁
	_, err = r.Status(ctx)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	_, _, err = r.ImportObject(ctx, []byte("remote blob"))
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	_, err = r.ImportShove(ctx, []byte("not a shove"))
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	require.NoError(t, held.Release())
	_, err = r.Pile(ctx, []string{"a.txt"}, false)
	assert.NoError(t, err)
	_, err = r.Status(ctx)
	assert.NoError(t, err)
}

// transfer 把 src 中一个 Shove 的全部对象导入 dst
func transfer(t *testing.T, src, dst *Repository, id types.Hash) {
	t.Helper()
	ctx := context.Background()
	order, err := src.ExportShove(ctx, id)
	require.NoError(t, err)
	for _, oid := range order {
		raw, err := src.ExportObject(ctx, oid)
		require.NoError(t, err)
		got, _, err := dst.ImportObject(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, oid, got)
	}
}

func TestRemotePrimitives(t *testing.T) {
	ctx := context.Background()
	upstream := newTestRepo(t)
	local := newTestRepo(t)

	first := shoveFile(t, upstream, "a.txt", "hello", "first")
	transfer(t, upstream, local, first.ID())
	require.NoError(t, local.FastForward(ctx, "main", first.ID()))
	assert.Equal(t, "hello", readFile(t, local, "a.txt"))
	assert.Len(t, collectLog(t, local, LogOptions{Author: "Tester"}), 1, "导入的 Shove 已建立索引")

	// 父节点缺失时导入失败
	second := shoveFile(t, upstream, "a.txt", "hello again", "second")
	third := shoveFile(t, upstream, "c.txt", "c", "third")
	raw, err := upstream.ExportObject(ctx, third.ID())
	require.NoError(t, err)
	_, err = local.ImportShove(ctx, raw)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// 本地分叉后无法 fast-forward
	transfer(t, upstream, local, second.ID())
	shoveFile(t, local, "local.txt", "l", "local work")
	assert.ErrorIs(t, local.FastForward(ctx, "main", second.ID()), merge.ErrDiverged)
	assert.ErrorIs(t, local.FastForward(ctx, "main", types.Hash("0000000000000000000000000000000000000000000000000000000000000000")), errs.ErrNotFound)
}

func TestCat(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	s := shoveFile(t, r, "a.txt", "hello", "first")

	var out bytes.Buffer
	require.NoError(t, r.Cat(ctx, "main", &out, false))
	assert.Contains(t, out.String(), "first")

	snap, err := r.snapshot(ctx, s.ID())
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, r.Cat(ctx, string(snap["a.txt"].Hash)[:12], &out, true))
	assert.Equal(t, "hello", out.String())
}

func TestIgnore(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, r.IgnoreAdd(ctx, "*.bin"))
	assert.FileExists(t, filepath.Join(r.Root(), ignore.FileName))

	writeFile(t, r, "build/out.bin", "x")
	writeFile(t, r, "src/main.go", "package main")
	res, err := r.PileAll(ctx, false)
	require.NoError(t, err)
	var staged []string
	for _, e := range res.Staged {
		staged = append(staged, e.Path)
	}
	assert.Contains(t, staged, "src/main.go")
	assert.NotContains(t, staged, "build/out.bin")

	require.NoError(t, r.IgnoreRemove(ctx, "*.bin"))
	assert.ErrorIs(t, r.IgnoreRemove(ctx, "*.bin"), errs.ErrNotFound)
	assert.False(t, slices.ContainsFunc(r.IgnoreList(), func(p ignore.Pattern) bool { return p.Pattern == "*.bin" }))
}
