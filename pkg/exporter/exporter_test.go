package exporter

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/objects"
	"pocket/pkg/storage/disk"
	"pocket/pkg/treebuilder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	root  string
	store *objects.Store
	exp   *Exporter
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	objs, err := disk.NewAdapter(filepath.Join(root, ".pocket", "objects"))
	require.NoError(t, err)
	shoves, err := disk.NewAdapter(filepath.Join(root, ".pocket", "shoves"))
	require.NoError(t, err)
	store := objects.New(objs, shoves)
	return &testEnv{root: root, store: store, exp: NewExporter(root, store)}
}

func (e *testEnv) snapshot(t *testing.T, files map[string]string) treebuilder.Snapshot {
	t.Helper()
	snap := make(treebuilder.Snapshot)
	for p, content := range files {
		res, err := e.store.StoreBlob(context.Background(), []byte(content))
		require.NoError(t, err)
		snap[p] = treebuilder.FileRef{Hash: res.Hash, Size: res.Size}
	}
	return snap
}

func (e *testEnv) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) write(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestExportFile_LargeRoundTrip(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// 500KB 随机数据，足以触发分块
	original := make([]byte, 500*1024)
	_, err := rand.Read(original)
	require.NoError(t, err)

	res, err := env.store.StoreBlob(ctx, original)
	require.NoError(t, err)
	require.True(t, res.Chunked)

	var buf bytes.Buffer
	require.NoError(t, env.exp.ExportFile(ctx, treebuilder.FileRef{Hash: res.Hash, Size: res.Size}, &buf))
	assert.True(t, bytes.Equal(original, buf.Bytes()), "数据应完整还原")
}

func TestReconcile_FromEmpty(t *testing.T) {
	env := setupEnv(t)
	to := env.snapshot(t, map[string]string{"a.txt": "A", "dir/sub/b.txt": "B"})

	report, err := env.exp.Reconcile(context.Background(), treebuilder.Snapshot{}, to, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "dir/sub/b.txt"}, report.Written)
	assert.Equal(t, "B", env.read(t, "dir/sub/b.txt"))
}

func TestReconcile_Switch(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	from := env.snapshot(t, map[string]string{"keep.txt": "k", "edit.txt": "1", "gone/x.txt": "x"})
	to := env.snapshot(t, map[string]string{"keep.txt": "k", "edit.txt": "2", "new.txt": "n"})

	_, err := env.exp.Reconcile(ctx, nil, from, false)
	require.NoError(t, err)
	env.write(t, "untracked.txt", "mine")

	report, err := env.exp.Reconcile(ctx, from, to, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"gone/x.txt"}, report.Removed)
	assert.Equal(t, []string{"edit.txt", "new.txt"}, report.Written)

	assert.Equal(t, "2", env.read(t, "edit.txt"))
	assert.Equal(t, "mine", env.read(t, "untracked.txt"), "未跟踪的文件不受影响")
	_, err = os.Stat(filepath.Join(env.root, "gone"))
	assert.True(t, os.IsNotExist(err), "空目录应被清理")
}

func TestReconcile_TouchedAborts(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	from := env.snapshot(t, map[string]string{"edit.txt": "1", "del.txt": "d"})
	to := env.snapshot(t, map[string]string{"edit.txt": "2"})

	_, err := env.exp.Reconcile(ctx, nil, from, false)
	require.NoError(t, err)
	env.write(t, "edit.txt", "local change")
	env.write(t, "del.txt", "local change too")

	_, err = env.exp.Reconcile(ctx, from, to, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	var touched *TouchedError
	require.ErrorAs(t, err, &touched)
	assert.Equal(t, []string{"del.txt", "edit.txt"}, touched.Paths)

	// 在改动任何文件之前中止
	assert.Equal(t, "local change", env.read(t, "edit.txt"))
	assert.Equal(t, "local change too", env.read(t, "del.txt"))

	// force 覆盖本地改动
	_, err = env.exp.Reconcile(ctx, from, to, true)
	require.NoError(t, err)
	assert.Equal(t, "2", env.read(t, "edit.txt"))
}

func TestReconcile_UntrackedCollision(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	to := env.snapshot(t, map[string]string{"new.txt": "theirs"})

	env.write(t, "new.txt", "mine")
	_, err := env.exp.Reconcile(ctx, nil, to, false)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	// 内容已一致时不算冲突
	env.write(t, "new.txt", "theirs")
	_, err = env.exp.Reconcile(ctx, nil, to, false)
	assert.NoError(t, err)
}

func TestReconcile_FileDirectorySwap(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	asDir := env.snapshot(t, map[string]string{"x/y": "nested"})
	asFile := env.snapshot(t, map[string]string{"x": "flat"})

	_, err := env.exp.Reconcile(ctx, nil, asDir, false)
	require.NoError(t, err)

	// 目录 x 只包含即将删除的未改动文件
	report, err := env.exp.Reconcile(ctx, asDir, asFile, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"x/y"}, report.Removed)
	assert.Equal(t, []string{"x"}, report.Written)
	assert.Equal(t, "flat", env.read(t, "x"))

	// 反方向：文件 x 被删除后才能创建目录 x
	_, err = env.exp.Reconcile(ctx, asFile, asDir, false)
	require.NoError(t, err)
	assert.Equal(t, "nested", env.read(t, "x/y"))
}

func TestReconcile_DirectoryWithUntrackedFile(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	asDir := env.snapshot(t, map[string]string{"x/y": "nested"})
	asFile := env.snapshot(t, map[string]string{"x": "flat"})

	_, err := env.exp.Reconcile(ctx, nil, asDir, false)
	require.NoError(t, err)
	env.write(t, "x/mine.txt", "untracked")

	_, err = env.exp.Reconcile(ctx, asDir, asFile, false)
	var touched *TouchedError
	require.ErrorAs(t, err, &touched)
	assert.Equal(t, []string{"x"}, touched.Paths)
	assert.Equal(t, "untracked", env.read(t, "x/mine.txt"))
	assert.Equal(t, "nested", env.read(t, "x/y"))
}

func TestCheckout_SmallFileLookingLikeFileNode(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	content := []byte{
		0xa3,
		0x61, 't', 0x68, 'f', 'i', 'l', 'e', 'n', 'o', 'd', 'e',
		0x62, 't', 's', 0x00,
		0x62, 'c', 's', 0x80,
	}
	res, err := env.store.StoreBlob(ctx, content)
	require.NoError(t, err)

	ref := &treebuilder.FileRef{Hash: res.Hash, Size: res.Size}
	require.NoError(t, env.exp.Checkout(ctx, "data.cbor", ref))
	assert.Equal(t, string(content), env.read(t, "data.cbor"))

	require.NoError(t, env.exp.Checkout(ctx, "data.cbor", nil))
	_, err = os.Stat(filepath.Join(env.root, "data.cbor"))
	assert.True(t, os.IsNotExist(err))
}

func TestCheckout_DeleteWhereDirectoryStands(t *testing.T) {
	env := setupEnv(t)
	env.write(t, "x/y", "nested")

	require.NoError(t, env.exp.Checkout(context.Background(), "x", nil))
	assert.Equal(t, "nested", env.read(t, "x/y"))
}

func TestPrintObject(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	blob, err := env.store.StoreBlob(ctx, []byte("hello print"))
	require.NoError(t, err)
	tree, err := env.store.StoreTree(ctx, []core.TreeEntry{{
		Name: "hello.txt", Type: core.EntryFile, Cid: core.NewRawLink(blob.Hash), Size: blob.Size,
	}})
	require.NoError(t, err)
	s, err := core.NewShoveAt(tree.ID(), nil, core.Author{Name: "dev", Email: "dev@example.com"}, "initial", 1700000000)
	require.NoError(t, err)
	require.NoError(t, env.store.StoreShove(ctx, s))

	var buf bytes.Buffer
	require.NoError(t, env.exp.PrintObject(ctx, s.ID(), &buf))
	out := buf.String()
	assert.Contains(t, out, "Type:    Shove")
	assert.Contains(t, out, "dev <dev@example.com>")
	assert.Contains(t, out, core.NewLink(tree.ID()).String())

	buf.Reset()
	require.NoError(t, env.exp.PrintObject(ctx, tree.ID(), &buf))
	assert.Contains(t, buf.String(), "hello.txt")
	assert.Contains(t, buf.String(), blob.Hash.Short())

	buf.Reset()
	require.NoError(t, env.exp.PrintObject(ctx, blob.Hash, &buf))
	assert.Contains(t, buf.String(), "hello print")

	err = env.exp.PrintObject(ctx, "0000000000000000000000000000000000000000000000000000000000000000", &buf)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
