package objects

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/ingester"
	"pocket/pkg/storage/disk"
	"pocket/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 返回对象库以及对象目录 (用于模拟损坏)
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	objDir := filepath.Join(root, "objects")
	objs, err := disk.NewAdapter(objDir)
	require.NoError(t, err)
	shoves, err := disk.NewAdapter(filepath.Join(root, "shoves"))
	require.NoError(t, err)
	return New(objs, shoves), objDir
}

func objectPath(dir string, id types.Hash) string {
	return filepath.Join(dir, string(id[:2]), string(id[2:]))
}

func TestStoreBlob_Dedup(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	r1, err := s.StoreBlob(ctx, []byte("hello\n"))
	require.NoError(t, err)
	info1, err := os.Stat(objectPath(dir, r1.Hash))
	require.NoError(t, err)

	r2, err := s.StoreBlob(ctx, []byte("hello\n"))
	require.NoError(t, err)
	info2, err := os.Stat(objectPath(dir, r2.Hash))
	require.NoError(t, err)

	assert.Equal(t, r1.Hash, r2.Hash)
	assert.Equal(t, info1.ModTime(), info2.ModTime(), "已存在的对象不能被重写")

	data, err := s.GetBlob(ctx, r1.Hash, r1.Size)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestHashBlob_MatchesStoreBlob(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	h, err := s.HashBlob([]byte("abc"))
	require.NoError(t, err)

	ok, err := s.HasObject(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := s.StoreBlob(ctx, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, h, res.Hash)
}

func TestGetBlob_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.GetBlob(context.Background(), core.CalculateBlobHash([]byte("missing")), 7)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGetBlobVerified_DetectsCorruption(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	res, err := s.StoreBlob(ctx, []byte("original"))
	require.NoError(t, err)

	// 直接篡改磁盘上的对象
	p := objectPath(dir, res.Hash)
	require.NoError(t, os.Chmod(p, 0o644))
	require.NoError(t, os.WriteFile(p, []byte("tampered"), 0o644))

	_, err = s.GetBlobVerified(ctx, res.Hash, res.Size)
	require.ErrorIs(t, err, errs.ErrCorruption)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, res.Hash, e.ID, "Corruption 必须定位到具体对象")
}

func TestGetBlob_FileNodeLookalike(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// 一个小文件，内容恰好是合法的 FileNode 编码 {"t":"filenode","ts":0,"cs":[]}
	data := []byte{
		0xa3,
		0x61, 't', 0x68, 'f', 'i', 'l', 'e', 'n', 'o', 'd', 'e',
		0x62, 't', 's', 0x00,
		0x62, 'c', 's', 0x80,
	}
	require.Equal(t, core.TypeFileNode, core.SniffType(data))

	res, err := s.StoreBlob(ctx, data)
	require.NoError(t, err)
	assert.False(t, res.Chunked)
	assert.Equal(t, int64(len(data)), res.Size)

	got, err := s.GetBlob(ctx, res.Hash, res.Size)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = s.GetBlobVerified(ctx, res.Hash, res.Size)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLargeBlob_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	data := bytes.Repeat([]byte("0123456789abcdef"), ingester.ChunkThreshold/8)
	res, err := s.StoreBlob(ctx, data)
	require.NoError(t, err)
	assert.True(t, res.Chunked)

	got, err := s.GetBlobVerified(ctx, res.Hash, res.Size)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// 同一文件的新版本复用大部分 Chunk
	v2 := append(bytes.Clone(data), []byte("tail")...)
	res2, err := s.StoreBlob(ctx, v2)
	require.NoError(t, err)
	assert.NotEqual(t, res.Hash, res2.Hash)

	got2, err := s.GetBlob(ctx, res2.Hash, res2.Size)
	require.NoError(t, err)
	assert.Equal(t, v2, got2)
}

func TestTreeAndShove_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	blob, err := s.StoreBlob(ctx, []byte("x"))
	require.NoError(t, err)

	tree, err := s.StoreTree(ctx, []core.TreeEntry{{Name: "x.txt", Type: core.EntryFile, Cid: blob.Link(), Size: 1}})
	require.NoError(t, err)

	got, err := s.GetTree(ctx, tree.ID())
	require.NoError(t, err)
	assert.Equal(t, tree.Entries, got.Entries)

	shove, err := core.NewShoveAt(tree.ID(), nil, core.Author{Name: "a"}, "root", 1700000000)
	require.NoError(t, err)
	require.NoError(t, s.StoreShove(ctx, shove))

	gotShove, err := s.GetShove(ctx, shove.ID())
	require.NoError(t, err)
	assert.Equal(t, shove.ID(), gotShove.ID())

	// Shove 与普通对象分区存放
	ok, err := s.HasObject(ctx, shove.ID())
	require.NoError(t, err)
	assert.False(t, ok)

	expanded, err := s.ExpandShove(ctx, types.HashPrefix(shove.ID()[:8]))
	require.NoError(t, err)
	assert.Equal(t, shove.ID(), expanded)

	_, err = s.GetTree(ctx, blob.Hash)
	assert.ErrorIs(t, err, errs.ErrCorruption, "blob 不是 tree")
}

func TestExportImport_BetweenStores(t *testing.T) {
	src, _ := newTestStore(t)
	dst, _ := newTestStore(t)
	ctx := context.Background()

	small, err := src.StoreBlob(ctx, []byte("small"))
	require.NoError(t, err)
	large, err := src.StoreBlob(ctx, bytes.Repeat([]byte("L"), ingester.ChunkThreshold+10))
	require.NoError(t, err)
	sub, err := src.StoreTree(ctx, []core.TreeEntry{{Name: "big.bin", Type: core.EntryFile, Cid: large.Link(), Size: large.Size}})
	require.NoError(t, err)
	root, err := src.StoreTree(ctx, []core.TreeEntry{
		{Name: "a.txt", Type: core.EntryFile, Cid: small.Link(), Size: small.Size},
		{Name: "dir", Type: core.EntryDir, Cid: core.NewLink(sub.ID())},
	})
	require.NoError(t, err)
	shove, err := core.NewShoveAt(root.ID(), nil, core.Author{Name: "a"}, "root", 1700000000)
	require.NoError(t, err)
	require.NoError(t, src.StoreShove(ctx, shove))

	// 导入顺序错误：父对象先于子对象
	_, _, err = dst.ImportObject(ctx, root.Bytes())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	order, err := src.ExportTree(ctx, root.ID())
	require.NoError(t, err)
	assert.Equal(t, root.ID(), order[len(order)-1])

	for _, id := range order {
		raw, err := src.Raw(ctx, id)
		require.NoError(t, err)
		got, _, err := dst.ImportObject(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}

	raw, err := src.Raw(ctx, shove.ID())
	require.NoError(t, err)
	got, kind, err := dst.ImportObject(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, core.TypeShove, kind)
	assert.Equal(t, shove.ID(), got)

	data, err := dst.GetBlobVerified(ctx, large.Hash, large.Size)
	require.NoError(t, err)
	assert.Len(t, data, ingester.ChunkThreshold+10)
}

func TestImportShove_MissingParent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tree, err := s.StoreTree(ctx, nil)
	require.NoError(t, err)
	orphan, err := core.NewShoveAt(tree.ID(), []types.Hash{core.CalculateBlobHash([]byte("ghost"))}, core.Author{Name: "a"}, "orphan", 1700000000)
	require.NoError(t, err)

	_, err = s.ImportShove(ctx, orphan.Bytes())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
