package pile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"pocket/pkg/ignore"
	"pocket/pkg/meta"
	"pocket/pkg/objects"
	"pocket/pkg/storage/disk"
	"pocket/pkg/treebuilder"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	root   string
	store  *objects.Store
	stager *Stager
}

// setupEnv 构建工作区 + 对象库 + 忽略规则
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, ignore.DataDir)

	objs, err := disk.NewAdapter(filepath.Join(dataDir, "objects"))
	require.NoError(t, err)
	shoves, err := disk.NewAdapter(filepath.Join(dataDir, "shoves"))
	require.NoError(t, err)
	store := objects.New(objs, shoves)

	matcher, err := ignore.NewMatcher(root, []string{"*.log"})
	require.NoError(t, err)

	return &testEnv{root: root, store: store, stager: NewStager(root, store, matcher)}
}

func (e *testEnv) write(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func (e *testEnv) remove(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(e.root, filepath.FromSlash(rel))))
}

// base 把文件写入工作区和对象库，返回对应的快照 (模拟已提交状态)
func (e *testEnv) base(t *testing.T, files map[string]string) treebuilder.Snapshot {
	t.Helper()
	snap := make(treebuilder.Snapshot, len(files))
	for rel, content := range files {
		e.write(t, rel, content)
		res, err := e.store.StoreBlob(context.Background(), []byte(content))
		require.NoError(t, err)
		snap[rel] = treebuilder.FileRef{Hash: res.Hash, Size: res.Size}
	}
	return snap
}

func setupMetaRepo(t *testing.T) *meta.Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(meta.AllModels()...))
	t.Cleanup(func() { _ = metaDB.Close() })
	return meta.NewRepository(metaDB)
}
