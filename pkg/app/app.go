// Package app 是 pocket 引擎唯一的入口：组装各个组件，持有仓库锁并编排每个操作。
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"pocket/pkg/config"
	"pocket/pkg/errs"
	"pocket/pkg/exporter"
	"pocket/pkg/history"
	"pocket/pkg/ignore"
	"pocket/pkg/logging"
	"pocket/pkg/merge"
	"pocket/pkg/meta"
	"pocket/pkg/objects"
	"pocket/pkg/pile"
	"pocket/pkg/refs"
	"pocket/pkg/shove"
	"pocket/pkg/storage"
	"pocket/pkg/storage/cache"
	"pocket/pkg/storage/disk"
	"pocket/pkg/storage/s3"
	"pocket/pkg/treebuilder"

	"github.com/spf13/viper"
)

const (
	objectsDir = "objects"
	shovesDir  = "shoves"
	stateDB    = "state.db"
	lockFile   = "lock"
	logFile    = "logs/pocket.log"
)

// ErrNotARepository 目录 (及其父目录) 中没有 .pocket
var ErrNotARepository = errs.NotFound("app.open", "not a pocket repository (or any of the parent directories)")

// Options 打开仓库时的可选项
type Options struct {
	Viper   *viper.Viper // 已绑定 CLI flags 的配置实例，可以为 nil
	Verbose bool         // 日志同时输出到 stderr
}

// Repository 是整个应用程序的依赖容器
type Repository struct {
	root    string
	dataDir string

	Config *config.Config
	Logger *logging.Logger

	objects  *objects.Store
	closers  []func() error
	db       *meta.DB
	meta     *meta.Repository
	refs     *refs.Manager
	ignore   *ignore.Matcher
	stager   *pile.Stager
	shoves   *shove.Builder
	trees    *treebuilder.Builder
	history  *history.Walker
	merger   *merge.Engine
	exporter *exporter.Exporter
}

// Init 在 root 下创建新仓库 (包含 main)。已存在时返回 InvalidState。
func Init(ctx context.Context, root string, opts Options) (*Repository, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.IO("app.init", err)
	}
	dataDir := filepath.Join(root, ignore.DataDir)
	if _, err := os.Stat(dataDir); err == nil {
		return nil, errs.InvalidState("app.init", fmt.Sprintf("repository already exists at %s", dataDir))
	}

	// 1. 目录结构与默认配置
	for _, dir := range []string{dataDir, filepath.Join(dataDir, objectsDir), filepath.Join(dataDir, shovesDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.PathIO("app.init", dir, err)
		}
	}
	if err := config.WriteDefault(dataDir); err != nil {
		return nil, errs.IO("app.init", err)
	}

	// 2. 打开并创建默认 Timeline
	repo, err := open(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	name := repo.Config.Core.DefaultTimeline
	err = repo.meta.Transaction(ctx, func(tx *meta.Repository) error {
		r := repo.refs.With(tx)
		if err := r.Create(ctx, name, ""); err != nil {
			return err
		}
		return tx.SetSetting(ctx, meta.KeyActiveTimeline, name)
	})
	if err != nil {
		repo.Close()
		return nil, err
	}
	repo.Logger.Info("repository initialized", "root", root, "timeline", name)
	return repo, nil
}

// Open 打开 start 所在的仓库 (向上查找 .pocket)
func Open(ctx context.Context, start string, opts Options) (*Repository, error) {
	root, err := Discover(start)
	if err != nil {
		return nil, err
	}
	return open(ctx, root, opts)
}

// Discover 从 start 向上查找包含 .pocket 的目录
func Discover(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", errs.IO("app.discover", err)
	}
	for {
		info, err := os.Stat(filepath.Join(dir, ignore.DataDir))
		if err == nil && info.IsDir() {
			return dir, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", errs.PathIO("app.discover", dir, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotARepository
		}
		dir = parent
	}
}

func open(ctx context.Context, root string, opts Options) (*Repository, error) {
	dataDir := filepath.Join(root, ignore.DataDir)

	// 1. 配置与日志
	cfg, err := config.Load(dataDir, opts.Viper)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		File:       filepath.Join(dataDir, filepath.FromSlash(logFile)),
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Verbose:    opts.Verbose,
	})

	r := &Repository{root: root, dataDir: dataDir, Config: cfg, Logger: logger}
	r.closers = append(r.closers, logger.Close)

	// 2. 对象存储 (disk / s3，可选 Redis 缓存)
	objs, err := r.initStore(ctx, objectsDir)
	if err != nil {
		r.Close()
		return nil, err
	}
	shoveStore, err := r.initStore(ctx, shovesDir)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.objects = objects.New(objs, shoveStore)

	// 3. 元数据库
	r.db, err = meta.NewDB(ctx, meta.Config{
		Driver:   cfg.Meta.Driver,
		Path:     filepath.Join(dataDir, stateDB),
		Host:     cfg.Meta.Host,
		Port:     cfg.Meta.Port,
		User:     cfg.Meta.User,
		Password: cfg.Meta.Password,
		DBName:   cfg.Meta.DBName,
		SSLMode:  cfg.Meta.SSLMode,
		Debug:    cfg.Meta.Debug,
	})
	if err != nil {
		r.Close()
		return nil, errs.IO("app.open", err)
	}
	r.closers = append(r.closers, r.db.Close)
	r.meta = meta.NewRepository(r.db)

	// 4. 忽略规则
	r.ignore, err = ignore.NewMatcher(root, cfg.Core.IgnorePatterns)
	if err != nil {
		r.Close()
		return nil, err
	}

	// 5. 组装其余组件
	r.refs = refs.NewManager(r.meta)
	r.stager = pile.NewStager(root, r.objects, r.ignore)
	r.shoves = shove.NewBuilder(r.objects)
	r.trees = treebuilder.NewBuilder(r.objects)
	r.history = history.NewWalker(r.objects)
	r.merger = merge.NewEngine(r.objects)
	r.exporter = exporter.NewExporter(root, r.objects)
	return r, nil
}

// initStore 根据 storage.type 创建一个区域 (objects / shoves) 的存储
func (r *Repository) initStore(ctx context.Context, area string) (storage.Store, error) {
	var store storage.Store
	switch r.Config.Storage.Type {
	case "", "disk":
		a, err := disk.NewAdapter(filepath.Join(r.dataDir, area))
		if err != nil {
			return nil, fmt.Errorf("failed to init disk storage: %w", err)
		}
		store = a
	case "s3":
		c := r.Config.Storage.S3
		a, err := s3.NewAdapter(ctx, s3.Config{
			Endpoint:        c.Endpoint,
			Region:          c.Region,
			Bucket:          c.Bucket,
			Prefix:          c.Prefix + area + "/",
			AccessKeyID:     c.AccessKey,
			SecretAccessKey: c.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 storage: %w", err)
		}
		store = a
	default:
		return nil, errs.InvalidState("app.open", fmt.Sprintf("unsupported storage type: %s", r.Config.Storage.Type))
	}

	if r.Config.Cache.RedisURL == "" {
		return store, nil
	}
	cached, err := cache.NewCachedStore(store, cache.Config{RedisURL: r.Config.Cache.RedisURL, TTL: 24 * time.Hour})
	if err != nil {
		// 缓存不可用时退化为直接访问底层存储
		r.Logger.Warn("redis cache disabled", "error", err)
		return store, nil
	}
	r.closers = append(r.closers, cached.Close)
	return cached, nil
}

// Close 释放数据库连接、缓存与日志文件
func (r *Repository) Close() error {
	var errList []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	r.closers = nil
	return errors.Join(errList...)
}

// Root 工作区根目录
func (r *Repository) Root() string { return r.root }

// Objects 对象库 (供 CLI 的 cat 等只读命令使用)
func (r *Repository) Objects() *objects.Store { return r.objects }
