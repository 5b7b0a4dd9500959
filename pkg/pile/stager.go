package pile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"pocket/pkg/errs"
	"pocket/pkg/ignore"
	"pocket/pkg/objects"
	"pocket/pkg/treebuilder"
	"pocket/pkg/types"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"
)

// Stager 把工作区文件写入对象库并生成暂存条目
type Stager struct {
	root    string
	store   *objects.Store
	ignore  *ignore.Matcher
	workers int
}

func NewStager(root string, store *objects.Store, matcher *ignore.Matcher) *Stager {
	return &Stager{
		root:    root,
		store:   store,
		ignore:  matcher,
		workers: runtime.NumCPU(),
	}
}

// Result 一次暂存操作的结果
type Result struct {
	Staged   []Entry  // 新增或更新的条目
	Unstaged []string // 内容恢复为 base 版本而被移出暂存区的路径
	Skipped  []string // 被忽略规则跳过的路径
}

// AddPaths 暂存指定的文件或目录
func (s *Stager) AddPaths(ctx context.Context, p *Pile, base treebuilder.Snapshot, paths []string, force bool) (*Result, error) {
	const op = "pile.add"
	res := &Result{}
	tracked := trackedPaths(p, base)

	var files, missing []string
	for _, raw := range paths {
		rel, err := s.relPath(raw)
		if err != nil {
			return nil, err
		}
		if rel == ignore.DataDir || strings.HasPrefix(rel, ignore.DataDir+"/") {
			return nil, errs.InvalidState(op, "cannot stage repository metadata")
		}
		if !force && s.ignore.Matches(rel) {
			res.Skipped = append(res.Skipped, rel)
			continue
		}

		info, err := os.Lstat(filepath.Join(s.root, filepath.FromSlash(rel)))
		switch {
		case err == nil && info.IsDir():
			under, err := s.walk(ctx, rel, force)
			if err != nil {
				return nil, err
			}
			files = append(files, under...)
			missing = append(missing, missingUnder(tracked, rel, s.root)...)
		case err == nil:
			files = append(files, rel)
		case errors.Is(err, fs.ErrNotExist):
			gone := missingUnder(tracked, rel, s.root)
			if len(gone) == 0 && p.isStagedRemoval(rel) {
				continue
			}
			if len(gone) == 0 {
				return nil, errs.PathNotFound(op, rel)
			}
			missing = append(missing, gone...)
		default:
			return nil, errs.PathIO(op, rel, err)
		}
	}

	return s.stage(ctx, p, base, dedupe(files), dedupe(missing), res)
}

// AddAll 暂存工作区的全部变更 (新增、修改、删除)
func (s *Stager) AddAll(ctx context.Context, p *Pile, base treebuilder.Snapshot, force bool) (*Result, error) {
	files, err := s.walk(ctx, "", force)
	if err != nil {
		return nil, err
	}
	missing := missingUnder(trackedPaths(p, base), "", s.root)
	return s.stage(ctx, p, base, files, missing, &Result{})
}

// AddPattern 暂存匹配 glob 的文件 (如 "src/**/*.go")
func (s *Stager) AddPattern(ctx context.Context, p *Pile, base treebuilder.Snapshot, pattern string, force bool) (*Result, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errs.InvalidState("pile.add_pattern", fmt.Sprintf("invalid pattern %q: %v", pattern, err))
	}

	all, err := s.walk(ctx, "", force)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range all {
		if g.Match(f) {
			files = append(files, f)
		}
	}
	var missing []string
	for _, f := range missingUnder(trackedPaths(p, base), "", s.root) {
		if g.Match(f) {
			missing = append(missing, f)
		}
	}
	return s.stage(ctx, p, base, files, missing, &Result{})
}

// hashed 一个文件写入对象库后的结果
type hashed struct {
	path string
	hash types.Hash
	size int64
}

// stage 核心流程：并行写入对象 -> 计算状态 -> 识别重命名
func (s *Stager) stage(ctx context.Context, p *Pile, base treebuilder.Snapshot, files, missing []string, res *Result) (*Result, error) {
	// 1. 并行读取并写入对象库，结果按输入顺序保存
	results := make([]hashed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rel := range files {
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
			if err != nil {
				return errs.PathIO("pile.add", rel, err)
			}
			r, err := s.store.StoreBlob(gctx, data)
			if err != nil {
				return err
			}
			results[i] = hashed{path: rel, hash: r.Hash, size: r.Size}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 2. 与 base 比较，生成条目
	var added, deleted []Entry
	for _, h := range results {
		p.splitRename(h.path)
		prev, staged := p.Get(h.path)
		baseRef, inBase := base[h.path]

		switch {
		case staged && prev.Status == Renamed:
			prev.Hash, prev.Size = h.hash, h.size
			p.Put(prev)
			res.Staged = append(res.Staged, prev)
		case inBase && baseRef.Hash == h.hash:
			if staged && p.Remove(h.path) {
				res.Unstaged = append(res.Unstaged, h.path)
			}
		case inBase:
			e := Entry{Path: h.path, Status: Modified, Hash: h.hash, BaseHash: baseRef.Hash, Size: h.size}
			p.Put(e)
			res.Staged = append(res.Staged, e)
		default:
			e := Entry{Path: h.path, Status: Added, Hash: h.hash, Size: h.size}
			if !staged || prev.Status != Added || prev.Hash != h.hash {
				added = append(added, e)
			}
			p.Put(e)
			res.Staged = append(res.Staged, e)
		}
	}

	for _, rel := range missing {
		baseRef, inBase := base[rel]
		if !inBase {
			// 新增后又被删除：直接移出暂存区
			if p.Remove(rel) {
				res.Unstaged = append(res.Unstaged, rel)
			}
			continue
		}
		e := Entry{Path: rel, Status: Deleted, BaseHash: baseRef.Hash, Size: baseRef.Size}
		p.Put(e)
		deleted = append(deleted, e)
		res.Staged = append(res.Staged, e)
	}

	// 3. 同一次操作中：新增内容 == 被删除文件的 base 内容 -> 重命名
	renames := detectRenames(added, deleted)
	if len(renames) > 0 {
		for _, r := range renames {
			p.Remove(r.RenamedFrom)
			p.Put(r)
		}
		res.Staged = slices.DeleteFunc(res.Staged, func(e Entry) bool {
			for _, r := range renames {
				if e.Path == r.Path || e.Path == r.RenamedFrom {
					return true
				}
			}
			return false
		})
		res.Staged = append(res.Staged, renames...)
	}

	slices.SortFunc(res.Staged, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	return res, nil
}

// detectRenames 按路径顺序一一配对，每个删除最多匹配一个新增
func detectRenames(added, deleted []Entry) []Entry {
	if len(added) == 0 || len(deleted) == 0 {
		return nil
	}
	slices.SortFunc(added, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	slices.SortFunc(deleted, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })

	used := make(map[string]bool)
	var out []Entry
	for _, d := range deleted {
		for _, a := range added {
			if used[a.Path] || a.Hash != d.BaseHash {
				continue
			}
			used[a.Path] = true
			out = append(out, Entry{
				Path:        a.Path,
				Status:      Renamed,
				Hash:        a.Hash,
				BaseHash:    d.BaseHash,
				RenamedFrom: d.Path,
				Size:        a.Size,
			})
			break
		}
	}
	return out
}

// relPath 把用户输入的路径转换为相对工作区根目录的路径
func (s *Stager) relPath(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.root, p)
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", errs.InvalidState("pile.add", fmt.Sprintf("path %q is outside the work tree", p))
	}
	rel = CleanPath(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errs.InvalidState("pile.add", fmt.Sprintf("path %q is outside the work tree", p))
	}
	if rel == "." {
		rel = ""
	}
	return rel, nil
}

// walk 列出 dir (相对路径，空表示根目录) 下的普通文件，按路径排序
func (s *Stager) walk(ctx context.Context, dir string, force bool) ([]string, error) {
	start := filepath.Join(s.root, filepath.FromSlash(dir))
	var files []string
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		// 元数据目录无论如何都不能进入
		if rel == ignore.DataDir {
			return filepath.SkipDir
		}
		if !force && s.ignore.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errs.PathIO("pile.walk", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// isStagedRemoval 路径已作为删除 (或重命名的来源) 被暂存
func (p *Pile) isStagedRemoval(rel string) bool {
	for _, e := range p.Entries() {
		if (e.Status == Deleted && e.Path == rel) || (e.Status == Renamed && e.RenamedFrom == rel) {
			return true
		}
	}
	return false
}

// trackedPaths 暂存视图中的全部路径 (base 叠加暂存区)
func trackedPaths(p *Pile, base treebuilder.Snapshot) []string {
	return p.Apply(base).Paths()
}

// missingUnder 列出位于 dir 下 (或等于 dir) 且在工作区中已不存在的跟踪文件
func missingUnder(tracked []string, dir, root string) []string {
	var out []string
	for _, t := range tracked {
		if dir != "" && t != dir && !strings.HasPrefix(t, dir+"/") {
			continue
		}
		if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(t))); errors.Is(err, fs.ErrNotExist) {
			out = append(out, t)
		}
	}
	return out
}

func dedupe(paths []string) []string {
	slices.Sort(paths)
	return slices.Compact(paths)
}
