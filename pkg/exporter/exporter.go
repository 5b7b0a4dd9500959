// Package exporter 把对象库中的内容还原到工作区。
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"pocket/pkg/errs"
	"pocket/pkg/objects"
	"pocket/pkg/storage/disk"
	"pocket/pkg/treebuilder"
	"pocket/pkg/types"
)

type Exporter struct {
	root  string
	store *objects.Store
}

func NewExporter(root string, store *objects.Store) *Exporter {
	return &Exporter{root: root, store: store}
}

// ExportFile 将文件内容 (小文件或分块的大文件) 写入 writer
func (e *Exporter) ExportFile(ctx context.Context, ref treebuilder.FileRef, writer io.Writer) error {
	data, err := e.store.GetBlob(ctx, ref.Hash, ref.Size)
	if err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		return errs.IO("exporter.export_file", err)
	}
	return nil
}

// Report 一次工作区同步的结果
type Report struct {
	Written []string
	Removed []string
}

// TouchedError 工作区中有未保存的改动会被覆盖或删除
type TouchedError struct {
	Paths []string
}

func (e *TouchedError) Error() string {
	return fmt.Sprintf("local changes would be overwritten: %s", strings.Join(e.Paths, ", "))
}

func (e *TouchedError) Is(target error) bool { return target == errs.ErrInvalidState }

// Reconcile 把工作区从 from 快照同步到 to 快照。
//  1. 检查阶段：会被覆盖或删除的文件必须与 from 一致 (未被改动)，
//     否则在改动任何文件之前返回 *TouchedError (force 时跳过检查)。
//  2. 执行阶段：删除 to 中不存在的文件，写入内容不同的文件。
//
// 两个快照都没有的工作区文件不受影响。文件与目录互换位置 (x 与 x/y) 时，
// 只要被替换的一方未被改动就可以同步，执行阶段总是先删除再写入。
func (e *Exporter) Reconcile(ctx context.Context, from, to treebuilder.Snapshot, force bool) (*Report, error) {
	var removals, writes []string
	removing := make(map[string]bool)
	for _, p := range from.Paths() {
		if _, ok := to[p]; !ok {
			removals = append(removals, p)
			removing[p] = true
		}
	}
	for _, p := range to.Paths() {
		if old, ok := from[p]; !ok || old.Hash != to[p].Hash {
			writes = append(writes, p)
		}
	}

	// 1. 检查
	if !force {
		var touched []string
		for _, p := range removals {
			ok, err := e.matches(p, from[p].Hash, true)
			if err != nil {
				return nil, err
			}
			if !ok {
				touched = append(touched, p)
			}
		}
		for _, p := range writes {
			ok, err := e.safeToWrite(p, from, to, removing)
			if err != nil {
				return nil, err
			}
			if !ok {
				touched = append(touched, p)
			}
		}
		if len(touched) > 0 {
			slices.Sort(touched)
			return nil, &TouchedError{Paths: touched}
		}
	}

	// 2. 执行
	report := &Report{}
	for _, p := range removals {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		abs := e.abs(p)
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return report, errs.PathIO("exporter.reconcile", p, err)
		}
		e.pruneEmptyDirs(filepath.Dir(abs))
		report.Removed = append(report.Removed, p)
	}
	for _, p := range writes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := e.writeFile(ctx, p, to[p]); err != nil {
			return report, err
		}
		report.Written = append(report.Written, p)
	}
	return report, nil
}

// safeToWrite 目标路径不存在、内容已是目标版本、或与 from 版本一致时可以覆盖
func (e *Exporter) safeToWrite(p string, from, to treebuilder.Snapshot, removing map[string]bool) (bool, error) {
	// 祖先路径是即将删除的文件：删除后目标路径自然不存在
	for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
		if removing[dir] {
			return true, nil
		}
	}
	if info, err := os.Lstat(e.abs(p)); err == nil && info.IsDir() {
		return e.clearableDir(p, removing)
	}
	if ok, err := e.matches(p, to[p].Hash, true); err != nil || ok {
		return ok, err
	}
	if old, tracked := from[p]; tracked {
		return e.matches(p, old.Hash, false)
	}
	return false, nil
}

// matches 工作区文件内容是否等于 want；missingOK 控制文件不存在时的结果
func (e *Exporter) matches(p string, want types.Hash, missingOK bool) (bool, error) {
	data, err := os.ReadFile(e.abs(p))
	if errors.Is(err, fs.ErrNotExist) {
		return missingOK, nil
	}
	if err != nil {
		// 无法读取 (如路径被目录占用) 视为改动
		return false, nil
	}
	got, err := e.store.HashBlob(data)
	if err != nil {
		return false, err
	}
	return got == want, nil
}

// clearableDir 目录下的每个文件都在本次同步中被删除时，该目录会被清空并移除。
// 这些文件是否被改动由删除检查负责。
func (e *Exporter) clearableDir(p string, removing map[string]bool) (bool, error) {
	clearable := true
	err := filepath.WalkDir(e.abs(p), func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(e.root, abs)
		if err != nil {
			return err
		}
		if !removing[filepath.ToSlash(rel)] {
			clearable = false
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, errs.PathIO("exporter.reconcile", p, err)
	}
	return clearable, nil
}

func (e *Exporter) writeFile(ctx context.Context, p string, ref treebuilder.FileRef) error {
	data, err := e.store.GetBlob(ctx, ref.Hash, ref.Size)
	if err != nil {
		return err
	}
	if err := disk.SafeWrite(e.abs(p), data, 0o644); err != nil {
		return errs.PathIO("exporter.write", p, err)
	}
	return nil
}

// Checkout 把单个文件写成 ref 对应的内容，ref 为 nil 时删除该文件
func (e *Exporter) Checkout(ctx context.Context, p string, ref *treebuilder.FileRef) error {
	if ref == nil {
		abs := e.abs(p)
		// 路径已被目录占用：该文件本就不存在
		if info, err := os.Lstat(abs); err == nil && info.IsDir() {
			return nil
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errs.PathIO("exporter.checkout", p, err)
		}
		e.pruneEmptyDirs(filepath.Dir(abs))
		return nil
	}
	return e.writeFile(ctx, p, *ref)
}

// pruneEmptyDirs 自底向上删除空目录，直到工作区根目录
func (e *Exporter) pruneEmptyDirs(dir string) {
	for dir != e.root && strings.HasPrefix(dir, e.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (e *Exporter) abs(p string) string {
	return filepath.Join(e.root, filepath.FromSlash(p))
}
