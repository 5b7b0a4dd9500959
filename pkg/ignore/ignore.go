package ignore

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"pocket/pkg/errs"
	"pocket/pkg/storage/disk"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 永久忽略规则文件 (位于工作区根目录)
const FileName = ".pocketignore"

// DataDir 仓库元数据目录，任何规则都不能取消对它的忽略
const DataDir = ".pocket"

// Source 标记一条规则的来源
type Source string

const (
	SourceDefault   Source = "default"
	SourcePermanent Source = "permanent"
	SourceTemporary Source = "temporary"
)

// Pattern 一条带来源的忽略规则
type Pattern struct {
	Pattern string
	Source  Source
}

// Matcher 封装了忽略逻辑。
// 规则按 默认 -> 永久 -> 临时 的顺序编译，后出现的规则覆盖先出现的 (支持 ! 取反)。
type Matcher struct {
	mu        sync.RWMutex
	root      string
	defaults  []string
	permanent []string
	temporary []string
	ignorer   *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// rootPath: 工作区根目录 (用于查找 .pocketignore)
// defaults: 配置中的 core.ignore_patterns
func NewMatcher(rootPath string, defaults []string) (*Matcher, error) {
	m := &Matcher{
		root:     rootPath,
		defaults: append([]string{DataDir}, defaults...),
	}

	permanent, err := readPatterns(filepath.Join(rootPath, FileName))
	if err != nil {
		return nil, err
	}
	m.permanent = permanent
	m.compile()
	return m, nil
}

// Matches 检查给定的路径是否应该被忽略
// path: 相对于工作区根目录的路径 (例如 "data/model.bin")
func (m *Matcher) Matches(path string) bool {
	path = filepath.ToSlash(filepath.Clean(path))
	if path == DataDir || strings.HasPrefix(path, DataDir+"/") {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}

// Add 追加一条永久规则并写回 .pocketignore
func (m *Matcher) Add(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return errs.InvalidState("ignore.add", "empty pattern")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.permanent, pattern) {
		return nil
	}
	next := append(slices.Clone(m.permanent), pattern)
	if err := m.persist(next); err != nil {
		return err
	}
	m.permanent = next
	m.compileLocked()
	return nil
}

// Remove 删除一条永久规则，不存在时返回 NotFound
func (m *Matcher) Remove(pattern string) error {
	pattern = strings.TrimSpace(pattern)

	m.mu.Lock()
	defer m.mu.Unlock()
	idx := slices.Index(m.permanent, pattern)
	if idx < 0 {
		return errs.NotFound("ignore.remove", fmt.Sprintf("pattern %q is not in %s", pattern, FileName))
	}
	next := slices.Delete(slices.Clone(m.permanent), idx, idx+1)
	if err := m.persist(next); err != nil {
		return err
	}
	m.permanent = next
	m.compileLocked()
	return nil
}

// AddTemporary 添加仅在当前会话生效的规则
func (m *Matcher) AddTemporary(pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temporary = append(m.temporary, pattern)
	m.compileLocked()
}

// ClearTemporary 清空会话规则
func (m *Matcher) ClearTemporary() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temporary = nil
	m.compileLocked()
}

// List 按生效顺序返回全部规则
func (m *Matcher) List() []Pattern {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Pattern, 0, len(m.defaults)+len(m.permanent)+len(m.temporary))
	for _, p := range m.defaults {
		out = append(out, Pattern{Pattern: p, Source: SourceDefault})
	}
	for _, p := range m.permanent {
		out = append(out, Pattern{Pattern: p, Source: SourcePermanent})
	}
	for _, p := range m.temporary {
		out = append(out, Pattern{Pattern: p, Source: SourceTemporary})
	}
	return out
}

func (m *Matcher) compile() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compileLocked()
}

func (m *Matcher) compileLocked() {
	lines := make([]string, 0, len(m.defaults)+len(m.permanent)+len(m.temporary))
	lines = append(lines, m.defaults...)
	lines = append(lines, m.permanent...)
	lines = append(lines, m.temporary...)
	m.ignorer = gitignore.CompileIgnoreLines(lines...)
}

func (m *Matcher) persist(patterns []string) error {
	var buf bytes.Buffer
	for _, p := range patterns {
		buf.WriteString(p)
		buf.WriteByte('\n')
	}
	path := filepath.Join(m.root, FileName)
	if err := disk.SafeWrite(path, buf.Bytes(), 0o644); err != nil {
		return errs.PathIO("ignore.persist", path, err)
	}
	return nil
}

// readPatterns 读取规则文件，跳过空行与注释
func readPatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.PathIO("ignore.load", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.PathIO("ignore.load", path, err)
	}
	return out, nil
}
