// Package errs 定义 Pocket 引擎的错误分类。
// 调用方使用 errors.Is 判断类别，使用 errors.As 取出上下文。
package errs

import (
	"errors"
	"fmt"
	"strings"

	"pocket/pkg/types"
)

// 五类错误，每个引擎错误都恰好属于其中一类
var (
	ErrNotFound     = errors.New("not found")
	ErrCorruption   = errors.New("corruption")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrIO           = errors.New("io failure")
)

// Error 携带操作上下文的分类错误
type Error struct {
	Kind error      // 上面五个哨兵之一
	Op   string     // 出错的操作，如 "pile.add"
	Path string     // 相关路径 (可选)
	ID   types.Hash // 相关对象 (可选)
	Msg  string
	Err  error // 底层错误 (可选)
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (path %s)", e.Path)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " (object %s)", e.ID.Short())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is 让 errors.Is(err, ErrNotFound) 之类的判断生效
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(op, msg string) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: msg}
}

func ObjectNotFound(op string, id types.Hash) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: "object does not exist", ID: id}
}

func PathNotFound(op, path string) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: "path does not exist", Path: path}
}

// Corruption 作用域永远是单个对象
func Corruption(op string, id types.Hash, msg string) *Error {
	return &Error{Kind: ErrCorruption, Op: op, ID: id, Msg: msg}
}

func InvalidState(op, msg string) *Error {
	return &Error{Kind: ErrInvalidState, Op: op, Msg: msg}
}

func IO(op string, err error) *Error {
	return &Error{Kind: ErrIO, Op: op, Err: err}
}

func PathIO(op, path string, err error) *Error {
	return &Error{Kind: ErrIO, Op: op, Path: path, Err: err}
}

// ConflictError 列出所有冲突路径
type ConflictError struct {
	Op    string
	Paths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d conflicting path(s): %s", e.Op, len(e.Paths), strings.Join(e.Paths, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func NewConflictError(op string, paths []string) *ConflictError {
	return &ConflictError{Op: op, Paths: paths}
}

// Kind 返回 err 所属的类别，未知错误归为 ErrIO
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrCorruption, ErrConflict, ErrInvalidState, ErrIO} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrIO
}
