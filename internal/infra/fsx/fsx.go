// Package fsx 提供报告文件的原子写入与工作目录的清理。
package fsx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 测试通过替换它模拟 EXDEV 等 rename 失败。
var renameFunc = os.Rename

const defaultFilePerm os.FileMode = 0o644

// PathTypeConflictError 表示报告目标已存在但不是普通文件。
type PathTypeConflictError struct {
	Path string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("无法写入 %q：目标已存在且是 %s", e.Path, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示临时文件与目标不在同一文件系统（EXDEV），无法原子替换。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨文件系统替换失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// WriteFile 原子替换 path 的内容：同目录临时文件写入并 fsync 后 rename。
//
// 父目录不存在时创建；已存在的普通文件保留原权限；目录或特殊文件返回 PathTypeConflictError。
// 任何失败都不会留下临时文件，也不会破坏旧内容。
func WriteFile(path string, data []byte) error {
	path = filepath.Clean(path)
	perm := defaultFilePerm

	switch fi, err := os.Lstat(path); {
	case err == nil && fi.IsDir():
		return &PathTypeConflictError{Path: path, Got: "目录"}
	case err == nil && !fi.Mode().IsRegular():
		return &PathTypeConflictError{Path: path, Got: fi.Mode().Type().String()}
	case err == nil:
		perm = fi.Mode().Perm()
	case !os.IsNotExist(err):
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFunc(tmpName, path); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: tmpName, Dst: path, Err: err}
		}
		return err
	}
	committed = true

	// 目录 fsync：best-effort。
	syncDir(dir)
	return nil
}

func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	if f, err := os.Open(dir); err == nil {
		_ = f.Sync()
		_ = f.Close()
	}
}

// ErrUnsafeRemove 表示拒绝删除的路径（空路径、根目录、当前目录或其祖先目录）。
var ErrUnsafeRemove = errors.New("拒绝删除该路径")

// RemoveTree 递归删除 dir；dir 不存在不算错误。
//
// git 对象文件是只读的，Windows 上 os.RemoveAll 会因此失败，
// 所以第一次失败后先把整棵树改为可写再重试一次。
func RemoveTree(dir string) error {
	if dir == "" {
		return ErrUnsafeRemove
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return fmt.Errorf("%w：%q", ErrUnsafeRemove, dir)
	}
	if cwd, err := os.Getwd(); err == nil && containsPath(abs, filepath.Clean(cwd)) {
		return fmt.Errorf("%w：%q 包含当前目录", ErrUnsafeRemove, dir)
	}

	if err := os.RemoveAll(abs); err == nil {
		return nil
	}
	_ = filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil {
			_ = os.Chmod(p, info.Mode().Perm()|0o200)
		}
		return nil
	})
	return os.RemoveAll(abs)
}

// containsPath 判断 p 是否等于 dir 或位于 dir 之下。
func containsPath(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
