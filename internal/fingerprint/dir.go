package fingerprint

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/John-Robertt/webappversion/internal/domain"
)

// Dir 递归计算 root 下所有受跟踪文件的指纹集合。
//
// 规则：
// - 只处理普通文件（不跟随符号链接）；跳过 .git 目录
// - filter 为空时所有文件都受跟踪
// - root 不存在：返回空集合且不报错（受跟踪路径在某些提交中可能尚未创建或已被删除）
// - root 本身是文件：按单个文件处理
func Dir(root string, filter domain.ExtFilter) (domain.HashSet, error) {
	root = filepath.Clean(root)
	set := domain.NewHashSet()

	fi, err := os.Lstat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		return nil, err
	}
	if fi.Mode().IsRegular() {
		if filter.Match(fi.Name()) {
			f, err := File(root)
			if err != nil {
				return nil, err
			}
			set.Add(f)
		}
		return set, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == ".git" && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !filter.Match(d.Name()) {
			return nil
		}
		f, err := File(path)
		if err != nil {
			return err
		}
		set.Add(f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// File 计算单个文件的指纹。
func File(path string) (domain.Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Fingerprint{}, err
	}
	defer f.Close()
	return SumReader(f)
}
