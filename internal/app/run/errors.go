package run

import (
	"errors"
	"fmt"
)

const (
	// ErrCodeConfigInvalid 表示配置在运行期才暴露的问题（例如代理无法使用）。
	ErrCodeConfigInvalid = "config_invalid"
	// ErrCodeSiteUnreachable 表示起始页面无法下载。
	ErrCodeSiteUnreachable = "site_unreachable"
	// ErrCodeNoSiteAssets 表示站点上没有任何受跟踪的静态资源：空集合是任何提交的子集，结果没有意义。
	ErrCodeNoSiteAssets = "no_site_assets"
	// ErrCodeWorkspace 表示数据目录无法准备。
	ErrCodeWorkspace = "workspace_failed"
	// ErrCodeCloneFailed 表示仓库克隆失败。
	ErrCodeCloneFailed = "clone_failed"
	// ErrCodeRepoEmpty 表示仓库没有任何提交（或历史无法读取）。
	ErrCodeRepoEmpty = "repo_empty"
	// ErrCodeCanceled 表示运行被取消。
	ErrCodeCanceled = "canceled"
)

// Error 是整次运行的致命错误（带 error_code）。单个资源/提交的失败不会产生 Error。
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s：%v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func fail(code string, err error) error { return &Error{Code: code, Err: err} }
