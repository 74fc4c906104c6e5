package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner 执行一条 git 子命令并返回 stdout。
// dir 非空时以 `git -C dir` 的方式运行。
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner 通过 os/exec 调用本机 git 可执行文件。
type ExecRunner struct {
	// Binary 为空时使用 "git"。
	Binary string
	// Env 追加到子进程环境变量（形如 "KEY=VALUE"）。
	Env []string
}

func (r ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}
	full := args
	if dir != "" {
		full = append([]string{"-C", dir}, args...)
	}

	cmd := exec.CommandContext(ctx, bin, full...)
	// 需要凭据时直接失败，不弹出交互提示。
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, r.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	ce := &CommandError{Args: full, ExitCode: -1, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		ce.Err = ctxErr
	}
	return stdout.Bytes(), ce
}

// CommandError 表示 git 子命令执行失败（非零退出码、无法启动或被取消）。
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s 失败（exit=%d）", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		return msg + "：" + firstLine(e.Stderr)
	}
	if e.Err != nil {
		return msg + "：" + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
