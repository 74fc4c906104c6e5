package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/webappversion/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingField 表示 site/repo/path 三个必填项在 CLI 与配置文件中都没有给出。
	ErrCodeMissingField = "config_missing_field"
)

const (
	DefaultMaxDepth     = 10
	DefaultRequestDelay = time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBase    = 3.0
	DefaultWorkers      = 10
	MaxWorkers          = 64
	DefaultGitBinary    = "git"
	DefaultDataDir      = ".data"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 32 << 20

	BackoffExponential = "exponential"
	BackoffConstant    = "constant"

	DefaultCSVName  = "output.csv"
	DefaultJSONName = "output.json"
)

// DefaultFileNames 是未指定 --config 时在 cwd 下按顺序探测的配置文件（均为可选）。
var DefaultFileNames = []string{"webappversion.yaml", "webappversion.yml", "webappversion.json"}

// CLIArgs 是命令行输入，并保留“是否显式指定”的信息：
// 例如 --workers 必须能覆盖配置文件中的 workers，而未指定时不能覆盖。
type CLIArgs struct {
	Site   string
	Repo   string
	Target string

	Extensions    []string
	ExtensionsSet bool

	Depth    int
	DepthSet bool

	Workers    int
	WorkersSet bool

	CSV    bool
	JSON   bool
	OutDir string

	ConfigPath string
	Verbose    bool
}

// FileConfig 对应 webappversion.{json,yaml} 的解析结构。时间类字段以秒为单位。
type FileConfig struct {
	Site       string   `json:"site" yaml:"site"`
	Repo       string   `json:"repo" yaml:"repo"`
	Path       string   `json:"path" yaml:"path"`
	Extensions []string `json:"extensions" yaml:"extensions"`

	MaxDepth     *int     `json:"max_depth" yaml:"max_depth"`
	RequestDelay *float64 `json:"request_delay" yaml:"request_delay"`
	MaxRetries   *int     `json:"max_retries" yaml:"max_retries"`
	RetryDelay   *float64 `json:"retry_delay" yaml:"retry_delay"`
	RetryBackoff string   `json:"retry_backoff" yaml:"retry_backoff"`
	Timeout      *float64 `json:"timeout" yaml:"timeout"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes"`

	Workers   int          `json:"workers" yaml:"workers"`
	Proxy     *ProxyConfig `json:"proxy" yaml:"proxy"`
	UserAgent string       `json:"user_agent" yaml:"user_agent"`

	Git     string `json:"git" yaml:"git"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	CSV      bool   `json:"csv" yaml:"csv"`
	JSON     bool   `json:"json" yaml:"json"`
	OutDir   string `json:"out_dir" yaml:"out_dir"`
	LogLevel string `json:"log_level" yaml:"log_level"`
}

type ProxyConfig struct {
	URL string `json:"url" yaml:"url"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	SiteURL string
	RepoURL string
	// Target 是仓库内受跟踪路径：已 Clean、相对、使用 '/'。
	Target     string
	Extensions []string

	MaxDepth     int
	RequestDelay time.Duration
	MaxRetries   int
	RetryBase    float64
	// RetryBackoff 是 BackoffExponential（等待 RetryBase^n 秒）或 BackoffConstant（每次 RetryBase 秒）。
	RetryBackoff string
	Timeout      time.Duration
	MaxBodyBytes int64

	Workers   int
	ProxyURL  string
	UserAgent string

	GitBinary string
	// DataDir 存放各 worker 的克隆目录（绝对路径）；运行结束后整体删除。
	DataDir string

	// CSVPath/JSONPath 为空表示不输出对应格式。
	CSVPath  string
	JSONPath string

	LogLevel slog.Level
	// ConfigFile 是实际读取的配置文件（未读取时为空）。
	ConfigFile string
}

// ExtFilter 返回受跟踪扩展名过滤器（空表示全部文件）。
func (e EffectiveConfig) ExtFilter() domain.ExtFilter { return domain.NewExtFilter(e.Extensions...) }

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingField:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
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

// LoadEffective 读取配置文件并与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 给了 --config：必须存在，按扩展名选择 JSON 或 YAML
// 2) 否则依次探测 <cwd>/webappversion.yaml|yml|json，都不存在时只用 CLI + 默认值
//
// 覆盖优先级：CLI > 配置文件 > 默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range DefaultFileNames {
			p := filepath.Join(cwdAbs, name)
			got, exists, err := readFileConfig(p)
			if err != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
			}
			if exists {
				cfgPath, fc = p, got
				break
			}
		}
	}

	eff, err := merge(cwdAbs, cli, fc, cfgPath)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.ConfigFile = cfgPath
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	site := pick(cli.Site, fc.Site)
	repo := pick(cli.Repo, fc.Repo)
	target := pick(cli.Target, fc.Path)

	var missing []string
	if site == "" {
		missing = append(missing, "site")
	}
	if repo == "" {
		missing = append(missing, "repo")
	}
	if target == "" {
		missing = append(missing, "path")
	}
	if len(missing) > 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingField, Path: cfgPath, Err: fmt.Errorf("缺少必填项：%s", strings.Join(missing, ", "))}
	}

	u, err := url.Parse(site)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return EffectiveConfig{}, invalid("站点 URL 必须是带 host 的 http/https 地址：%q", site)
	}

	cleanTarget, err := CleanTarget(target)
	if err != nil {
		return EffectiveConfig{}, invalid("%v", err)
	}

	exts := fc.Extensions
	if cli.ExtensionsSet {
		exts = cli.Extensions
	}

	eff := EffectiveConfig{
		SiteURL:      site,
		RepoURL:      repo,
		Target:       cleanTarget,
		Extensions:   domain.NewExtFilter(exts...).List(),
		MaxDepth:     DefaultMaxDepth,
		RequestDelay: DefaultRequestDelay,
		MaxRetries:   DefaultMaxRetries,
		RetryBase:    DefaultRetryBase,
		RetryBackoff: BackoffExponential,
		Timeout:      DefaultTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Workers:      DefaultWorkers,
		UserAgent:    strings.TrimSpace(fc.UserAgent),
		GitBinary:    DefaultGitBinary,
		DataDir:      absCleanFrom(cwdAbs, DefaultDataDir),
		LogLevel:     slog.LevelInfo,
	}

	// max_depth：CLI > config > 默认
	if cli.DepthSet {
		eff.MaxDepth = cli.Depth
	} else if fc.MaxDepth != nil {
		eff.MaxDepth = *fc.MaxDepth
	}

	if fc.RequestDelay != nil {
		if *fc.RequestDelay < 0 {
			return EffectiveConfig{}, invalid("request_delay 不能为负数：%v", *fc.RequestDelay)
		}
		eff.RequestDelay = seconds(*fc.RequestDelay)
	}
	if fc.MaxRetries != nil {
		if *fc.MaxRetries < 0 {
			return EffectiveConfig{}, invalid("max_retries 不能为负数：%d", *fc.MaxRetries)
		}
		eff.MaxRetries = *fc.MaxRetries
	}
	if fc.RetryDelay != nil {
		if *fc.RetryDelay < 0 {
			return EffectiveConfig{}, invalid("retry_delay 不能为负数：%v", *fc.RetryDelay)
		}
		eff.RetryBase = *fc.RetryDelay
	}
	switch b := strings.ToLower(strings.TrimSpace(fc.RetryBackoff)); b {
	case "":
	case BackoffExponential, BackoffConstant:
		eff.RetryBackoff = b
	default:
		return EffectiveConfig{}, invalid("retry_backoff 只能是 %s 或 %s：%q", BackoffExponential, BackoffConstant, fc.RetryBackoff)
	}
	if fc.Timeout != nil {
		if *fc.Timeout <= 0 {
			return EffectiveConfig{}, invalid("timeout 必须大于 0：%v", *fc.Timeout)
		}
		eff.Timeout = seconds(*fc.Timeout)
	}
	if fc.MaxBodyBytes < 0 {
		return EffectiveConfig{}, invalid("max_body_bytes 不能为负数：%d", fc.MaxBodyBytes)
	}
	if fc.MaxBodyBytes > 0 {
		eff.MaxBodyBytes = fc.MaxBodyBytes
	}

	// workers：CLI > config > 默认，范围 [1, MaxWorkers]，超出截断。
	if cli.WorkersSet {
		eff.Workers = cli.Workers
	} else if fc.Workers != 0 {
		eff.Workers = fc.Workers
	}
	if eff.Workers < 1 {
		eff.Workers = 1
	}
	if eff.Workers > MaxWorkers {
		eff.Workers = MaxWorkers
	}

	if fc.Proxy != nil {
		eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if eff.ProxyURL != "" {
		pu, err := url.Parse(eff.ProxyURL)
		if err != nil || pu.Scheme == "" || pu.Host == "" {
			return EffectiveConfig{}, invalid("proxy.url 无效：%q", eff.ProxyURL)
		}
	}

	if g := strings.TrimSpace(fc.Git); g != "" {
		eff.GitBinary = g
	}
	if d := strings.TrimSpace(fc.DataDir); d != "" {
		eff.DataDir = absCleanFrom(cwdAbs, d)
	}

	outDir := cwdAbs
	if d := pick(cli.OutDir, fc.OutDir); d != "" {
		outDir = absCleanFrom(cwdAbs, d)
	}
	if cli.CSV || fc.CSV {
		eff.CSVPath = filepath.Join(outDir, DefaultCSVName)
	}
	if cli.JSON || fc.JSON {
		eff.JSONPath = filepath.Join(outDir, DefaultJSONName)
	}

	// 数据目录在运行结束后整体删除。
	if within(eff.DataDir, cwdAbs) {
		return EffectiveConfig{}, invalid("data_dir 不能是当前目录或其上级目录：%q", eff.DataDir)
	}
	if (eff.CSVPath != "" || eff.JSONPath != "") && within(eff.DataDir, outDir) {
		return EffectiveConfig{}, invalid("报告目录 %q 不能位于 data_dir %q 之内", outDir, eff.DataDir)
	}

	if cli.Verbose {
		eff.LogLevel = slog.LevelDebug
	} else if lv := strings.TrimSpace(fc.LogLevel); lv != "" {
		if err := eff.LogLevel.UnmarshalText([]byte(lv)); err != nil {
			return EffectiveConfig{}, invalid("log_level 无效：%q", lv)
		}
	}

	return eff, nil
}

// CleanTarget 把仓库内路径规范化为相对、使用 '/' 的形式，拒绝绝对路径与 '..'。
func CleanTarget(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return "", fmt.Errorf("仓库内路径不能为空")
	}
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return "", fmt.Errorf("仓库内路径必须是相对路径：%q", p)
	}
	c := path.Clean(p)
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("仓库内路径不能跳出仓库：%q", p)
	}
	return c, nil
}

func pick(cli, file string) string {
	if v := strings.TrimSpace(cli); v != "" {
		return v
	}
	return strings.TrimSpace(file)
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// within 判断 p 是否等于 dir 或位于 dir 之下（两者都是 clean 的绝对路径）。
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件：.yaml/.yml 用 YAML，其余按 JSON。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(p string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
