package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/John-Robertt/webappversion/internal/app/run"
	"github.com/John-Robertt/webappversion/internal/config"
	"github.com/John-Robertt/webappversion/internal/domain"
	"github.com/John-Robertt/webappversion/internal/infra/workspace"
	"github.com/John-Robertt/webappversion/internal/report"
)

func main() {
	if code := runCmd(os.Args[1:]); code != 0 {
		os.Exit(code)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printUsage(os.Stdout)
			return 0
		}
	}

	cli, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printUsage(os.Stderr)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置错误：%v\n", err)
		return 2
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: eff.LogLevel}))
	slog.SetDefault(log)

	ws := workspace.New(eff.DataDir)
	defer func() {
		// 成功或失败都删除克隆目录；没有标记的目录已由 Prepare 拒绝。
		if err := ws.Cleanup(); err != nil && !errors.Is(err, workspace.ErrNotOwned) {
			log.Warn("清理数据目录失败", "dir", ws.Root, "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var obs run.Observer
	if w, interactive := pickProgressWriter(); interactive {
		ui := newProgressUI(w)
		defer ui.Close()
		obs = ui
	}

	rep, err := run.Execute(ctx, eff, run.Deps{Logger: log}, obs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "运行失败（%s）：%v\n", run.Code(err), err)
		return 1
	}

	if err := report.Files(rep, eff.CSVPath, eff.JSONPath); err != nil {
		fmt.Fprintf(os.Stderr, "写入报告失败：%v\n", err)
		emitReport(os.Stdout, rep, isTTY(os.Stdout))
		return 1
	}
	emitReport(os.Stdout, rep, isTTY(os.Stdout))
	emitLocations(os.Stderr, eff)
	return 0
}

// parseArgs 解析 `<site> <repo> <path> [options]`。
//
// -e/--extensions 接受多个值，直到遇到下一个以 '-' 开头的参数为止。
func parseArgs(args []string) (config.CLIArgs, error) {
	var cli config.CLIArgs
	var positional []string

	for i := 0; i < len(args); i++ {
		a := args[i]
		name, inline, hasInline := strings.Cut(a, "=")
		if !strings.HasPrefix(a, "-") || a == "-" {
			positional = append(positional, a)
			continue
		}

		value := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "-") {
				return "", fmt.Errorf("%s 需要一个值", name)
			}
			i++
			return args[i], nil
		}
		intValue := func() (int, error) {
			v, err := value()
			if err != nil {
				return 0, err
			}
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return 0, fmt.Errorf("%s 需要整数，实际是 %q", name, v)
			}
			return n, nil
		}

		switch name {
		case "-e", "--extensions":
			cli.ExtensionsSet = true
			if hasInline {
				cli.Extensions = append(cli.Extensions, splitList(inline)...)
				continue
			}
			for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				cli.Extensions = append(cli.Extensions, splitList(args[i])...)
			}
			if len(cli.Extensions) == 0 {
				return config.CLIArgs{}, fmt.Errorf("%s 至少需要一个扩展名", name)
			}
		case "-c", "--csv":
			cli.CSV = true
		case "-j", "--json":
			cli.JSON = true
		case "-v", "--verbose":
			cli.Verbose = true
		case "--out":
			v, err := value()
			if err != nil {
				return config.CLIArgs{}, err
			}
			cli.OutDir = v
		case "--config":
			v, err := value()
			if err != nil {
				return config.CLIArgs{}, err
			}
			cli.ConfigPath = v
		case "--workers":
			n, err := intValue()
			if err != nil {
				return config.CLIArgs{}, err
			}
			if n < 1 {
				return config.CLIArgs{}, fmt.Errorf("--workers 必须大于 0，实际是 %d", n)
			}
			cli.Workers, cli.WorkersSet = n, true
		case "--depth":
			n, err := intValue()
			if err != nil {
				return config.CLIArgs{}, err
			}
			cli.Depth, cli.DepthSet = n, true
		default:
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		}
	}

	if len(positional) > 3 {
		return config.CLIArgs{}, fmt.Errorf("多余的参数：%q", positional[3:])
	}
	// 位置参数可以省略（由配置文件提供），但必须按 site repo path 的顺序给出。
	for i, p := range positional {
		switch i {
		case 0:
			cli.Site = p
		case 1:
			cli.Repo = p
		case 2:
			cli.Target = p
		}
	}
	return cli, nil
}

// splitList 允许 "-e .js,.css" 这样的逗号写法。
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  webappversion <site> <repo> <path> [-e EXT...] [-c] [-j] [--out DIR]
                [--workers N] [--depth N] [--config FILE] [-v]

位置参数：
  site    部署站点的基础 URL（http/https）
  repo    web 应用源码仓库（git clone 可用的地址）
  path    仓库内与站点静态资源对应的目录

参数：
  -e, --extensions  只比较这些扩展名的文件（可给多个，例如 -e .js .css）；默认全部
  -c, --csv         写出 output.csv（';' 分隔：第一行提交，第二行标签）
  -j, --json        写出 output.json
  --out             报告输出目录（默认当前目录）
  --workers         并行 worker 数（默认 10，上限 64）
  --depth           爬取深度（默认 10）
  --config          配置文件（.json/.yaml/.yml）；未指定时探测 ./webappversion.{yaml,yml,json}
  -v, --verbose     输出 debug 日志
  -h, --help        显示帮助
`)
}

// emitReport 在终端输出可读结果；stdout 非 TTY 时只输出一个报告 JSON。
func emitReport(w io.Writer, rep domain.Report, tty bool) {
	if !tty {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(rep)
		return
	}

	if len(rep.Commits) == 0 {
		fmt.Fprintln(w, "没有与站点一致的提交。")
	} else {
		fmt.Fprintf(w, "一致的提交（%d）：\n", len(rep.Commits))
		for _, c := range rep.Commits {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}
	if len(rep.Tags) == 0 {
		fmt.Fprintln(w, "没有对应的标签。")
	} else {
		fmt.Fprintf(w, "可能的版本：%s\n", strings.Join(rep.Tags, ", "))
	}
	if rep.Summary.Inconclusive > 0 {
		fmt.Fprintf(w, "注意：%d 个提交无法判定（检出或读取失败），结果可能不完整。\n", rep.Summary.Inconclusive)
	}
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if eff.CSVPath != "" {
		fmt.Fprintf(w, "csv: %s\n", eff.CSVPath)
	}
	if eff.JSONPath != "" {
		fmt.Fprintf(w, "json: %s\n", eff.JSONPath)
	}
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
