package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanscope/sanscope/internal/config"
	"github.com/sanscope/sanscope/pkg/logger"
	"github.com/sanscope/sanscope/pkg/rest"
)

// 退出码
const (
	exitOK       = 0
	exitError    = 1
	exitInput    = 3
	exitAPIError = 4
)

// 登录与日志参数，所有子命令共用
var (
	flagIP  string
	flagID  string
	flagPW  string
	flagSec string
	flagSup bool
	flagNL  bool
	flagLog string
	flagDbg bool
)

// inputError 参数或输入文件错误，退出码 3
type inputError struct{ err error }

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

func inputErrorf(format string, args ...interface{}) error {
	return &inputError{err: fmt.Errorf(format, args...)}
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitOK)
}

// exitCode 错误分类到退出码
func exitCode(err error) int {
	var inErr *inputError
	if errors.As(err, &inErr) {
		return exitInput
	}
	var apiErr *rest.Error
	if errors.As(err, &apiErr) {
		return exitAPIError
	}
	return exitError
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sanscope",
		Short:         "sanscope captures, parses, and reports fibre-channel SAN switch state.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagIP, "ip", "", "Switch IP address.")
	pf.StringVar(&flagID, "id", "", "User ID.")
	pf.StringVar(&flagPW, "pw", "", "Password.")
	pf.StringVar(&flagSec, "s", "self", `"none" for HTTP. The default is "self" for HTTPS mode.`)
	pf.BoolVar(&flagSup, "sup", false, "Suppress all output to STD_IO except the exit code. Messages are still printed to the log file.")
	pf.BoolVar(&flagNL, "nl", false, "Do not create a log file.")
	pf.StringVar(&flagLog, "log", "", "Directory where the log file is to be created. Default is the current directory.")
	pf.BoolVar(&flagDbg, "d", false, "Log all content sent and received to/from the API, except login information.")

	cmd.AddCommand(newCaptureCmd())
	cmd.AddCommand(newCombineCmd())
	cmd.AddCommand(newMulticaptureCmd())
	cmd.AddCommand(newSscaptureCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newStatsDBCmd())
	cmd.AddCommand(newStatsReportCmd())
	cmd.AddCommand(newZoneCmd())
	cmd.AddCommand(newZoneEnableCmd())
	cmd.AddCommand(newLoginTestCmd())

	return cmd
}

// initLogging 按 -sup/-nl/-log/-d 初始化日志
func initLogging() error {
	level := "info"
	if flagDbg {
		level = "debug"
	}
	filePath := ""
	if !flagNL {
		dir := flagLog
		if dir == "" {
			dir = "."
		}
		filePath = filepath.Join(dir, "Log_"+time.Now().Format("20060102_150405")+".log")
	}
	return logger.Init(logger.Config{
		Level:    level,
		Format:   "text",
		FilePath: filePath,
		MaxSize:  100,
		Suppress: flagSup,
		NoLog:    flagNL,
	})
}

// requireLogin 校验登录三要素
func requireLogin() error {
	if flagIP == "" || flagID == "" || flagPW == "" {
		return inputErrorf("missing required login parameters: -ip, -id, -pw")
	}
	if flagSec != rest.SecuritySelf && flagSec != rest.SecurityNone {
		return inputErrorf("invalid -s value %q, must be self or none", flagSec)
	}
	return nil
}

// cliConfig 命令行工具的运行配置，有 config.yaml 就用，没有用默认值
func cliConfig() *config.Config {
	if cfg, err := config.Load(""); err == nil {
		return cfg
	}
	return config.Default()
}

// feedback 命令行反馈块
// 除 -sup 抑制的控制台输出外同时进日志
func feedback(lines ...string) {
	for _, line := range lines {
		if !flagSup {
			fmt.Println(line)
		}
		logger.Info(line)
	}
}

// loginFeedback 登录参数反馈块
func loginFeedback() []string {
	return []string{
		"IP, -ip:             " + rest.MaskIPAddr(flagIP, true),
		"ID, -id:             " + flagID,
		"Security, -s:        " + flagSec,
	}
}

// parseFIDList 解析 CSV 与区间形式的 FID 列表，如 1,20-22,128
func parseFIDList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var fids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || start > end {
				return nil, inputErrorf("invalid FID range %q", part)
			}
			for fid := start; fid <= end; fid++ {
				fids = append(fids, fid)
			}
			continue
		}
		fid, err := strconv.Atoi(part)
		if err != nil {
			return nil, inputErrorf("invalid FID %q", part)
		}
		fids = append(fids, fid)
	}
	for _, fid := range fids {
		if fid < 1 || fid > 128 {
			return nil, inputErrorf("FID %d out of range 1-128", fid)
		}
	}
	return fids, nil
}
