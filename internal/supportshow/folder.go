package supportshow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
)

// ParsePath 解析文件或目录
// 目录按 supportDecode 布局处理：每个子目录挑体积较大的 SUPPORTSHOW_ALL
// 文件解析（较小的来自备用 CP，内容不全），没有的目录解析其中的普通转储文件
func ParsePath(path string, proj *model.Project) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return ParseFile(path, proj)
	}

	parsed := 0
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		file, ok := pickDumpFile(p)
		if !ok {
			return nil
		}
		if err := ParseFile(file, proj); err != nil {
			// 单个转储解析失败不中断整批
			logger.Errorf("parse %s: %v", file, err)
			return nil
		}
		parsed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", path, err)
	}
	if parsed == 0 {
		return fmt.Errorf("no supportshow dumps found under %s", path)
	}
	logger.Infof("parsed %d supportshow dumps from %s", parsed, path)
	return nil
}

// pickDumpFile 目录内挑一个转储文件
// 有 SUPPORTSHOW_ALL 时取最大的（主 CP），否则取最大的 .txt/.log
func pickDumpFile(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var best string
	var bestSize int64
	var bestPlain string
	var bestPlainSize int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		if strings.Contains(strings.ToUpper(name), "SUPPORTSHOW_ALL") {
			if fi.Size() > bestSize {
				best = filepath.Join(dir, name)
				bestSize = fi.Size()
			}
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".txt" || ext == ".log" {
			if fi.Size() > bestPlainSize {
				bestPlain = filepath.Join(dir, name)
				bestPlainSize = fi.Size()
			}
		}
	}
	if best != "" {
		return best, true
	}
	if bestPlain != "" {
		return bestPlain, true
	}
	return "", false
}
