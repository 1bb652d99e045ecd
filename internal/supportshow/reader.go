package supportshow

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readLines 读入终端日志并按行切分
// 依次尝试 UTF-8、UTF-16（按 BOM）与 latin-1，容忍 PuTTY/SecureCRT 的各种存档格式
func readLines(raw []byte) ([]string, error) {
	decoded, err := decodeDump(raw)
	if err != nil {
		return nil, err
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(decoded))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan dump: %w", err)
	}
	return lines, nil
}

// decodeDump 编码探测与转换
func decodeDump(raw []byte) ([]byte, error) {
	// UTF-16 BOM
	if len(raw) >= 2 && ((raw[0] == 0xFF && raw[1] == 0xFE) || (raw[0] == 0xFE && raw[1] == 0xFF)) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, raw)
		if err != nil {
			return nil, fmt.Errorf("decode UTF-16 dump: %w", err)
		}
		return out, nil
	}
	if utf8.Valid(raw) {
		return raw, nil
	}
	// latin-1 兜底，任何字节序列都可解
	out, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("decode latin-1 dump: %w", err)
	}
	return out, nil
}

// readFileLines 读文件版本
func readFileLines(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dump %s: %w", path, err)
	}
	return readLines(raw)
}

// readerLines io.Reader 版本
func readerLines(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	return readLines(raw)
}
