package zone

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Op 一条 zoning CLI 命令解析结果
type Op struct {
	Line       int
	Cmd        string
	Name       string
	Members    []string
	Principals []string
	Peer       bool
}

// 支持的命令动词
var knownCmds = map[string]bool{
	"alicreate": true, "alidelete": true, "aliadd": true, "aliremove": true,
	"zonecreate": true, "zonedelete": true, "zoneadd": true, "zoneremove": true,
	"cfgcreate": true, "cfgdelete": true, "cfgadd": true, "cfgremove": true,
	"cfgenable": true, "cfgsave": true, "defzone": true,
}

// ParseFile 解析 zoning CLI 脚本
// # 注释与空行忽略，解析错误带行号返回
func ParseFile(r io.Reader) ([]Op, error) {
	var ops []Op
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		op, err := parseLine(line, lineNo)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read zone script: %w", err)
	}
	return ops, nil
}

// parseLine 单条命令
func parseLine(line string, lineNo int) (Op, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return Op{}, err
	}
	if len(tokens) == 0 {
		return Op{}, fmt.Errorf("empty command")
	}
	cmd := strings.ToLower(tokens[0])
	if !knownCmds[cmd] {
		return Op{}, fmt.Errorf("unknown zoning command %q", tokens[0])
	}
	op := Op{Line: lineNo, Cmd: cmd}
	args := tokens[1:]

	switch cmd {
	case "cfgsave":
		return op, nil

	case "cfgenable":
		if len(args) < 1 {
			return Op{}, fmt.Errorf("cfgenable needs a configuration name")
		}
		op.Name = args[0]
		return op, nil

	case "defzone":
		if len(args) < 1 {
			return Op{}, fmt.Errorf("defzone needs --noaccess or --allaccess")
		}
		switch args[0] {
		case "--noaccess", "--allaccess":
			op.Name = strings.TrimPrefix(args[0], "--")
		default:
			return Op{}, fmt.Errorf("defzone: unsupported option %q", args[0])
		}
		return op, nil

	case "zonecreate", "zoneadd", "zoneremove":
		if len(args) > 0 && args[0] == "--peerzone" {
			return parsePeerzone(op, args[1:])
		}
	}

	// 常规形式: cmd "name" [, "m1; m2"]
	if len(args) < 1 {
		return Op{}, fmt.Errorf("%s needs an object name", cmd)
	}
	op.Name = args[0]
	deleteCmd := strings.HasSuffix(cmd, "delete")
	if !deleteCmd {
		if len(args) < 2 {
			return Op{}, fmt.Errorf("%s needs a member list", cmd)
		}
		op.Members = splitMembers(args[1])
		if len(op.Members) == 0 {
			return Op{}, fmt.Errorf("%s: empty member list", cmd)
		}
	}
	return op, nil
}

// parsePeerzone 对等区形式: zonecreate --peerzone "name" -principal "p1;p2" -members "m1;m2"
func parsePeerzone(op Op, args []string) (Op, error) {
	if len(args) < 1 {
		return Op{}, fmt.Errorf("%s --peerzone needs a zone name", op.Cmd)
	}
	op.Peer = true
	op.Name = args[0]
	i := 1
	for i < len(args) {
		switch args[i] {
		case "-principal":
			if i+1 >= len(args) {
				return Op{}, fmt.Errorf("-principal needs a member list")
			}
			op.Principals = splitMembers(args[i+1])
			i += 2
		case "-members":
			if i+1 >= len(args) {
				return Op{}, fmt.Errorf("-members needs a member list")
			}
			op.Members = splitMembers(args[i+1])
			i += 2
		default:
			return Op{}, fmt.Errorf("unexpected peerzone option %q", args[i])
		}
	}
	if op.Cmd == "zonecreate" && len(op.Principals) == 0 {
		return Op{}, fmt.Errorf("peer zone needs at least one principal member")
	}
	return op, nil
}

// tokenize 按 FOS CLI 习惯切词
// 双引号内保留空格与分号，逗号是参数分隔符
func tokenize(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			if inQuote {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			inQuote = !inQuote
		case inQuote:
			cur.WriteRune(r)
		case r == ',' || r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	flush()
	return tokens, nil
}

// splitMembers 成员列表按 ; 切分
func splitMembers(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ";") {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
