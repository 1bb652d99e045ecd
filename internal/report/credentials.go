package report

import (
	"fmt"
	"net"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CredentialsSheet 登录参数工作表名
const CredentialsSheet = "parameters"

// Credential 一台交换机的登录参数
type Credential struct {
	Name     string `json:"name"`
	IPAddr   string `json:"ip_addr"`
	UserID   string `json:"user_id"`
	Password string `json:"-"`
	Security string `json:"security"`
}

// ReadCredentials 从 Excel 工作簿读取批量采集的登录参数
// 表头行列名 user_id/pw/ip_addr/security/name，校验错误带行号
func ReadCredentials(path string) ([]Credential, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials workbook %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(CredentialsSheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q not found in %s", CredentialsSheet, path)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q has no data rows", CredentialsSheet)
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"user_id", "pw", "ip_addr"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("sheet %q missing column %q", CredentialsSheet, required)
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var creds []Credential
	for i, row := range rows[1:] {
		rowNo := i + 2
		c := Credential{
			Name:     cell(row, "name"),
			IPAddr:   cell(row, "ip_addr"),
			UserID:   cell(row, "user_id"),
			Password: cell(row, "pw"),
			Security: cell(row, "security"),
		}
		if c.IPAddr == "" && c.UserID == "" && c.Password == "" {
			continue // 空行
		}
		if net.ParseIP(c.IPAddr) == nil {
			return nil, fmt.Errorf("row %d: invalid ip_addr %q", rowNo, c.IPAddr)
		}
		if c.UserID == "" {
			return nil, fmt.Errorf("row %d: user_id is empty", rowNo)
		}
		if c.Password == "" {
			return nil, fmt.Errorf("row %d: pw is empty", rowNo)
		}
		if c.Security == "" {
			c.Security = "self"
		}
		if c.Name == "" {
			c.Name = c.IPAddr
		}
		creds = append(creds, c)
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("sheet %q has no usable rows", CredentialsSheet)
	}
	return creds, nil
}
