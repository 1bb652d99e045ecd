package zone

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
	"github.com/sanscope/sanscope/pkg/rest"
)

const (
	definedURI   = "running/brocade-zone/defined-configuration"
	effectiveURI = "running/brocade-zone/effective-configuration"

	// effective-configuration 的 cfg-action 值
	cfgActionSave  = 1
	cfgActionAbort = 4
)

// Result 单条命令的执行记录
type Result struct {
	Line    int    `json:"line"`
	Cmd     string `json:"cmd"`
	Changed bool   `json:"changed"`
	Fail    bool   `json:"fail"`
	IO      bool   `json:"io"`
	Status  int    `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// Applier zoning 事务执行器
// Test 只校验不下发；Force 创建冲突时覆盖已有对象
type Applier struct {
	session *rest.Session
	fid     int
	Test    bool
	Force   bool

	checksum string
}

// NewApplier 创建执行器，session 必须已登录
func NewApplier(session *rest.Session, fid int) *Applier {
	return &Applier{session: session, fid: fid}
}

// Apply 顺序执行命令，任一条失败即中止事务并放弃未保存的修改
func (a *Applier) Apply(ctx context.Context, ops []Op) ([]Result, error) {
	if err := a.readChecksum(ctx); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ops))
	for _, op := range ops {
		res := a.applyOne(ctx, op)
		results = append(results, res)
		if res.Fail {
			logger.Errorf("zone command at line %d failed: %s", op.Line, res.Reason)
			if !a.Test {
				if err := a.abort(ctx); err != nil {
					logger.Errorf("abort zoning transaction: %v", err)
				}
			}
			return results, fmt.Errorf("zone transaction aborted at line %d: %s", op.Line, res.Reason)
		}
	}
	return results, nil
}

// EnableCfg 启用指定配置，独立于脚本执行
func (a *Applier) EnableCfg(ctx context.Context, name string) error {
	if err := a.readChecksum(ctx); err != nil {
		return err
	}
	content := map[string]interface{}{
		"effective-configuration": map[string]interface{}{
			"checksum": a.checksum,
			"cfg-name": name,
		},
	}
	if err := a.session.Patch(ctx, effectiveURI, a.fid, content); err != nil {
		return fmt.Errorf("enable cfg %s: %w", name, err)
	}
	logger.Infof("zone configuration %s enabled", name)
	return nil
}

// readChecksum 事务令牌，来自 effective-configuration
func (a *Applier) readChecksum(ctx context.Context) error {
	body, err := a.session.Get(ctx, effectiveURI, a.fid)
	if err != nil {
		return fmt.Errorf("read effective configuration: %w", err)
	}
	eff, ok := body["effective-configuration"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("effective configuration payload malformed")
	}
	cs, _ := eff["checksum"].(string)
	if cs == "" {
		return fmt.Errorf("zoning checksum missing")
	}
	a.checksum = cs
	return nil
}

// applyOne 单条命令
func (a *Applier) applyOne(ctx context.Context, op Op) Result {
	res := Result{Line: op.Line, Cmd: op.Cmd}

	method, uri, content, err := a.buildRequest(op)
	if err != nil {
		res.Fail = true
		res.Status = rest.StatusBadRequest
		res.Reason = err.Error()
		return res
	}
	if a.Test {
		// 校验模式不发请求
		res.Changed = true
		res.Reason = "validated"
		return res
	}

	res.IO = true
	switch method {
	case "POST":
		_, err = a.session.Post(ctx, uri, a.fid, content)
		if err != nil && a.Force && isExists(err) {
			// 覆盖已有对象
			err = a.session.Patch(ctx, uri, a.fid, content)
		}
	case "PATCH":
		err = a.session.Patch(ctx, uri, a.fid, content)
	case "DELETE":
		err = a.session.Delete(ctx, uri, a.fid, content)
	}
	if err != nil {
		res.Fail = true
		var apiErr *rest.Error
		if errors.As(err, &apiErr) {
			res.Status = apiErr.Status
		}
		res.Reason = err.Error()
		return res
	}
	res.Changed = true
	res.Status = rest.StatusOK
	return res
}

// buildRequest 命令到 API 请求的映射
func (a *Applier) buildRequest(op Op) (method, uri string, content map[string]interface{}, err error) {
	switch op.Cmd {
	case "alicreate", "aliadd":
		return "POST", definedURI + "/alias", aliasContent(op.Name, op.Members), nil
	case "aliremove":
		return "DELETE", definedURI + "/alias", aliasContent(op.Name, op.Members), nil
	case "alidelete":
		return "DELETE", definedURI + "/alias", aliasContent(op.Name, nil), nil

	case "zonecreate", "zoneadd":
		return "POST", definedURI + "/zone", zoneContent(op), nil
	case "zoneremove":
		return "DELETE", definedURI + "/zone", zoneContent(op), nil
	case "zonedelete":
		return "DELETE", definedURI + "/zone", zoneContent(Op{Name: op.Name}), nil

	case "cfgcreate", "cfgadd":
		return "POST", definedURI + "/cfg", cfgContent(op.Name, op.Members), nil
	case "cfgremove":
		return "DELETE", definedURI + "/cfg", cfgContent(op.Name, op.Members), nil
	case "cfgdelete":
		return "DELETE", definedURI + "/cfg", cfgContent(op.Name, nil), nil

	case "cfgsave":
		return "PATCH", effectiveURI, map[string]interface{}{
			"effective-configuration": map[string]interface{}{
				"checksum":   a.checksum,
				"cfg-action": cfgActionSave,
			},
		}, nil
	case "cfgenable":
		return "PATCH", effectiveURI, map[string]interface{}{
			"effective-configuration": map[string]interface{}{
				"checksum": a.checksum,
				"cfg-name": op.Name,
			},
		}, nil
	case "defzone":
		access := 0
		if op.Name == "allaccess" {
			access = 1
		}
		return "PATCH", effectiveURI, map[string]interface{}{
			"effective-configuration": map[string]interface{}{
				"checksum":            a.checksum,
				"default-zone-access": access,
			},
		}, nil
	}
	return "", "", nil, fmt.Errorf("unsupported zoning command %q", op.Cmd)
}

// abort 放弃未保存的事务
func (a *Applier) abort(ctx context.Context) error {
	content := map[string]interface{}{
		"effective-configuration": map[string]interface{}{
			"checksum":   a.checksum,
			"cfg-action": cfgActionAbort,
		},
	}
	return a.session.Patch(ctx, effectiveURI, a.fid, content)
}

// aliasContent 别名请求载荷
func aliasContent(name string, members []string) map[string]interface{} {
	alias := map[string]interface{}{"alias-name": name}
	if len(members) > 0 {
		alias["member-entry"] = map[string]interface{}{"alias-entry-name": members}
	}
	return map[string]interface{}{"alias": []interface{}{alias}}
}

// zoneContent 分区请求载荷，对等区带 zone-type 与 principal 成员
func zoneContent(op Op) map[string]interface{} {
	z := map[string]interface{}{"zone-name": op.Name}
	entry := map[string]interface{}{}
	if len(op.Members) > 0 {
		entry["entry-name"] = op.Members
	}
	if op.Peer {
		z["zone-type"] = model.ZoneTypePeer
		if len(op.Principals) > 0 {
			entry["principal-entry-name"] = op.Principals
		}
	}
	if len(entry) > 0 {
		z["member-entry"] = entry
	}
	return map[string]interface{}{"zone": []interface{}{z}}
}

// cfgContent 配置请求载荷
func cfgContent(name string, members []string) map[string]interface{} {
	cfg := map[string]interface{}{"cfg-name": name}
	if len(members) > 0 {
		cfg["member-zone"] = map[string]interface{}{"zone-name": members}
	}
	return map[string]interface{}{"cfg": []interface{}{cfg}}
}

// isExists 对象已存在类错误
func isExists(err error) bool {
	var apiErr *rest.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, m := range apiErr.Messages {
		lower := strings.ToLower(m)
		if strings.Contains(lower, "already exists") || strings.Contains(lower, "duplicate") {
			return true
		}
	}
	return false
}
