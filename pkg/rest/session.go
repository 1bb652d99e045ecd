package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sanscope/sanscope/pkg/logger"
)

const (
	yangContentType = "application/yang-data+json"

	// SecurityNone HTTP 明文，SecuritySelf 自签名证书，SecurityCA 正式证书
	SecurityNone = "none"
	SecuritySelf = "self"
	SecurityCA   = "CA"
)

// Config 会话配置
type Config struct {
	Security       string
	Timeout        time.Duration
	MaxRetries     int
	SvcUnavailWait time.Duration
	FabricBusyWait time.Duration
	RecordDir      string // 非空时记录每个 GET 响应到目录
	ReplayDir      string // 非空时从目录回放 GET，不发起网络请求
}

// DefaultConfig 默认配置
// 503 等待 4 秒，Fabric 忙等待 10 秒，最多重试 5 次
func DefaultConfig() Config {
	return Config{
		Security:       SecuritySelf,
		Timeout:        60 * time.Second,
		MaxRetries:     5,
		SvcUnavailWait: 4 * time.Second,
		FabricBusyWait: 10 * time.Second,
	}
}

// Session FOS RESTConf 会话
// Login 成功后持有认证令牌与 URI 表，使用完毕必须 Logout 释放交换机侧会话
type Session struct {
	cfg     Config
	ip      string
	user    string
	baseURL string
	token   string
	client  *http.Client
	uriMap  map[string]*URIInfo
}

// NewSession 创建未登录的会话
func NewSession(cfg Config) *Session {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.SvcUnavailWait <= 0 {
		cfg.SvcUnavailWait = 4 * time.Second
	}
	if cfg.FabricBusyWait <= 0 {
		cfg.FabricBusyWait = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	transport := &http.Transport{}
	if cfg.Security == SecuritySelf {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Session{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		uriMap: make(map[string]*URIInfo),
	}
}

// IP 会话目标地址
func (s *Session) IP() string {
	return s.ip
}

// Replay 是否处于回放模式
func (s *Session) Replay() bool {
	return s.cfg.ReplayDir != ""
}

// URIMap 登录后构建的 URI 表
func (s *Session) URIMap() map[string]*URIInfo {
	return s.uriMap
}

// LookupKPI 查询 KPI 对应的 URI 描述
func (s *Session) LookupKPI(kpi string) (*URIInfo, bool) {
	module, object := splitKPI(kpi)
	key := module
	if object != "" {
		key = module + "/" + object
	}
	info, ok := s.uriMap[key]
	return info, ok
}

// Login 登录并构建 URI 表
// 认证头为 Custom_Basic base64(user:pw:)，令牌从响应 Authorization 头取得
func (s *Session) Login(ctx context.Context, ip, user, pw string) error {
	s.ip = ip
	s.user = user

	if s.Replay() {
		logger.Infof("replay mode, skip login for %s", MaskIPAddr(ip, true))
		s.token = "Custom_Basic replay"
		return s.loadURIMap(ctx)
	}

	scheme := "https"
	if s.cfg.Security == SecurityNone {
		scheme = "http"
	}
	s.baseURL = fmt.Sprintf("%s://%s", scheme, ip)

	cred := base64.StdEncoding.EncodeToString([]byte(user + ":" + pw + ":"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/login", nil)
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Authorization", "Custom_Basic "+cred)
	req.Header.Set("Accept", yangContentType)
	req.Header.Set("User-Agent", "sanscope")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("login %s: %w", MaskIPAddr(ip, true), err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := parseErrorBody(resp.StatusCode, resp.Status, body)
		logger.Errorf("login failed for %s: %s", MaskIPAddr(ip, true), apiErr.FormattedMsg())
		return apiErr
	}
	token := resp.Header.Get("Authorization")
	if token == "" {
		return NewError(resp.StatusCode, "login response missing Authorization header")
	}
	s.token = token
	logger.Infof("login OK: %s", MaskIPAddr(ip, true))

	return s.loadURIMap(ctx)
}

// loadURIMap 通过 brocade-module-version 发现交换机支持的全部对象
func (s *Session) loadURIMap(ctx context.Context) error {
	body, err := s.Get(ctx, "brocade-module-version", 0)
	if err != nil {
		// 旧固件不支持模块枚举时退回内置表
		logger.Warnf("brocade-module-version unavailable, using built-in URI map: %v", err)
		s.uriMap = defaultURIMap()
		return nil
	}
	s.uriMap = buildURIMap(body)
	if len(s.uriMap) == 0 {
		s.uriMap = defaultURIMap()
	}
	logger.Debugf("URI map loaded: %d objects", len(s.uriMap))
	return nil
}

// Logout 退出会话
// 交换机侧并发会话数有限，失败只记日志不返回错误
func (s *Session) Logout(ctx context.Context) {
	if s.token == "" || s.Replay() {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/logout", nil)
	if err != nil {
		logger.Errorf("build logout request: %v", err)
		return
	}
	req.Header.Set("Authorization", s.token)
	req.Header.Set("Accept", yangContentType)
	resp, err := s.client.Do(req)
	if err != nil {
		logger.Errorf("logout %s: %v", MaskIPAddr(s.ip, true), err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	s.token = ""
	logger.Infof("logout OK: %s", MaskIPAddr(s.ip, true))
}

// Get GET 请求
// 404 Not Found、FDMI 无记录、平台不支持等返回空列表而非错误
func (s *Session) Get(ctx context.Context, ruri string, fid int) (map[string]interface{}, error) {
	if s.Replay() {
		return s.replayGet(ruri, fid)
	}
	body, apiErr := s.request(ctx, http.MethodGet, ruri, fid, nil)
	if apiErr != nil {
		if normalized, ok := emptyListFor(ruri, apiErr); ok {
			logger.Debugf("GET %s normalized to empty list: %s", ruri, apiErr.Reason)
			return normalized, nil
		}
		return nil, apiErr
	}
	if s.cfg.RecordDir != "" {
		s.recordGet(ruri, fid, body)
	}
	return body, nil
}

// Patch PATCH 请求
// "No Change in Configuration" 与 "Same configuration" 按成功处理
func (s *Session) Patch(ctx context.Context, ruri string, fid int, content interface{}) error {
	_, apiErr := s.request(ctx, http.MethodPatch, ruri, fid, content)
	if apiErr != nil {
		if isNoChange(apiErr) {
			logger.Debugf("PATCH %s: no configuration change", ruri)
			return nil
		}
		return apiErr
	}
	return nil
}

// Post POST 请求
func (s *Session) Post(ctx context.Context, ruri string, fid int, content interface{}) (map[string]interface{}, error) {
	body, apiErr := s.request(ctx, http.MethodPost, ruri, fid, content)
	if apiErr != nil {
		return nil, apiErr
	}
	return body, nil
}

// Delete DELETE 请求
func (s *Session) Delete(ctx context.Context, ruri string, fid int, content interface{}) error {
	_, apiErr := s.request(ctx, http.MethodDelete, ruri, fid, content)
	if apiErr != nil {
		return apiErr
	}
	return nil
}

// Operations 调用 operations 分支并轮询完成状态
// POST 后按 message-id 轮询 show-status，状态 done 时返回最终响应
func (s *Session) Operations(ctx context.Context, ruri string, fid int, content interface{}, wait time.Duration, maxTry int) (map[string]interface{}, error) {
	if wait <= 0 {
		wait = 10 * time.Second
	}
	if maxTry <= 0 {
		maxTry = 3
	}
	body, apiErr := s.request(ctx, http.MethodPost, ruri, fid, content)
	if apiErr != nil {
		return nil, apiErr
	}
	msgID, status := showStatus(body)
	if msgID == "" || status == "done" {
		return body, nil
	}
	statusURI := fmt.Sprintf("operations/show-status/message-id/%s", msgID)
	for i := 0; i < maxTry; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		body, apiErr = s.request(ctx, http.MethodGet, statusURI, fid, nil)
		if apiErr != nil {
			return nil, apiErr
		}
		if _, status = showStatus(body); status == "done" {
			return body, nil
		}
		logger.Debugf("operation %s message-id %s status %q, retry %d/%d", ruri, msgID, status, i+1, maxTry)
	}
	return body, NewError(StatusTimeout, fmt.Sprintf("operation %s did not complete, last status %q", ruri, status))
}

// request 带重试的请求入口
func (s *Session) request(ctx context.Context, method, ruri string, fid int, content interface{}) (map[string]interface{}, *Error) {
	var lastErr *Error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		body, apiErr := s.apiRequest(ctx, method, ruri, fid, content)
		if apiErr == nil {
			return body, nil
		}
		lastErr = apiErr
		delay, retry := s.retryDelay(apiErr)
		if !retry || attempt == s.cfg.MaxRetries {
			break
		}
		logger.Warnf("%s %s: %s, retry %d/%d after %s", method, ruri, apiErr.Reason, attempt+1, s.cfg.MaxRetries, delay)
		select {
		case <-ctx.Done():
			return nil, NewError(StatusTimeout, "request cancelled", ctx.Err().Error())
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// retryDelay 可重试错误对应的等待时长
func (s *Session) retryDelay(apiErr *Error) (time.Duration, bool) {
	if apiErr.Status == StatusUnavailable && strings.Contains(apiErr.Reason, "Service Unavailable") {
		return s.cfg.SvcUnavailWait, true
	}
	if apiErr.Status == StatusBadRequest {
		for _, m := range apiErr.Messages {
			if strings.Contains(m, "The Fabric is busy") {
				return s.cfg.FabricBusyWait, true
			}
		}
	}
	return 0, false
}

// apiRequest 单次 HTTP 请求
func (s *Session) apiRequest(ctx context.Context, method, ruri string, fid int, content interface{}) (map[string]interface{}, *Error) {
	uri := s.formatURI(ruri, fid)

	var reqBody io.Reader
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, NewError(StatusBadRequest, "marshal request content", err.Error())
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, reqBody)
	if err != nil {
		return nil, NewError(StatusBadRequest, "build request", err.Error())
	}
	req.Header.Set("Authorization", s.token)
	req.Header.Set("Accept", yangContentType)
	if content != nil {
		req.Header.Set("Content-Type", yangContentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewError(StatusServerError, "request failed", err.Error())
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, NewError(StatusServerError, "read response", err.Error())
	}

	if resp.StatusCode >= 300 {
		return nil, parseErrorBody(resp.StatusCode, resp.Status, raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]interface{}{}, nil
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, NewError(resp.StatusCode, "decode response", err.Error())
	}
	if r, ok := body["Response"].(map[string]interface{}); ok {
		body = r
	}
	return body, nil
}

// formatURI 拼出完整请求地址，交换机级对象附加 vf-id
func (s *Session) formatURI(ruri string, fid int) string {
	ruri = strings.Trim(ruri, "/")
	uri := s.baseURL + "/rest/" + ruri
	if fid > 0 {
		if info, ok := s.LookupKPI(ruri); !ok || info.PerFID() {
			uri += fmt.Sprintf("?vf-id=%d", fid)
		}
	}
	return uri
}

// recordGet 记录模式：保存 GET 响应供回放
func (s *Session) recordGet(ruri string, fid int, body map[string]interface{}) {
	if err := os.MkdirAll(s.cfg.RecordDir, 0755); err != nil {
		logger.Errorf("create record dir: %v", err)
		return
	}
	raw, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		logger.Errorf("marshal record for %s: %v", ruri, err)
		return
	}
	path := filepath.Join(s.cfg.RecordDir, replayFileName(ruri, fid))
	if err := os.WriteFile(path, raw, 0644); err != nil {
		logger.Errorf("write record %s: %v", path, err)
	}
}

// replayGet 回放模式：从目录读取先前记录的响应
func (s *Session) replayGet(ruri string, fid int) (map[string]interface{}, error) {
	path := filepath.Join(s.cfg.ReplayDir, replayFileName(ruri, fid))
	raw, err := os.ReadFile(path)
	if err != nil {
		// 缺失文件等同 404，按空列表处理
		apiErr := NewError(StatusNotFound, "Not Found", fmt.Sprintf("no replay file for %s", ruri))
		if normalized, ok := emptyListFor(ruri, apiErr); ok {
			logger.Debugf("replay miss for %s, empty list", ruri)
			return normalized, nil
		}
		return nil, apiErr
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode replay file %s: %w", path, err)
	}
	return body, nil
}

// replayFileName URI 转文件名，斜杠替换为下划线
func replayFileName(ruri string, fid int) string {
	name := strings.ReplaceAll(strings.Trim(ruri, "/"), "/", "_")
	if fid > 0 {
		name = fmt.Sprintf("%s_vf%d", name, fid)
	}
	return name + ".json"
}

// parseErrorBody 解析 FOS 错误载荷 errors.error[].error-message
func parseErrorBody(status int, reason string, raw []byte) *Error {
	apiErr := &Error{Status: status, Reason: reason}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return apiErr
	}
	errs, ok := body["errors"].(map[string]interface{})
	if !ok {
		return apiErr
	}
	switch v := errs["error"].(type) {
	case []interface{}:
		for _, e := range v {
			if em, ok := e.(map[string]interface{}); ok {
				if msg, ok := em["error-message"].(string); ok {
					apiErr.Messages = append(apiErr.Messages, msg)
				}
			}
		}
	case map[string]interface{}:
		if msg, ok := v["error-message"].(string); ok {
			apiErr.Messages = append(apiErr.Messages, msg)
		}
	}
	return apiErr
}

// emptyListFor GET 错误归一化
// 未配置的可选特性返回空列表，调用方无需逐个判断
func emptyListFor(ruri string, apiErr *Error) (map[string]interface{}, bool) {
	normalize := false
	if apiErr.Status == StatusNotFound && strings.Contains(apiErr.Reason, "Not Found") {
		normalize = true
	}
	if apiErr.Status == StatusBadRequest {
		for _, m := range apiErr.Messages {
			if containsAny(m, "No entries in the FDMI database", "Not supported on this platform") {
				normalize = true
				break
			}
		}
	}
	if !normalize {
		return nil, false
	}
	parts := strings.Split(strings.Trim(ruri, "/"), "/")
	leaf := parts[len(parts)-1]
	return map[string]interface{}{leaf: []interface{}{}}, true
}

// isNoChange PATCH 已是目标配置时 FOS 返回 400，按成功处理
func isNoChange(apiErr *Error) bool {
	if apiErr.Status != StatusBadRequest {
		return false
	}
	for _, m := range apiErr.Messages {
		if containsAny(m, "No Change in Configuration", "Same configuration") {
			return true
		}
	}
	return false
}

// showStatus 从 operations 响应中取出 message-id 与状态
func showStatus(body map[string]interface{}) (msgID, status string) {
	ss, ok := body["show-status"].(map[string]interface{})
	if !ok {
		return "", ""
	}
	switch v := ss["message-id"].(type) {
	case string:
		msgID = v
	case float64:
		msgID = fmt.Sprintf("%.0f", v)
	}
	status, _ = ss["status"].(string)
	return msgID, status
}
