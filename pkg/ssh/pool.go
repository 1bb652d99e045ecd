package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pool SSH连接池
// 多机箱并发采集时按 host:port@user 复用连接
type Pool struct {
	config      *Config
	connections map[string]*pooledConnection
	mutex       sync.RWMutex
	maxIdle     int
	maxActive   int
	idleTimeout time.Duration
}

// pooledConnection 池化的连接
type pooledConnection struct {
	client   *Client
	info     *ConnectionInfo
	lastUsed time.Time
	inUse    bool
	created  time.Time
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdle     int           `yaml:"max_idle"`
	MaxActive   int           `yaml:"max_active"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	SSHConfig   *Config       `yaml:"ssh"`
}

// NewPool 创建SSH连接池
func NewPool(config *PoolConfig) *Pool {
	pool := &Pool{
		config:      config.SSHConfig,
		connections: make(map[string]*pooledConnection),
		maxIdle:     config.MaxIdle,
		maxActive:   config.MaxActive,
		idleTimeout: config.IdleTimeout,
	}

	// 启动清理协程
	go pool.cleanup()

	return pool
}

// GetConnection 获取SSH连接
func (p *Pool) GetConnection(ctx context.Context, info *ConnectionInfo) (*Client, error) {
	key := p.getConnectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		if !conn.inUse && conn.client.IsConnected() {
			conn.inUse = true
			conn.lastUsed = time.Now()
			return conn.client, nil
		}
		// 连接已断开或正在使用，删除
		delete(p.connections, key)
	}

	activeCount := p.getActiveCount()
	if activeCount >= p.maxActive {
		return nil, fmt.Errorf("connection pool is full, active connections: %d", activeCount)
	}

	client := NewClient(p.config)
	if err := client.Connect(ctx, info); err != nil {
		return nil, fmt.Errorf("failed to create SSH connection: %w", err)
	}

	p.connections[key] = &pooledConnection{
		client:   client,
		info:     info,
		lastUsed: time.Now(),
		inUse:    true,
		created:  time.Now(),
	}

	return client, nil
}

// ReleaseConnection 释放SSH连接
func (p *Pool) ReleaseConnection(info *ConnectionInfo) {
	key := p.getConnectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		conn.inUse = false
		conn.lastUsed = time.Now()
	}
}

// CloseConnection 关闭指定连接
func (p *Pool) CloseConnection(info *ConnectionInfo) error {
	key := p.getConnectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		err := conn.client.Close()
		delete(p.connections, key)
		return err
	}

	return nil
}

// Fosexec 通过连接池在指定逻辑交换机上执行命令
func (p *Pool) Fosexec(ctx context.Context, info *ConnectionInfo, fid int, cmd string) ([]string, error) {
	client, err := p.GetConnection(ctx, info)
	if err != nil {
		return nil, err
	}
	defer p.ReleaseConnection(info)

	return client.Fosexec(ctx, fid, cmd)
}

// ExecuteCommand 通过连接池执行命令
func (p *Pool) ExecuteCommand(ctx context.Context, info *ConnectionInfo, command string) (*CommandResult, error) {
	client, err := p.GetConnection(ctx, info)
	if err != nil {
		return nil, err
	}
	defer p.ReleaseConnection(info)

	return client.ExecuteCommand(ctx, command)
}

// Close 关闭连接池
func (p *Pool) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var lastErr error
	for key, conn := range p.connections {
		if err := conn.client.Close(); err != nil {
			lastErr = err
		}
		delete(p.connections, key)
	}

	return lastErr
}

// getConnectionKey 生成连接键
func (p *Pool) getConnectionKey(info *ConnectionInfo) string {
	return fmt.Sprintf("%s:%d@%s", info.Host, info.Port, info.Username)
}

// getActiveCount 获取活跃连接数
func (p *Pool) getActiveCount() int {
	count := 0
	for _, conn := range p.connections {
		if conn.inUse {
			count++
		}
	}
	return count
}

// getIdleCount 获取空闲连接数
func (p *Pool) getIdleCount() int {
	count := 0
	for _, conn := range p.connections {
		if !conn.inUse {
			count++
		}
	}
	return count
}

// cleanup 清理过期连接
func (p *Pool) cleanup() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		p.cleanupExpiredConnections()
	}
}

// cleanupExpiredConnections 清理超时空闲与已断开的连接
func (p *Pool) cleanupExpiredConnections() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	toDelete := make([]string, 0)

	for key, conn := range p.connections {
		if !conn.inUse && now.Sub(conn.lastUsed) > p.idleTimeout {
			toDelete = append(toDelete, key)
			continue
		}
		if !conn.client.IsConnected() {
			toDelete = append(toDelete, key)
			continue
		}
	}

	for _, key := range toDelete {
		if conn, exists := p.connections[key]; exists {
			conn.client.Close()
			delete(p.connections, key)
		}
	}

	// 空闲连接超出上限时关闭多余的
	idleCount := p.getIdleCount()
	if idleCount > p.maxIdle {
		excess := idleCount - p.maxIdle
		for key, conn := range p.connections {
			if excess <= 0 {
				break
			}
			if !conn.inUse {
				conn.client.Close()
				delete(p.connections, key)
				excess--
			}
		}
	}
}
