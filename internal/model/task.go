package model

import "time"

// 任务状态
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusSuccess   = "success"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

// 任务类型
const (
	TaskTypeCapture      = "capture"
	TaskTypeMulticapture = "multicapture"
	TaskTypeStats        = "stats"
	TaskTypeZone         = "zone"
)

// CaptureTask 异步任务记录
// IPAddr 入库前已遮蔽，完整地址只在内存中使用
type CaptureTask struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Type       string     `gorm:"size:32;index" json:"type"`
	Status     string     `gorm:"size:16;index" json:"status"`
	IPAddr     string     `gorm:"size:64" json:"ip_addr"`
	Output     string     `gorm:"size:512" json:"output,omitempty"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TableName 指定表名
func (CaptureTask) TableName() string {
	return "capture_tasks"
}

// Done 任务是否已结束
func (t *CaptureTask) Done() bool {
	switch t.Status {
	case TaskStatusSuccess, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// StatsSample 单个端口计数器的一次差分样本
type StatsSample struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SwitchWWN     string    `gorm:"size:64;index:idx_sample_key" json:"switch_wwn"`
	Port          string    `gorm:"size:16;index:idx_sample_key" json:"port"`
	Counter       string    `gorm:"size:64;index:idx_sample_key" json:"counter"`
	Value         int64     `json:"value"`
	TimeGenerated int64     `json:"time_generated"`
	SampleIndex   int       `json:"sample_index"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (StatsSample) TableName() string {
	return "stats_samples"
}

// Key stats_to_db 的 wwn_port_counter 键
func (s *StatsSample) Key() string {
	return s.SwitchWWN + "_" + s.Port + "_" + s.Counter
}
