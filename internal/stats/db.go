package stats

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
)

// WriteCollection 样本入库
// 每个数值计数器一行，键位 wwn+port+counter，按采样序号排列
func WriteCollection(db *gorm.DB, c *Collection) (int, error) {
	var rows []model.StatsSample
	for idx, wwn := range c.SwitchList {
		sw, ok := c.Switches[wwn]
		if !ok {
			logger.Warnf("sample switch %s missing from collection", wwn)
			continue
		}
		for portName, port := range sw.Ports {
			entry, ok := port.Data["fibrechannel-statistics"].(map[string]interface{})
			if !ok {
				continue
			}
			var timeGenerated int64
			if tg, ok := entry["time-generated"].(float64); ok {
				timeGenerated = int64(tg)
			}
			for counter, v := range entry {
				val, ok := v.(float64)
				if !ok || counter == "time-generated" || counter == "sampling-interval" {
					continue
				}
				rows = append(rows, model.StatsSample{
					SwitchWWN:     c.BaseSwitchWWN,
					Port:          portName,
					Counter:       counter,
					Value:         int64(val),
					TimeGenerated: timeGenerated,
					SampleIndex:   idx,
				})
			}
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := db.CreateInBatches(rows, 500).Error; err != nil {
		return 0, fmt.Errorf("insert stats samples: %w", err)
	}
	logger.Infof("wrote %d statistics samples for %s", len(rows), c.BaseSwitchWWN)
	return len(rows), nil
}
