package combine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
)

// DefaultOutput 合并输出文件名
const DefaultOutput = "combined.json"

// Directory 合并目录下的全部采集转储
// 输出写回同一目录，已存在时拒绝覆盖
func Directory(dir, output string) (*model.Project, error) {
	if output == "" {
		output = DefaultOutput
	}
	outPath := filepath.Join(dir, output)
	if _, err := os.Stat(outPath); err == nil {
		return nil, fmt.Errorf("output file %s already exists, refusing to overwrite", outPath)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read capture dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == output {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no capture files in %s", dir)
	}
	sort.Strings(files)

	merged := model.NewProject("combined", fmt.Sprintf("merge of %d captures", len(files)))
	for _, name := range files {
		proj, err := model.Load(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		Merge(merged, proj)
		logger.Infof("merged %s: %d chassis", name, len(proj.Chassis))
	}

	if err := merged.Save(outPath); err != nil {
		return nil, err
	}
	logger.Infof("combined capture written to %s", outPath)
	return merged, nil
}

// Merge 把 src 并入 dst
// 标量冲突后写覆盖并记日志，容器按键位并集
func Merge(dst, src *model.Project) {
	for wwn, srcChassis := range src.Chassis {
		dstChassis := dst.GetOrAddChassis(wwn)
		mergeData(dstChassis.Data, srcChassis.Data, "chassis "+wwn)
		for swWWN, srcSwitch := range srcChassis.Switches {
			dstSwitch := dstChassis.GetOrAddSwitch(swWWN, srcSwitch.FID)
			mergeData(dstSwitch.Data, srcSwitch.Data, "switch "+swWWN)
			for portName, srcPort := range srcSwitch.Ports {
				dstPort := dstSwitch.GetOrAddPort(portName)
				mergeData(dstPort.Data, srcPort.Data, "port "+swWWN+"/"+portName)
			}
		}
	}
	for principal, srcFabric := range src.Fabrics {
		dstFabric, exists := dst.Fabrics[principal]
		if !exists {
			dst.Fabrics[principal] = srcFabric
			continue
		}
		for name, a := range srcFabric.Aliases {
			dstFabric.Aliases[name] = a
		}
		for name, z := range srcFabric.Zones {
			dstFabric.Zones[name] = z
		}
		for name, c := range srcFabric.Cfgs {
			dstFabric.Cfgs[name] = c
		}
		if srcFabric.EffectiveCfg != "" {
			dstFabric.EffectiveCfg = srcFabric.EffectiveCfg
		}
		if srcFabric.DefZone != "" {
			dstFabric.DefZone = srcFabric.DefZone
		}
	}
}

// mergeData 合并采集数据键位，冲突时后写覆盖
func mergeData(dst, src map[string]interface{}, scope string) {
	for k, v := range src {
		if _, exists := dst[k]; exists {
			logger.Debugf("duplicate key %q on %s, keeping newer value", k, scope)
		}
		dst[k] = v
	}
}
