package tilepkg

import (
	"sort"

	"gaia/api/config"
	"gaia/api/quadtree"
)

type LevelThreshold struct {
	Below float64 `json:"below"`
	Level uint8   `json:"level"`
}

// LevelPolicy maps camera height to a level of detail. Lower cameras get deeper levels.
type LevelPolicy struct {
	Thresholds []LevelThreshold `json:"thresholds"`
	Fallback   uint8            `json:"fallback"`
}

func DefaultLevelPolicy() LevelPolicy {
	return LevelPolicyFromConfig(config.Default().Chooser)
}

func LevelPolicyFromConfig(c config.ChooserConfig) LevelPolicy {
	p := LevelPolicy{Fallback: c.FallbackLevel}
	for _, th := range c.Thresholds {
		p.Thresholds = append(p.Thresholds, LevelThreshold{Below: th.Below, Level: th.Level})
	}
	sort.SliceStable(p.Thresholds, func(i, j int) bool {
		return p.Thresholds[i].Below < p.Thresholds[j].Below
	})
	return p
}

// Level returns the level of the first threshold above height, or Fallback when the
// camera is above all of them. The result never exceeds quadtree.MaxLevel.
func (p LevelPolicy) Level(height float64) uint8 {
	level := p.Fallback
	for _, th := range p.Thresholds {
		if height < th.Below {
			level = th.Level
			break
		}
	}
	if level > quadtree.MaxLevel {
		level = quadtree.MaxLevel
	}
	return level
}
