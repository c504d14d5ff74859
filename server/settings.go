package server

import (
	"sync"

	"coopserver/config"
)

// Settings 可在运行期通过 /admin/config 热更新的参数
type Settings struct {
	mu                  sync.RWMutex
	instanceCapacity    int
	maxDisplacement     float64
	violationsBeforeBan int
}

// SettingsValues 某一时刻的参数副本
type SettingsValues struct {
	InstanceCapacity    int     `json:"instanceCapacity"`
	MaxDisplacement     float64 `json:"maxDisplacement"`
	ViolationsBeforeBan int     `json:"violationsBeforeBan"`
}

func NewSettings(cfg config.MatchConfig) *Settings {
	return &Settings{
		instanceCapacity:    cfg.InstanceCapacity,
		maxDisplacement:     cfg.MaxDisplacement,
		violationsBeforeBan: cfg.ViolationsBeforeBan,
	}
}

func (s *Settings) Values() SettingsValues {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SettingsValues{
		InstanceCapacity:    s.instanceCapacity,
		MaxDisplacement:     s.maxDisplacement,
		ViolationsBeforeBan: s.violationsBeforeBan,
	}
}

func (s *Settings) InstanceCapacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instanceCapacity
}

func (s *Settings) MaxDisplacement() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxDisplacement
}

func (s *Settings) ViolationsBeforeBan() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.violationsBeforeBan
}

// Update 只覆盖非空字段；调用方负责校验取值
func (s *Settings) Update(capacity *int, displacement *float64, violations *int) SettingsValues {
	s.mu.Lock()
	if capacity != nil {
		s.instanceCapacity = *capacity
	}
	if displacement != nil {
		s.maxDisplacement = *displacement
	}
	if violations != nil {
		s.violationsBeforeBan = *violations
	}
	s.mu.Unlock()
	return s.Values()
}
