package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 提供匹配与反作弊参数的读取与更新（热更新）
// GET /admin/config  返回当前配置
// POST /admin/config 以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		InstanceCapacity    *int     `json:"instanceCapacity,omitempty"`
		MaxDisplacement     *float64 `json:"maxDisplacement,omitempty"`
		ViolationsBeforeBan *int     `json:"violationsBeforeBan,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.settings.Values())
		return
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.InstanceCapacity != nil && *body.InstanceCapacity < 1 {
			http.Error(w, "instanceCapacity must be >= 1", http.StatusBadRequest)
			return
		}
		if body.MaxDisplacement != nil && *body.MaxDisplacement < 0 {
			http.Error(w, "maxDisplacement must be >= 0", http.StatusBadRequest)
			return
		}
		if body.ViolationsBeforeBan != nil && *body.ViolationsBeforeBan < 0 {
			http.Error(w, "violationsBeforeBan must be >= 0", http.StatusBadRequest)
			return
		}
		v := s.settings.Update(body.InstanceCapacity, body.MaxDisplacement, body.ViolationsBeforeBan)
		Log.Infof("config updated: capacity=%d maxDisplacement=%.2f violationsBeforeBan=%d",
			v.InstanceCapacity, v.MaxDisplacement, v.ViolationsBeforeBan)
		writeJSON(w, http.StatusOK, v)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

// HandleGames 输出所有活跃实例
// GET /admin/games
func (s *Server) HandleGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	instances := s.manager.Instances()
	games := make([]InstanceSnapshot, 0, len(instances))
	for _, g := range instances {
		games = append(games, g.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
