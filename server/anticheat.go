package server

import (
	"encoding/json"
	"math"
)

// Reason 反作弊拒绝原因；空串表示通过
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonIdentity      Reason = "identity_mismatch"
	ReasonNickname      Reason = "nickname_mismatch"
	ReasonPositionShape Reason = "position_shape"
	ReasonDirection     Reason = "invalid_direction"
	ReasonNegative      Reason = "negative_position"
	ReasonBadLevel      Reason = "invalid_level"
	ReasonLevelSkip     Reason = "level_skip"
	ReasonDisplacementX Reason = "displacement_x"
	ReasonDisplacementY Reason = "displacement_y"
	ReasonNotInGame     Reason = "not_in_game"
	ReasonNameNotInGame Reason = "nickname_not_in_game"
)

// Validator 单次调用无状态的 play 事件校验器
type Validator struct {
	settings *Settings
}

func NewValidator(settings *Settings) *Validator {
	return &Validator{settings: settings}
}

// Validate 按顺序检查一条 play 事件，遇到第一处失败即返回
// reject 为 true 表示应拒绝；通过时返回解析好的坐标与朝向
func (v *Validator) Validate(ev *PlayMessage, p *PlayerSession, g *GameInstance) (reject bool, reason Reason, pos Position, dir Direction) {
	reason, pos, dir = v.check(ev, p, g)
	if reason != ReasonNone {
		Log.Infof("anticheat reject id=%s nickname=%s reason=%s", p.ID, p.Nickname, reason)
		return true, reason, pos, dir
	}
	return false, ReasonNone, pos, dir
}

func (v *Validator) check(ev *PlayMessage, p *PlayerSession, g *GameInstance) (Reason, Position, Direction) {
	var pos Position

	if ev.UniqueID != p.ID {
		return ReasonIdentity, pos, DirRight
	}
	if ev.Nickname != p.Nickname {
		return ReasonNickname, pos, DirRight
	}

	var coords []float64
	if err := json.Unmarshal(ev.Position, &coords); err != nil || len(coords) != 2 {
		return ReasonPositionShape, pos, DirRight
	}
	pos = Position{coords[0], coords[1]}

	dir, ok := ParseDirection(ev.Direction)
	if !ok {
		return ReasonDirection, pos, dir
	}

	if pos[0] < 0 || pos[1] < 0 {
		return ReasonNegative, pos, dir
	}

	// 关卡从 0 开始；负数会冒充 NoLevel 绕过跳关检查
	if ev.Level < 0 {
		return ReasonBadLevel, pos, dir
	}

	level, last, spawned := p.lastKnown()
	if level != NoLevel {
		if ev.Level-level > 1 {
			return ReasonLevelSkip, pos, dir
		}
		// 出生和换关时跳过位移检查
		if bound := v.settings.MaxDisplacement(); bound > 0 && spawned && ev.Level == level {
			if math.Abs(pos[0]-last[0]) > bound {
				return ReasonDisplacementX, pos, dir
			}
			if math.Abs(pos[1]-last[1]) > bound {
				return ReasonDisplacementY, pos, dir
			}
		}
	}

	if g == nil || !g.Has(p) {
		return ReasonNotInGame, pos, dir
	}
	if !g.HasName(p.Nickname) {
		return ReasonNameNotInGame, pos, dir
	}
	return ReasonNone, pos, dir
}
