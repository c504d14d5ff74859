package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformed 帧不是合法的 JSON 对象或缺少必需字段
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownMessageType type 字段不在协议之内
	ErrUnknownMessageType = errors.New("unknown message type")
)

// 客户端 → 服务端消息类型
const (
	TypeInit      = "init"
	TypeReady     = "ready"
	TypePlay      = "play"
	TypeExit      = "exit"
	TypeBroadcast = "broadcast"
)

// 服务端 → 客户端消息类型
const (
	TypeUpdate = "update"
	TypePing   = "ping"
	TypeError  = "error"
)

// Message 入站消息的和类型：*InitMessage | *PlayMessage | *ExitMessage | *BroadcastMessage
type Message interface {
	messageType() string
}

// InitMessage 握手 / 匹配请求，type 为 init 或 ready
// 示例：{"type":"init","unique_id":"","nickname":"Rex","pin_code":"4821"}
type InitMessage struct {
	Type     string `json:"type"`
	UniqueID string `json:"unique_id"`
	Nickname string `json:"nickname"`
	PinCode  string `json:"pin_code,omitempty"`
	Private  bool   `json:"private,omitempty"`
}

// PlayMessage 周期性状态上报；position 保留原始 JSON，交由反作弊校验其形状
type PlayMessage struct {
	Type      string          `json:"type"`
	UniqueID  string          `json:"unique_id"`
	Nickname  string          `json:"nickname"`
	Position  json.RawMessage `json:"position"`
	Level     int             `json:"level"`
	Direction string          `json:"direction"`
}

type ExitMessage struct {
	Type string `json:"type"`
}

// BroadcastMessage 第二条连接用它挂接到已有会话
type BroadcastMessage struct {
	Type     string `json:"type"`
	UniqueID string `json:"unique_id"`
}

func (m *InitMessage) messageType() string      { return m.Type }
func (m *PlayMessage) messageType() string      { return TypePlay }
func (m *ExitMessage) messageType() string      { return TypeExit }
func (m *BroadcastMessage) messageType() string { return TypeBroadcast }

// ParseMessage 按 type 字段解码；未知类型一律视为非法输入
func ParseMessage(payload []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg Message
	switch strings.ToLower(head.Type) {
	case TypeInit, TypeReady:
		msg = &InitMessage{}
	case TypePlay:
		msg = &PlayMessage{}
	case TypeExit:
		msg = &ExitMessage{}
	case TypeBroadcast:
		msg = &BroadcastMessage{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, head.Type)
	}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m, ok := msg.(*InitMessage); ok {
		m.Type = strings.ToLower(m.Type)
	}
	return msg, nil
}

// 出站消息

type initReply struct {
	Type     string `json:"type"`
	UniqueID string `json:"unique_id"`
	Nickname string `json:"nickname"`
	Level    int    `json:"level"`
}

type playReply struct {
	Type      string    `json:"type"`
	UniqueID  string    `json:"unique_id"`
	Nickname  string    `json:"nickname"`
	Position  Position  `json:"position"`
	Level     int       `json:"level"`
	Direction Direction `json:"direction"`
	PinCode   string    `json:"pin_code"`
}

type updateMessage struct {
	Type    string        `json:"type"`
	GameID  string        `json:"game_id"`
	Players []PlayerState `json:"players"`
}

type pingMessage struct {
	Type    string  `json:"type"`
	Latency float64 `json:"latency"` // 毫秒
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		Log.Errorf("encode %T: %v", v, err)
		return nil
	}
	return b
}
