package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// 消息类型
const (
	TypeElevatorCmd           = "ELEVATOR-CMD"
	TypeElevatorStatus        = "ELEVATOR-STATUS"
	TypeElevatorRequestStatus = "ELEVATOR-REQUEST-STATUS"
	TypeSubAreaReservation    = "SUB-AREA-RESERVATION"
)

// SUB-AREA-RESERVATION 的 command 取值
const (
	CommandConfirmReservation  = "CONFIRM-RESERVATION"
	CommandEarliestReservation = "EARLIEST-RESERVATION"
	CommandCancelReservation   = "CANCEL-RESERVATION"
)

// Metamodel 消息 schema 标识
const Metamodel = "ropod-msg-schema.json"

var validate = validator.New()

// Header 消息头
type Header struct {
	Type      string `json:"type" validate:"required"`
	Metamodel string `json:"metamodel"`
	MsgID     string `json:"msgId" validate:"required"`
	Timestamp string `json:"timestamp"`
}

// Envelope 消息信封：header + payload
type Envelope struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// NewEnvelope 构造出站消息
func NewEnvelope(msgType string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return &Envelope{
		Header: Header{
			Type:      msgType,
			Metamodel: Metamodel,
			MsgID:     uuid.NewString(),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		},
		Payload: data,
	}, nil
}

// Decode 解析并校验入站消息
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if err := validate.Struct(&env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	return &env, nil
}

// DecodePayload 将 payload 解析到 v 并做字段校验
func (e *Envelope) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Header.Type, err)
	}
	return Validate(v)
}

// Marshal 序列化消息
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Validate 按 validate 标签校验结构体
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
