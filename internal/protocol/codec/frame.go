package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/palemoky/sabotage-station/internal/protocol"
)

// 二进制帧字段号: {1: type, 2: payload}
const (
	fieldType    protowire.Number = 1
	fieldPayload protowire.Number = 2
)

// Format 帧格式
type Format string

const (
	FormatJSON   Format = "json"
	FormatBinary Format = "binary"
)

var (
	ErrEmptyFrame  = errors.New("codec: empty frame")
	ErrMissingType = errors.New("codec: frame has no type")
)

// Encode 将消息编码为 JSON 文本帧
func Encode(m *protocol.Message) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := json.NewEncoder(buf).Encode(m); err != nil {
		return nil, err
	}
	// json.Encoder 会追加换行
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return append([]byte(nil), out...), nil
}

// Decode 从 JSON 文本帧解码消息
func Decode(data []byte) (*protocol.Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	msg := &protocol.Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("codec: decode json frame: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return msg, nil
}

// EncodeBinary 将消息编码为 protowire 二进制帧
func EncodeBinary(m *protocol.Message) []byte {
	b := make([]byte, 0, len(m.Type)+len(m.Payload)+8)
	b = protowire.AppendTag(b, fieldType, protowire.BytesType)
	b = protowire.AppendString(b, string(m.Type))
	if len(m.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Payload)
	}
	return b
}

// DecodeBinary 从 protowire 二进制帧解码消息，未知字段会被跳过
func DecodeBinary(data []byte) (*protocol.Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	msg := &protocol.Message{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("codec: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, fmt.Errorf("codec: bad type field: %w", protowire.ParseError(m))
			}
			msg.Type = protocol.MessageType(v)
			data = data[m:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, fmt.Errorf("codec: bad payload field: %w", protowire.ParseError(m))
			}
			msg.Payload = append(json.RawMessage(nil), v...)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, fmt.Errorf("codec: bad field %d: %w", num, protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return msg, nil
}

// EncodeFrame 按格式编码
func EncodeFrame(f Format, m *protocol.Message) ([]byte, error) {
	if f == FormatBinary {
		return EncodeBinary(m), nil
	}
	return Encode(m)
}
