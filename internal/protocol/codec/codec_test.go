package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/palemoky/sabotage-station/internal/protocol"
)

func TestNewMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msgType protocol.MessageType
		payload any
	}{
		{name: "nil payload", msgType: protocol.MsgPing},
		{name: "with MovePayload", msgType: protocol.MsgMove, payload: protocol.MovePayload{RoomCode: "123456", X: 1, Y: 2}},
		{name: "with VotePayload", msgType: protocol.MsgVote, payload: protocol.VotePayload{TargetID: "skip"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, err := NewMessage(tt.msgType, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.msgType, msg.Type)
			if tt.payload == nil {
				assert.Nil(t, msg.Payload)
			} else {
				assert.NotEmpty(t, msg.Payload)
			}
		})
	}
}

func TestNewMessage_Unmarshalable(t *testing.T) {
	t.Parallel()

	_, err := NewMessage(protocol.MsgChat, make(chan int))
	assert.Error(t, err)
	assert.Panics(t, func() { MustNewMessage(protocol.MsgChat, make(chan int)) })
}

func TestParsePayload(t *testing.T) {
	t.Parallel()

	msg := MustNewMessage(protocol.MsgTaskInteract, protocol.StationPayload{RoomCode: "000111", StationID: "reactor"})
	p, err := ParsePayload[protocol.StationPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "000111", p.RoomCode)
	assert.Equal(t, "reactor", p.StationID)

	// 空 payload 解析为零值
	empty, err := ParsePayload[protocol.RoomPayload](&protocol.Message{Type: protocol.MsgStartRound})
	require.NoError(t, err)
	assert.Empty(t, empty.RoomCode)

	_, err = ParsePayload[protocol.StationPayload](&protocol.Message{Type: protocol.MsgTaskInteract, Payload: []byte("{bad")})
	assert.Error(t, err)
}

func TestNewErrorMessage(t *testing.T) {
	t.Parallel()

	msg := NewErrorMessage(protocol.ErrCodeRoomFull)
	assert.Equal(t, protocol.MsgError, msg.Type)

	p, err := ParsePayload[protocol.ErrorPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrCodeRoomFull, p.Code)
	assert.Equal(t, protocol.ErrorMessages[protocol.ErrCodeRoomFull], p.Message)

	custom := NewErrorMessageWithText(protocol.ErrCodeStationLocked, "locked for 12s")
	p, err = ParsePayload[protocol.ErrorPayload](custom)
	require.NoError(t, err)
	assert.Equal(t, "locked for 12s", p.Message)
}

func TestEncodeDecode_JSON(t *testing.T) {
	t.Parallel()

	original := MustNewMessage(protocol.MsgPlayerMoved, protocol.PlayerMovedPayload{PlayerID: "p1", X: 100, Y: 200})
	data, err := Encode(original)
	require.NoError(t, err)
	assert.NotEqual(t, byte('\n'), data[len(data)-1])

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original.Type, decoded.Type)
	assert.JSONEq(t, string(original.Payload), string(decoded.Payload))
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrMissingType)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeDecode_Binary(t *testing.T) {
	t.Parallel()

	original := MustNewMessage(protocol.MsgSabotage, protocol.StationPayload{RoomCode: "424242", StationID: "o2"})
	data := EncodeBinary(original)

	decoded, err := DecodeBinary(data)
	require.NoError(t, err)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, []byte(original.Payload), []byte(decoded.Payload))

	// 无 payload
	decoded, err = DecodeBinary(EncodeBinary(&protocol.Message{Type: protocol.MsgPing}))
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgPing, decoded.Type)
	assert.Nil(t, decoded.Payload)
}

func TestDecodeBinary_SkipsUnknownFields(t *testing.T) {
	t.Parallel()

	var b []byte
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	b = append(b, EncodeBinary(&protocol.Message{Type: protocol.MsgPing})...)

	msg, err := DecodeBinary(b)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgPing, msg.Type)
}

func TestDecodeBinary_Errors(t *testing.T) {
	t.Parallel()

	_, err := DecodeBinary(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = DecodeBinary([]byte{0xff})
	assert.Error(t, err)

	var onlyPayload []byte
	onlyPayload = protowire.AppendTag(onlyPayload, fieldPayload, protowire.BytesType)
	onlyPayload = protowire.AppendBytes(onlyPayload, []byte("{}"))
	_, err = DecodeBinary(onlyPayload)
	assert.ErrorIs(t, err, ErrMissingType)
}

func TestEncodeFrame(t *testing.T) {
	t.Parallel()

	msg := &protocol.Message{Type: protocol.MsgPong}
	j, err := EncodeFrame(FormatJSON, msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(j))

	b, err := EncodeFrame(FormatBinary, msg)
	require.NoError(t, err)
	assert.Equal(t, EncodeBinary(msg), b)
}
