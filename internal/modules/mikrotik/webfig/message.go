package webfig

import (
	"encoding/binary"
	"sort"

	"github.com/nimda/routeros-brute/pkg/utils"
)

// Field type tags carried in the top bits of every M2 key
const (
	typeBool     uint32 = 0x00000000
	shortLength  uint32 = 0x01000000
	typeU32      uint32 = 0x08000000
	typeString   uint32 = 0x20000000
	typeRaw      uint32 = 0x30000000
	typeU32Array uint32 = 0x88000000

	typeMask = 0xf8000000
	nameMask = 0x00ffffff
)

// Well-known M2 field names
const (
	FieldUsername     uint32 = 0x000001
	FieldPassword     uint32 = 0x000003
	FieldSessionToken uint32 = 0x000015
	FieldSysTo        uint32 = 0xff0001
	FieldFrom         uint32 = 0xff0002
	FieldRequestID    uint32 = 0xff0006
	FieldCommand      uint32 = 0xff0007
	FieldErrorCode    uint32 = 0xff0008
	FieldErrorString  uint32 = 0xff0009
)

// Message is a RouterOS M2 message: a bag of typed fields keyed by a 24-bit name
type Message struct {
	Bools   map[uint32]bool
	U32s    map[uint32]uint32
	Strings map[uint32][]byte
	Raw     map[uint32][]byte
	Arrays  map[uint32][]uint32
}

// NewMessage creates an empty message
func NewMessage() *Message {
	return &Message{
		Bools:   make(map[uint32]bool),
		U32s:    make(map[uint32]uint32),
		Strings: make(map[uint32][]byte),
		Raw:     make(map[uint32][]byte),
		Arrays:  make(map[uint32][]uint32),
	}
}

func (m *Message) SetBool(name uint32, v bool)  { m.Bools[name&nameMask] = v }
func (m *Message) SetU32(name uint32, v uint32) { m.U32s[name&nameMask] = v }
func (m *Message) SetRaw(name uint32, v []byte) { m.Raw[name&nameMask] = append([]byte(nil), v...) }
func (m *Message) SetArray(name uint32, v []uint32) {
	m.Arrays[name&nameMask] = append([]uint32(nil), v...)
}
func (m *Message) SetString(name uint32, v []byte) {
	m.Strings[name&nameMask] = append([]byte(nil), v...)
}

// Lookup returns the string field with the given name
func (m *Message) Lookup(name uint32) ([]byte, bool) {
	v, ok := m.Strings[name&nameMask]
	return v, ok
}

func sortedKeys[V any](fields map[uint32]V) []uint32 {
	keys := make([]uint32, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Marshal encodes the message body (without the "M2" marker). Fields are
// written in type order and ascending name order.
func (m *Message) Marshal() []byte {
	var out []byte
	key := func(k uint32) {
		out = binary.LittleEndian.AppendUint32(out, k)
	}
	blob := func(tag, name uint32, v []byte) {
		if len(v) <= 0xff {
			key(name | tag | shortLength)
			out = append(out, byte(len(v)))
		} else {
			key(name | tag)
			out = binary.LittleEndian.AppendUint16(out, uint16(len(v)))
		}
		out = append(out, v...)
	}

	for _, name := range sortedKeys(m.Bools) {
		if m.Bools[name] {
			key(name | typeBool | shortLength)
		} else {
			key(name | typeBool)
		}
	}
	for _, name := range sortedKeys(m.U32s) {
		v := m.U32s[name]
		if v <= 0xff {
			key(name | typeU32 | shortLength)
			out = append(out, byte(v))
		} else {
			key(name | typeU32)
			out = binary.LittleEndian.AppendUint32(out, v)
		}
	}
	for _, name := range sortedKeys(m.Strings) {
		blob(typeString, name, m.Strings[name])
	}
	for _, name := range sortedKeys(m.Raw) {
		blob(typeRaw, name, m.Raw[name])
	}
	for _, name := range sortedKeys(m.Arrays) {
		v := m.Arrays[name]
		key(name | typeU32Array)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(v)))
		for _, e := range v {
			out = binary.LittleEndian.AppendUint32(out, e)
		}
	}
	return out
}

// Unmarshal decodes a message body. A leading "M2" marker, with or without
// a two byte length before it, is skipped.
func Unmarshal(data []byte) (*Message, error) {
	switch {
	case len(data) >= 2 && data[0] == 'M' && data[1] == '2':
		data = data[2:]
	case len(data) >= 4 && data[2] == 'M' && data[3] == '2':
		data = data[4:]
	}
	if len(data) < 4 {
		return nil, utils.NewProtocolError("m2 message too short")
	}

	m := NewMessage()
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, utils.NewProtocolError("truncated m2 field key")
		}
		k := binary.LittleEndian.Uint32(data)
		data = data[4:]
		name := k & nameMask
		short := k&shortLength != 0

		switch k & typeMask {
		case typeBool:
			m.Bools[name] = short
		case typeU32:
			if short {
				if len(data) < 1 {
					return nil, utils.NewProtocolError("truncated m2 u8")
				}
				m.U32s[name] = uint32(data[0])
				data = data[1:]
			} else {
				if len(data) < 4 {
					return nil, utils.NewProtocolError("truncated m2 u32")
				}
				m.U32s[name] = binary.LittleEndian.Uint32(data)
				data = data[4:]
			}
		case typeString, typeRaw:
			v, rest, err := readBlob(data, short)
			if err != nil {
				return nil, err
			}
			data = rest
			if k&typeMask == typeString {
				m.Strings[name] = v
			} else {
				m.Raw[name] = v
			}
		case typeU32Array:
			if len(data) < 2 {
				return nil, utils.NewProtocolError("truncated m2 array length")
			}
			n := int(binary.LittleEndian.Uint16(data))
			data = data[2:]
			if len(data) < n*4 {
				return nil, utils.NewProtocolError("truncated m2 array")
			}
			arr := make([]uint32, n)
			for i := range arr {
				arr[i] = binary.LittleEndian.Uint32(data[i*4:])
			}
			m.Arrays[name] = arr
			data = data[n*4:]
		default:
			return nil, utils.NewProtocolError("unknown m2 field type")
		}
	}
	return m, nil
}

func readBlob(data []byte, short bool) ([]byte, []byte, error) {
	var n int
	if short {
		if len(data) < 1 {
			return nil, nil, utils.NewProtocolError("truncated m2 blob length")
		}
		n = int(data[0])
		data = data[1:]
	} else {
		if len(data) < 2 {
			return nil, nil, utils.NewProtocolError("truncated m2 blob length")
		}
		n = int(binary.LittleEndian.Uint16(data))
		data = data[2:]
	}
	if len(data) < n {
		return nil, nil, utils.NewProtocolError("truncated m2 blob")
	}
	return append([]byte(nil), data[:n]...), data[n:], nil
}
