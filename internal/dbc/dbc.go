package dbc

import (
	"errors"
	"fmt"
)

// ByteOrder selects the bit packing convention of a signal.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota // Intel, @1
	BigEndian                     // Motorola, @0
)

var (
	ErrPayloadTooShort  = errors.New("payload shorter than message length")
	ErrSignalOutOfRange = errors.New("signal bits outside payload")
)

// Signal describes one physical quantity packed into a message payload.
type Signal struct {
	Name    string
	Start   int
	Size    int
	Order   ByteOrder
	Signed  bool
	Factor  float64
	Offset  float64
	Min     float64
	Max     float64
	Unit    string
	Choices map[int64]string
}

// Message is one frame definition: a numeric id and the signals packed into
// its payload.
type Message struct {
	ID      uint32
	Name    string
	Length  int
	Signals []*Signal

	byName map[string]*Signal
}

// SignalKey identifies one signal across the whole catalog. The display
// string form is produced only by Qualified.
type SignalKey struct {
	Catalog string
	Message string
	Signal  string
}

// Qualified renders the key in the catalogFile::messageName::signalName form
// used in CSV headers and grouping.
func (k SignalKey) Qualified() string {
	return k.Catalog + "::" + k.Message + "::" + k.Signal
}

// Value is one decoded sample: a numeric physical value, or an enumeration
// label when the raw code maps into the signal's value table.
type Value struct {
	Num    float64
	Label  string
	IsText bool
}

// Num returns a numeric Value.
func Num(v float64) Value { return Value{Num: v} }

// Text returns a label Value.
func Text(s string) Value { return Value{Label: s, IsText: true} }

// SignalByName returns the named signal definition, if present.
func (m *Message) SignalByName(name string) (*Signal, bool) {
	if m.byName == nil {
		m.byName = make(map[string]*Signal, len(m.Signals))
		for _, s := range m.Signals {
			m.byName[s.Name] = s
		}
	}
	s, ok := m.byName[name]
	return s, ok
}

// Decode unpacks every signal of the message from the payload. A payload
// shorter than the declared message length is an error; the caller treats it
// as a line-level decode failure.
func (m *Message) Decode(payload []byte) (map[string]Value, error) {
	if len(payload) < m.Length {
		return nil, fmt.Errorf("%w: message %s wants %d bytes, payload has %d", ErrPayloadTooShort, m.Name, m.Length, len(payload))
	}
	out := make(map[string]Value, len(m.Signals))
	for _, sig := range m.Signals {
		v, err := sig.decode(payload)
		if err != nil {
			return nil, fmt.Errorf("signal %s: %w", sig.Name, err)
		}
		out[sig.Name] = v
	}
	return out, nil
}

// CodeForLabel resolves an enumeration label back to its numeric code.
func (s *Signal) CodeForLabel(label string) (float64, bool) {
	for code, name := range s.Choices {
		if name == label {
			return float64(code), true
		}
	}
	return 0, false
}

func (s *Signal) decode(payload []byte) (Value, error) {
	raw, err := extractBits(payload, s.Start, s.Size, s.Order)
	if err != nil {
		return Value{}, err
	}
	sval := int64(raw)
	if s.Signed && s.Size < 64 {
		sval = int64(raw<<(64-uint(s.Size))) >> (64 - uint(s.Size))
	}
	if len(s.Choices) > 0 {
		if label, ok := s.Choices[sval]; ok {
			return Text(label), nil
		}
	}
	return Num(float64(sval)*s.Factor + s.Offset), nil
}

func extractBits(data []byte, start, size int, order ByteOrder) (uint64, error) {
	if size <= 0 || size > 64 {
		return 0, fmt.Errorf("invalid signal size %d", size)
	}
	switch order {
	case LittleEndian:
		if (start+size+7)/8 > len(data) {
			return 0, ErrSignalOutOfRange
		}
		var raw uint64
		for i := size - 1; i >= 0; i-- {
			pos := start + i
			bit := (data[pos/8] >> uint(pos%8)) & 1
			raw = raw<<1 | uint64(bit)
		}
		return raw, nil
	default:
		// Motorola start bit is the MSB position; the bit walk steps down
		// within a byte and jumps to bit 7 of the next byte.
		pos := start
		var raw uint64
		for i := 0; i < size; i++ {
			if pos < 0 || pos/8 >= len(data) {
				return 0, ErrSignalOutOfRange
			}
			bit := (data[pos/8] >> uint(pos%8)) & 1
			raw = raw<<1 | uint64(bit)
			if pos%8 == 0 {
				pos += 15
			} else {
				pos--
			}
		}
		return raw, nil
	}
}
