package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxProtoFrameSize bounds the length prefix accepted by the proto decoder.
const MaxProtoFrameSize = 1 << 20

// Field numbers of the proto encoding.
//
//	Frame    1 type, 2 event, 3 name, 4 input, 5 role, 6 destPosition,
//	         7 velocity, 8 pings (repeated entry), 9 players (repeated),
//	         10 snapshot
//	Box      1 x, 2 y, 3 width, 4 height (doubles)
//	Vector   1 x, 2 y (doubles)
//	Entry    1 key, 2 value (zigzag)
//	Player   1 key, 2 name, 3 role, 4 ping (zigzag)
//	Snapshot 1 ball position, 2 ball velocity, 3 ball speed, 4 left paddle,
//	         5 right paddle, 6 left score, 7 right score
//	Rect     1 x, 2 y, 3 width, 4 height (zigzag)
const (
	fieldType         protowire.Number = 1
	fieldEvent        protowire.Number = 2
	fieldName         protowire.Number = 3
	fieldInput        protowire.Number = 4
	fieldRole         protowire.Number = 5
	fieldDestPosition protowire.Number = 6
	fieldVelocity     protowire.Number = 7
	fieldPings        protowire.Number = 8
	fieldPlayers      protowire.Number = 9
	fieldSnapshot     protowire.Number = 10
)

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(f Frame) ([]byte, error) {
	slog.Debug("Marshalling frame", slog.String("frame", Describe(f)))
	w, err := toWire(f)
	if err != nil {
		return nil, err
	}
	return appendFrame(nil, w), nil
}

func (protoCodec) Unmarshal(b []byte) (Frame, error) {
	w, err := consumeFrame(b)
	if err != nil {
		return nil, err
	}
	return fromWire(w)
}

func (protoCodec) NewEncoder(w io.Writer) Encoder {
	return protoEncoder{w: w}
}

func (protoCodec) NewDecoder(r io.Reader) Decoder {
	return protoDecoder{r: bufio.NewReader(r)}
}

type protoEncoder struct {
	w io.Writer
}

// Encode writes the frame prefixed with its length as a uvarint.
func (e protoEncoder) Encode(f Frame) error {
	w, err := toWire(f)
	if err != nil {
		return err
	}
	body := appendFrame(nil, w)
	out := protowire.AppendVarint(make([]byte, 0, len(body)+binary.MaxVarintLen32), uint64(len(body)))
	_, err = e.w.Write(append(out, body...))
	return err
}

type protoDecoder struct {
	r *bufio.Reader
}

func (d protoDecoder) Decode() (Frame, error) {
	size, err := binary.ReadUvarint(d.r)
	if err != nil {
		return nil, err
	}
	if size > MaxProtoFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", ErrMalformedFrame, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(d.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	w, err := consumeFrame(body)
	if err != nil {
		return nil, err
	}
	return fromWire(w)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendBox(b []byte, box wireBox) []byte {
	b = appendDouble(b, 1, box.X)
	b = appendDouble(b, 2, box.Y)
	b = appendDouble(b, 3, box.Width)
	return appendDouble(b, 4, box.Height)
}

func appendVector(b []byte, v wireVector) []byte {
	b = appendDouble(b, 1, v.X)
	return appendDouble(b, 2, v.Y)
}

func appendRect(b []byte, r wireRect) []byte {
	b = appendInt(b, 1, int64(r.X))
	b = appendInt(b, 2, int64(r.Y))
	b = appendInt(b, 3, int64(r.Width))
	return appendInt(b, 4, int64(r.Height))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendFrame(b []byte, w wireFrame) []byte {
	b = appendString(b, fieldType, w.Type)
	b = appendString(b, fieldEvent, w.Event)
	b = appendString(b, fieldName, w.Name)
	b = appendString(b, fieldInput, w.Input)
	b = appendString(b, fieldRole, w.Role)
	if w.DestPosition != nil {
		b = appendMessage(b, fieldDestPosition, appendBox(nil, *w.DestPosition))
	}
	if w.Velocity != nil {
		b = appendMessage(b, fieldVelocity, appendVector(nil, *w.Velocity))
	}
	for _, k := range sortedKeys(w.Pings) {
		entry := appendString(nil, 1, k)
		entry = appendInt(entry, 2, w.Pings[k])
		b = appendMessage(b, fieldPings, entry)
	}
	for _, k := range sortedKeys(w.Players) {
		p := w.Players[k]
		entry := appendString(nil, 1, k)
		entry = appendString(entry, 2, p.Name)
		entry = appendString(entry, 3, p.Role)
		entry = appendInt(entry, 4, p.Ping)
		b = appendMessage(b, fieldPlayers, entry)
	}
	if s := w.Snapshot; s != nil {
		var sb []byte
		sb = appendMessage(sb, 1, appendBox(nil, s.Ball.Position))
		sb = appendMessage(sb, 2, appendVector(nil, s.Ball.Velocity))
		sb = appendInt(sb, 3, int64(s.Ball.Speed))
		sb = appendMessage(sb, 4, appendRect(nil, s.LeftPaddle))
		sb = appendMessage(sb, 5, appendRect(nil, s.RightPaddle))
		sb = appendInt(sb, 6, int64(s.LeftScore))
		sb = appendInt(sb, 7, int64(s.RightScore))
		b = appendMessage(b, fieldSnapshot, sb)
	}
	return b
}

// protoField is one decoded field. Varint and fixed64 payloads land in u,
// length delimited payloads in b.
type protoField struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

func (f protoField) double() float64 { return math.Float64frombits(f.u) }
func (f protoField) sint() int64     { return protowire.DecodeZigZag(f.u) }

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
}

// walkFields calls fn for every field in b. Unknown wire types are skipped.
func walkFields(b []byte, fn func(protoField) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]

		f := protoField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func consumeBox(b []byte) (wireBox, error) {
	box := wireBox{}
	err := walkFields(b, func(f protoField) error {
		switch f.num {
		case 1:
			box.X = f.double()
		case 2:
			box.Y = f.double()
		case 3:
			box.Width = f.double()
		case 4:
			box.Height = f.double()
		}
		return nil
	})
	return box, err
}

func consumeVector(b []byte) (wireVector, error) {
	v := wireVector{}
	err := walkFields(b, func(f protoField) error {
		switch f.num {
		case 1:
			v.X = f.double()
		case 2:
			v.Y = f.double()
		}
		return nil
	})
	return v, err
}

func consumeRect(b []byte) (wireRect, error) {
	r := wireRect{}
	err := walkFields(b, func(f protoField) error {
		switch f.num {
		case 1:
			r.X = int(f.sint())
		case 2:
			r.Y = int(f.sint())
		case 3:
			r.Width = int(f.sint())
		case 4:
			r.Height = int(f.sint())
		}
		return nil
	})
	return r, err
}

func consumeSnapshot(b []byte) (*wireSnapshot, error) {
	s := &wireSnapshot{}
	err := walkFields(b, func(f protoField) error {
		var err error
		switch f.num {
		case 1:
			s.Ball.Position, err = consumeBox(f.b)
		case 2:
			s.Ball.Velocity, err = consumeVector(f.b)
		case 3:
			s.Ball.Speed = int(f.sint())
		case 4:
			s.LeftPaddle, err = consumeRect(f.b)
		case 5:
			s.RightPaddle, err = consumeRect(f.b)
		case 6:
			s.LeftScore = int(f.sint())
		case 7:
			s.RightScore = int(f.sint())
		}
		return err
	})
	return s, err
}

func consumeFrame(b []byte) (wireFrame, error) {
	w := wireFrame{}
	err := walkFields(b, func(f protoField) error {
		switch f.num {
		case fieldType:
			w.Type = string(f.b)
		case fieldEvent:
			w.Event = string(f.b)
		case fieldName:
			w.Name = string(f.b)
		case fieldInput:
			w.Input = string(f.b)
		case fieldRole:
			w.Role = string(f.b)
		case fieldDestPosition:
			box, err := consumeBox(f.b)
			if err != nil {
				return err
			}
			w.DestPosition = &box
		case fieldVelocity:
			v, err := consumeVector(f.b)
			if err != nil {
				return err
			}
			w.Velocity = &v
		case fieldPings:
			var key string
			var value int64
			err := walkFields(f.b, func(e protoField) error {
				switch e.num {
				case 1:
					key = string(e.b)
				case 2:
					value = e.sint()
				}
				return nil
			})
			if err != nil {
				return err
			}
			if w.Pings == nil {
				w.Pings = make(map[string]int64)
			}
			w.Pings[key] = value
		case fieldPlayers:
			var key string
			p := wirePlayer{}
			err := walkFields(f.b, func(e protoField) error {
				switch e.num {
				case 1:
					key = string(e.b)
				case 2:
					p.Name = string(e.b)
				case 3:
					p.Role = string(e.b)
				case 4:
					p.Ping = e.sint()
				}
				return nil
			})
			if err != nil {
				return err
			}
			if w.Players == nil {
				w.Players = make(map[string]wirePlayer)
			}
			w.Players[key] = p
		case fieldSnapshot:
			s, err := consumeSnapshot(f.b)
			if err != nil {
				return err
			}
			w.Snapshot = s
		}
		return nil
	})
	return w, err
}
