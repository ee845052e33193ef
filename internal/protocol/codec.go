package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns frames into bytes and back. Marshal and Unmarshal handle one
// frame for message oriented transports, encoders and decoders handle an
// ordered stream of frames.
type Codec interface {
	Name() string
	Marshal(f Frame) ([]byte, error)
	Unmarshal(b []byte) (Frame, error)
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
}

type Encoder interface {
	Encode(f Frame) error
}

// Decoder returns io.EOF once the stream ends cleanly between frames.
type Decoder interface {
	Decode() (Frame, error)
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
	Proto   Codec = protoCodec{}
)

var codecs = map[string]Codec{
	JSON.Name():    JSON,
	MsgPack.Name(): MsgPack,
	Proto.Name():   Proto,
}

// CodecByName looks up "json", "msgpack" or "proto".
func CodecByName(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}
	return c, nil
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(f Frame) ([]byte, error) {
	slog.Debug("Marshalling frame", slog.String("frame", Describe(f)))
	w, err := toWire(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (jsonCodec) Unmarshal(b []byte) (Frame, error) {
	w := wireFrame{}
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return fromWire(w)
}

func (jsonCodec) NewEncoder(w io.Writer) Encoder {
	return jsonEncoder{enc: json.NewEncoder(w)}
}

func (jsonCodec) NewDecoder(r io.Reader) Decoder {
	return jsonDecoder{dec: json.NewDecoder(r)}
}

type jsonEncoder struct {
	enc *json.Encoder
}

// Encode writes one object followed by a newline.
func (e jsonEncoder) Encode(f Frame) error {
	w, err := toWire(f)
	if err != nil {
		return err
	}
	return e.enc.Encode(w)
}

type jsonDecoder struct {
	dec *json.Decoder
}

func (d jsonDecoder) Decode() (Frame, error) {
	w := wireFrame{}
	if err := d.dec.Decode(&w); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return nil, err
	}
	return fromWire(w)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(f Frame) ([]byte, error) {
	slog.Debug("Marshalling frame", slog.String("frame", Describe(f)))
	w, err := toWire(f)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(&w)
}

func (msgpackCodec) Unmarshal(b []byte) (Frame, error) {
	w := wireFrame{}
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return fromWire(w)
}

func (msgpackCodec) NewEncoder(w io.Writer) Encoder {
	return msgpackEncoder{enc: msgpack.NewEncoder(w)}
}

func (msgpackCodec) NewDecoder(r io.Reader) Decoder {
	return msgpackDecoder{dec: msgpack.NewDecoder(bufio.NewReader(r))}
}

type msgpackEncoder struct {
	enc *msgpack.Encoder
}

func (e msgpackEncoder) Encode(f Frame) error {
	w, err := toWire(f)
	if err != nil {
		return err
	}
	return e.enc.Encode(&w)
}

type msgpackDecoder struct {
	dec *msgpack.Decoder
}

func (d msgpackDecoder) Decode() (Frame, error) {
	w := wireFrame{}
	if err := d.dec.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return fromWire(w)
}
