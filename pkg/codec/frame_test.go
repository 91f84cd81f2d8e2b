package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	limits := DefaultLimits()
	var buf bytes.Buffer
	frames := []Frame{
		{Auth: []byte("Bearer secret"), Payload: []byte{1, 2, 3}},
		{Payload: []byte{}},
		{Payload: bytes.Repeat([]byte("abcdefgh"), 2048)},
	}
	for _, f := range frames {
		if err := WriteFrame(&buf, f, limits); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	for i, want := range frames {
		got, err := ReadFrame(&buf, limits)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got.Auth, want.Auth) {
			t.Errorf("frame %d auth = %q, want %q", i, got.Auth, want.Auth)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame %d payload mismatch (%d vs %d bytes)", i, len(got.Payload), len(want.Payload))
		}
		if got.Flags&FlagCompressed != 0 {
			t.Errorf("frame %d returned with FlagCompressed set", i)
		}
	}

	if _, err := ReadFrame(&buf, limits); err != io.EOF {
		t.Fatalf("ReadFrame at end = %v, want io.EOF", err)
	}
}

func TestWriteFrameCompresses(t *testing.T) {
	limits := DefaultLimits()
	payload := []byte(strings.Repeat("probability ", 1000))

	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{Payload: payload}, limits); err != nil {
		t.Fatal(err)
	}
	if buf.Len() >= FrameHeaderLen+len(payload) {
		t.Fatalf("frame of %d bytes was not compressed", buf.Len())
	}
	raw := buf.Bytes()
	if raw[7]&byte(FlagCompressed) == 0 {
		t.Error("FlagCompressed not set on the wire")
	}

	got, err := ReadFrame(&buf, limits)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Error("decompressed payload differs")
	}

	// Compression disabled.
	buf.Reset()
	limits.CompressThreshold = 0
	if err := WriteFrame(&buf, Frame{Payload: payload}, limits); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != FrameHeaderLen+len(payload) {
		t.Errorf("uncompressed frame is %d bytes, want %d", buf.Len(), FrameHeaderLen+len(payload))
	}
}

func TestReadFrameErrors(t *testing.T) {
	limits := Limits{MaxAuthBytes: 8, MaxPayloadBytes: 32}

	var good bytes.Buffer
	if err := WriteFrame(&good, Frame{Auth: []byte("tok"), Payload: []byte("payload")}, limits); err != nil {
		t.Fatal(err)
	}
	frame := good.Bytes()

	mutate := func(fn func(b []byte)) []byte {
		b := append([]byte(nil), frame...)
		fn(b)
		return b
	}

	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"short header", frame[:5], ErrTruncated},
		{"bad magic", mutate(func(b []byte) { b[0] = 'X' }), ErrBadMagic},
		{"bad version", mutate(func(b []byte) { b[5] = 9 }), ErrUnsupportedVersion},
		{"auth too large", mutate(func(b []byte) { b[11] = 9 }), ErrFrameTooLarge},
		{"payload too large", mutate(func(b []byte) { b[15] = 33 }), ErrFrameTooLarge},
		{"truncated body", frame[:len(frame)-2], ErrTruncated},
		{"corrupt compressed payload", mutate(func(b []byte) { b[7] = byte(FlagCompressed) }), ErrCorruptPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.input), limits)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if !IsDecodeError(err) {
				t.Errorf("error %T is not a *DecodeError", err)
			}
		})
	}
}

func TestWriteFrameLimits(t *testing.T) {
	limits := Limits{MaxAuthBytes: 2, MaxPayloadBytes: 4}
	if err := WriteFrame(io.Discard, Frame{Auth: []byte("long")}, limits); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("auth limit error = %v", err)
	}
	if err := WriteFrame(io.Discard, Frame{Payload: []byte("too long")}, limits); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("payload limit error = %v", err)
	}
}
