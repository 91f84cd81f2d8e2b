package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic opens every frame: "MSV1".
	Magic uint32 = 0x4D535631
	// MagicPrefix is Magic as it appears on the wire.
	MagicPrefix = "MSV1"
	// Version is the frame layout version written by WriteFrame.
	Version uint16 = 1
	// FrameHeaderLen is the size of the fixed frame header.
	FrameHeaderLen = 16

	// FlagCompressed marks a zstd-compressed payload.
	FlagCompressed uint16 = 0x0001
)

// Frame is one unit on a binary connection: the caller's credentials and
// one encoded message.
type Frame struct {
	Flags   uint16
	Auth    []byte
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxAuthBytes    uint32
	MaxPayloadBytes uint32
	// CompressThreshold is the payload size from which WriteFrame
	// compresses. Zero disables compression.
	CompressThreshold int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxAuthBytes:      64 * 1024,
		MaxPayloadBytes:   16 * 1024 * 1024,
		CompressThreshold: 4096,
	}
}

// ReadFrame reads the next frame from r. A clean end of stream before the
// first header byte returns io.EOF. Malformed or oversized frames return a
// *DecodeError; the stream position is then undefined.
// Compressed payloads are returned decompressed with FlagCompressed cleared.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var hdr [FrameHeaderLen]byte
	if n, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, &DecodeError{Offset: n, Reason: "short frame header", Err: ErrTruncated}
		}
		return Frame{}, err
	}

	if magic := binary.BigEndian.Uint32(hdr[0:4]); magic != Magic {
		return Frame{}, &DecodeError{Offset: 0, Reason: fmt.Sprintf("magic 0x%08x", magic), Err: ErrBadMagic}
	}
	if v := binary.BigEndian.Uint16(hdr[4:6]); v != Version {
		return Frame{}, &DecodeError{Offset: 4, Reason: fmt.Sprintf("version %d", v), Err: ErrUnsupportedVersion}
	}
	flags := binary.BigEndian.Uint16(hdr[6:8])
	authLen := binary.BigEndian.Uint32(hdr[8:12])
	payloadLen := binary.BigEndian.Uint32(hdr[12:16])

	if authLen > limits.MaxAuthBytes {
		return Frame{}, &DecodeError{Offset: 8, Reason: fmt.Sprintf("auth block of %d bytes", authLen), Err: ErrFrameTooLarge}
	}
	if payloadLen > limits.MaxPayloadBytes {
		return Frame{}, &DecodeError{Offset: 12, Reason: fmt.Sprintf("payload of %d bytes", payloadLen), Err: ErrFrameTooLarge}
	}

	f := Frame{Flags: flags}
	if authLen > 0 {
		f.Auth = make([]byte, authLen)
		if n, err := io.ReadFull(r, f.Auth); err != nil {
			return Frame{}, truncated(err, FrameHeaderLen+n)
		}
	}
	f.Payload = make([]byte, payloadLen)
	if payloadLen > 0 {
		if n, err := io.ReadFull(r, f.Payload); err != nil {
			return Frame{}, truncated(err, FrameHeaderLen+int(authLen)+n)
		}
	}

	if flags&FlagCompressed != 0 {
		plain, err := decompress(f.Payload, limits.MaxPayloadBytes)
		if err != nil {
			return Frame{}, &DecodeError{Offset: FrameHeaderLen + int(authLen), Reason: "payload decompression failed", Err: err}
		}
		f.Payload = plain
		f.Flags &^= FlagCompressed
	}
	return f, nil
}

// WriteFrame writes f to w as a single write. Payloads at or above
// limits.CompressThreshold are compressed when that makes them smaller.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if uint64(len(f.Auth)) > uint64(limits.MaxAuthBytes) {
		return fmt.Errorf("writing frame: auth block of %d bytes: %w", len(f.Auth), ErrFrameTooLarge)
	}

	flags := f.Flags &^ FlagCompressed
	payload := f.Payload
	if limits.CompressThreshold > 0 && len(payload) >= limits.CompressThreshold {
		packed, err := compress(payload)
		if err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
		if len(packed) < len(payload) {
			payload = packed
			flags |= FlagCompressed
		}
	}
	if uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return fmt.Errorf("writing frame: payload of %d bytes: %w", len(payload), ErrFrameTooLarge)
	}

	buf := make([]byte, FrameHeaderLen, FrameHeaderLen+len(f.Auth)+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	binary.BigEndian.PutUint16(buf[4:6], Version)
	binary.BigEndian.PutUint16(buf[6:8], flags)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(f.Auth)))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(payload)))
	buf = append(buf, f.Auth...)
	buf = append(buf, payload...)

	_, err := w.Write(buf)
	return err
}

func truncated(err error, offset int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &DecodeError{Offset: offset, Reason: "frame body ended early", Err: ErrTruncated}
	}
	return err
}
