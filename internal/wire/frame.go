package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFramePayload limits individual frame payloads to 8MB. Editor replies
// carrying scene dumps can be large; anything beyond this is a protocol
// violation.
const MaxFramePayload = 8 << 20

// WriteFrame writes a framed payload to w.
// Wire format: [length:4 BE][payload].
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFramePayload {
		return fmt.Errorf("frame payload %d bytes exceeds limit %d", len(payload), MaxFramePayload)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one framed payload from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFramePayload {
		return nil, fmt.Errorf("frame payload %d bytes exceeds limit %d", length, MaxFramePayload)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}
