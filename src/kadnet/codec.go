package kadnet

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize bounds a single message body on the wire, excluding the
// 4 byte length prefix. Anything larger is a protocol violation.
const MaxFrameSize = 1 << 20

func writeFrame(w io.Writer, m *Message) error {
	body, err := msgpack.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding frame")
	}
	if len(body) > MaxFrameSize {
		return errors.Errorf("kadnet: frame of %d bytes exceeds the %d byte limit", len(body), MaxFrameSize)
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	_, err = w.Write(buf)
	return err
}

func readFrame(r io.Reader) (*Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, errors.Errorf("kadnet: frame of %d bytes exceeds the %d byte limit", n, MaxFrameSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	m := &Message{}
	if err := msgpack.Unmarshal(body, m); err != nil {
		return nil, errors.Wrap(err, "decoding frame")
	}
	return m, nil
}
