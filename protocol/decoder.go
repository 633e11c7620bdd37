package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// FrameDecoder reassembles frames from a byte stream that may arrive in
// arbitrary chunks and may contain garbage.
//
// A FrameDecoder is not safe for concurrent use; it belongs to exactly one
// reader.
type FrameDecoder struct {
	buf []byte
	off int // start of unconsumed bytes in buf
}

// NewFrameDecoder returns an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends chunk to the decode buffer. The chunk is copied.
func (d *FrameDecoder) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	d.compact()
	d.buf = append(d.buf, chunk...)
}

// Buffered reports how many unconsumed bytes are held.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf) - d.off
}

// TryTakeNext extracts the next complete frame from the head of the buffer.
// It returns false when no frame is available yet; corrupted input is
// discarded silently. Callers loop until it returns false.
func (d *FrameDecoder) TryTakeNext() (string, bool) {
	p := d.pending()

	start := bytes.IndexByte(p, STX)
	if start < 0 {
		d.reset()
		return "", false
	}
	d.discard(start)
	p = d.pending()

	if len(p) < MinFrameLen {
		return "", false
	}

	if !bytes.Equal(p[offsetClip:offsetClip+len(tagClip)], tagClip) {
		d.discard(1)
		return "", false
	}
	if p[offsetUS] != US {
		d.discard(offsetUS + 1)
		return "", false
	}
	if !bytes.Equal(p[offsetText:offsetText+len(tagText)], tagText) {
		d.discard(offsetText + len(tagText))
		return "", false
	}
	if p[offsetRS] != RS {
		d.discard(offsetRS + 1)
		return "", false
	}

	length := uint64(binary.LittleEndian.Uint32(p[offsetLength:HeaderLen]))
	end := uint64(HeaderLen) + length
	if uint64(len(p)) <= end {
		// Payload or trailer still in flight.
		return "", false
	}

	if p[end] != ETX {
		d.discard(1)
		return "", false
	}

	text := strings.ToValidUTF8(string(p[HeaderLen:end]), "\uFFFD")
	d.discard(int(end) + 1)
	return text, true
}

// TakeAll drains every frame currently decodable. Unlike a single
// TryTakeNext call it keeps going after a resync discard, so a valid frame
// that follows corrupted bytes in the same chunk is not left waiting for
// the next Feed.
func (d *FrameDecoder) TakeAll() []string {
	var out []string
	for {
		before := d.Buffered()
		text, ok := d.TryTakeNext()
		if ok {
			out = append(out, text)
			continue
		}
		if after := d.Buffered(); after == 0 || after == before {
			return out
		}
	}
}

// DecodeAll feeds b into a fresh decoder and returns every frame it yields.
func DecodeAll(b []byte) []string {
	d := NewFrameDecoder()
	d.Feed(b)
	return d.TakeAll()
}

func (d *FrameDecoder) pending() []byte {
	return d.buf[d.off:]
}

func (d *FrameDecoder) discard(n int) {
	d.off += n
	if d.off >= len(d.buf) {
		d.reset()
	}
}

func (d *FrameDecoder) reset() {
	d.buf = d.buf[:0]
	d.off = 0
}

// compact moves live bytes to the front once the consumed prefix is at
// least as large as what remains, keeping head removal amortized O(1).
func (d *FrameDecoder) compact() {
	if d.off == 0 || d.off < len(d.buf)-d.off {
		return
	}
	n := copy(d.buf, d.buf[d.off:])
	d.buf = d.buf[:n]
	d.off = 0
}
