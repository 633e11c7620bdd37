// Package protocol implements the ClipShare serial wire format.
//
// A frame carries one UTF-8 text payload:
//
//	STX | "CLIP" | US | "TEXT" | RS | length (uint32 LE) | payload | ETX
//
// There is no checksum. The decoder recovers from noise by discarding the
// smallest possible prefix of its buffer and rescanning for the next STX.
package protocol

import "encoding/binary"

// Control bytes used by the frame layout.
const (
	STX byte = 0x02
	ETX byte = 0x03
	US  byte = 0x1F
	RS  byte = 0x1E
)

const (
	// HeaderLen is the number of bytes before the payload.
	HeaderLen = 15
	// MinFrameLen is the size of a frame with an empty payload.
	MinFrameLen = HeaderLen + 1
)

// Field offsets within a frame.
const (
	offsetClip   = 1
	offsetUS     = 5
	offsetText   = 6
	offsetRS     = 10
	offsetLength = 11
)

var (
	tagClip = []byte("CLIP")
	tagText = []byte("TEXT")
)

// EncodeText builds a frame around the UTF-8 bytes of text.
// Any string encodes, including the empty string.
func EncodeText(text string) []byte {
	frame := make([]byte, HeaderLen+len(text)+1)
	frame[0] = STX
	copy(frame[offsetClip:], tagClip)
	frame[offsetUS] = US
	copy(frame[offsetText:], tagText)
	frame[offsetRS] = RS
	binary.LittleEndian.PutUint32(frame[offsetLength:], uint32(len(text)))
	copy(frame[HeaderLen:], text)
	frame[len(frame)-1] = ETX
	return frame
}
