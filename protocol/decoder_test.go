package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeTextLayout(t *testing.T) {
	frame := EncodeText("hé")

	want := []byte{STX, 'C', 'L', 'I', 'P', US, 'T', 'E', 'X', 'T', RS, 3, 0, 0, 0, 'h', 0xC3, 0xA9, ETX}
	require.Equal(t, want, frame)
}

func TestEncodeTextEmpty(t *testing.T) {
	frame := EncodeText("")
	require.Len(t, frame, MinFrameLen)
	require.Equal(t, ETX, frame[len(frame)-1])
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"a\x00b\x02c\x03",
		"line1\r\nline2\ttab",
		"日本語テキスト 🎉",
		strings.Repeat("x", 70000),
	}
	for _, text := range cases {
		require.Equal(t, []string{text}, DecodeAll(EncodeText(text)))
	}
}

func TestTryTakeNextDiscardsWhenNoSTX(t *testing.T) {
	d := NewFrameDecoder()
	d.Feed([]byte("no frame start here"))

	_, ok := d.TryTakeNext()
	require.False(t, ok)
	require.Zero(t, d.Buffered())
}

func TestTryTakeNextSkipsGarbageBeforeSTX(t *testing.T) {
	d := NewFrameDecoder()
	d.Feed(append([]byte("garbage"), EncodeText("hello")...))

	text, ok := d.TryTakeNext()
	require.True(t, ok)
	require.Equal(t, "hello", text)
	require.Zero(t, d.Buffered())
}

func TestTryTakeNextWaitsForMinimumLength(t *testing.T) {
	d := NewFrameDecoder()
	d.Feed(append([]byte("zz"), EncodeText("")[:MinFrameLen-1]...))

	_, ok := d.TryTakeNext()
	require.False(t, ok)
	require.Equal(t, MinFrameLen-1, d.Buffered())
}

func TestTryTakeNextResyncBranches(t *testing.T) {
	base := EncodeText("hello")

	cases := []struct {
		name      string
		offset    int
		value     byte
		remaining int
	}{
		{name: "clip tag", offset: 2, value: 'X', remaining: len(base) - 1},
		{name: "unit separator", offset: 5, value: 0x00, remaining: len(base) - 6},
		{name: "text tag", offset: 7, value: 'X', remaining: len(base) - 10},
		{name: "record separator", offset: 10, value: 0x00, remaining: len(base) - 11},
		{name: "end of text", offset: len(base) - 1, value: 0x00, remaining: len(base) - 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := bytes.Clone(base)
			frame[tc.offset] = tc.value

			d := NewFrameDecoder()
			d.Feed(frame)

			_, ok := d.TryTakeNext()
			require.False(t, ok)
			require.Equal(t, tc.remaining, d.Buffered())
		})
	}
}

func TestTryTakeNextKeepsIncompletePayload(t *testing.T) {
	frame := EncodeText("z")

	d := NewFrameDecoder()
	d.Feed(frame[:len(frame)-1])

	_, ok := d.TryTakeNext()
	require.False(t, ok)
	require.Equal(t, len(frame)-1, d.Buffered())

	d.Feed(frame[len(frame)-1:])
	text, ok := d.TryTakeNext()
	require.True(t, ok)
	require.Equal(t, "z", text)
}

func TestTryTakeNextMultipleFramesInOneChunk(t *testing.T) {
	d := NewFrameDecoder()
	d.Feed(append(EncodeText("x"), EncodeText("y")...))

	text, ok := d.TryTakeNext()
	require.True(t, ok)
	require.Equal(t, "x", text)

	text, ok = d.TryTakeNext()
	require.True(t, ok)
	require.Equal(t, "y", text)

	_, ok = d.TryTakeNext()
	require.False(t, ok)
}

func TestFragmentationInvariance(t *testing.T) {
	frame := EncodeText("fragmented payload ✓")

	for _, size := range []int{1, 2, 3, 7, 16, len(frame)} {
		d := NewFrameDecoder()
		var got []string
		for i := 0; i < len(frame); i += size {
			end := min(i+size, len(frame))
			d.Feed(frame[i:end])
			got = append(got, d.TakeAll()...)
		}
		require.Equal(t, []string{"fragmented payload ✓"}, got, "chunk size %d", size)
	}
}

func TestResyncAfterGarbage(t *testing.T) {
	stream := append([]byte{0xFF, 0x00, 'C', 'L', 'I', 'P', 0x1F}, EncodeText("hello")...)
	require.Equal(t, []string{"hello"}, DecodeAll(stream))
}

func TestResyncDropsCorruptedFrameBetweenValidOnes(t *testing.T) {
	corruptTag := EncodeText("middle")
	corruptTag[3] = 'Z'

	corruptETX := EncodeText("middle")
	corruptETX[len(corruptETX)-1] = 'Q'

	for _, corrupted := range [][]byte{corruptTag, corruptETX} {
		var stream []byte
		stream = append(stream, EncodeText("a")...)
		stream = append(stream, corrupted...)
		stream = append(stream, EncodeText("b")...)

		require.Equal(t, []string{"a", "b"}, DecodeAll(stream))
	}
}

func TestTryTakeNextReplacesInvalidUTF8(t *testing.T) {
	frame := EncodeText("ab")
	frame[HeaderLen] = 0xFF

	text, ok := func() (string, bool) {
		d := NewFrameDecoder()
		d.Feed(frame)
		return d.TryTakeNext()
	}()
	require.True(t, ok)
	require.Equal(t, "�b", text)
}

func TestDecoderCompactsConsumedPrefix(t *testing.T) {
	d := NewFrameDecoder()
	frame := EncodeText("repeat")

	for i := 0; i < 1000; i++ {
		d.Feed(frame[:4])
		d.Feed(frame[4:])
		require.Equal(t, []string{"repeat"}, d.TakeAll())
	}
	require.Zero(t, d.Buffered())
	require.LessOrEqual(t, cap(d.buf), 4*len(frame))
}
