package reassembly

import (
	"bytes"
	"testing"
	"time"
)

func t0() time.Time { return time.Unix(0, 0) }

func TestSingleCompleteFrame(t *testing.T) {
	l := NewLane(0, "test")
	got := l.Feed(t0(), []byte{0x00, 0x01, 0xAA})
	if len(got) != 1 || !bytes.Equal(got[0].Bytes, []byte{0xAA}) {
		t.Fatalf("expected one payload {0xAA}, got %v", got)
	}
}

func TestTwoSegmentFragmentation(t *testing.T) {
	l := NewLane(0, "test")
	if got := l.Feed(t0(), []byte{0x00, 0x02, 0xAA}); len(got) != 0 {
		t.Fatalf("expected no payload yet, got %v", got)
	}
	got := l.Feed(t0().Add(time.Millisecond), []byte{0xBB})
	if len(got) != 1 || !bytes.Equal(got[0].Bytes, []byte{0xAA, 0xBB}) {
		t.Fatalf("expected one payload {AA BB}, got %v", got)
	}
	if l.want != -1 || len(l.buf) != 0 {
		t.Fatalf("lane should be Fresh after completion")
	}
}

func TestThreeSegmentFragmentation(t *testing.T) {
	l := NewLane(0, "test")
	l.Feed(t0(), []byte{0x00, 0x03, 0xAA})
	l.Feed(t0(), []byte{0xBB})
	got := l.Feed(t0(), []byte{0xCC})
	if len(got) != 1 || !bytes.Equal(got[0].Bytes, []byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("expected one payload {AA BB CC}, got %v", got)
	}
}

func TestCoalescedFramesInOneSegment(t *testing.T) {
	l := NewLane(0, "test")
	got := l.Feed(t0(), []byte{0x00, 0x01, 0xAA, 0x00, 0x01, 0xBB, 0x00, 0x01, 0xCC})
	if len(got) != 3 {
		t.Fatalf("expected three payloads, got %d", len(got))
	}
	want := [][]byte{{0xAA}, {0xBB}, {0xCC}}
	for i, p := range got {
		if !bytes.Equal(p.Bytes, want[i]) {
			t.Fatalf("payload %d: got %v want %v", i, p.Bytes, want[i])
		}
	}
}

func TestZeroLengthFrame(t *testing.T) {
	l := NewLane(0, "test")
	got := l.Feed(t0(), []byte{0x00, 0x00})
	if len(got) != 1 || len(got[0].Bytes) != 0 {
		t.Fatalf("zero-length frame should complete immediately with empty body, got %v", got)
	}
}

func TestLengthHeaderOnlySegment(t *testing.T) {
	l := NewLane(0, "test")
	got := l.Feed(t0(), []byte{0x00, 0x05})
	if len(got) != 0 {
		t.Fatalf("a segment carrying only the length header must not complete anything, got %v", got)
	}
	if l.want != 5 || len(l.buf) != 0 {
		t.Fatalf("expected Partial state awaiting 5 bytes, got want=%d buf=%v", l.want, l.buf)
	}
}

func TestShortFreshSegmentWaits(t *testing.T) {
	l := NewLane(0, "test")
	got := l.Feed(t0(), []byte{0x00})
	if len(got) != 0 {
		t.Fatalf("single byte in fresh state must not complete anything, got %v", got)
	}
	got = l.Feed(t0(), []byte{0x01, 0xAA})
	if len(got) != 1 || !bytes.Equal(got[0].Bytes, []byte{0xAA}) {
		t.Fatalf("expected completion once the rest of the header arrives, got %v", got)
	}
}

func TestExactFrameBoundarySegment(t *testing.T) {
	l := NewLane(0, "test")
	got := l.Feed(t0(), []byte{0x00, 0x02, 0xAA, 0xBB})
	if len(got) != 1 || !bytes.Equal(got[0].Bytes, []byte{0xAA, 0xBB}) {
		t.Fatalf("expected exact one payload, got %v", got)
	}
	if l.want != -1 || len(l.buf) != 0 {
		t.Fatalf("lane must be Fresh with empty buffer after an exact boundary segment")
	}
}

func TestOneAndHalfFrames(t *testing.T) {
	l := NewLane(0, "test")
	got := l.Feed(t0(), []byte{0x00, 0x02, 0xAA, 0xBB, 0x00, 0x02, 0xCC})
	if len(got) != 1 || !bytes.Equal(got[0].Bytes, []byte{0xAA, 0xBB}) {
		t.Fatalf("expected one completed payload, got %v", got)
	}
	if l.want != 2 || !bytes.Equal(l.buf, []byte{0xCC}) {
		t.Fatalf("expected partial state awaiting one more byte, got want=%d buf=%v", l.want, l.buf)
	}
}

func TestResetIdempotence(t *testing.T) {
	l := NewLane(0, "test")
	l.Feed(t0(), []byte{0x00, 0x05, 0xAA, 0xBB})
	l.Reset()
	fresh := NewLane(0, "test")
	if l.want != fresh.want || len(l.buf) != len(fresh.buf) {
		t.Fatalf("reset lane must be indistinguishable from a new one")
	}
	l.Reset()
	if l.want != -1 || l.buf != nil {
		t.Fatalf("resetting twice must stay idempotent")
	}
}

func TestOversizeLengthResetsLane(t *testing.T) {
	l := NewLane(0, "test")
	l.maxWant = 4
	got := l.Feed(t0(), []byte{0xFF, 0xFF, 0xAA})
	if len(got) != 0 {
		t.Fatalf("corrupt length must not emit a payload")
	}
	if l.want != -1 {
		t.Fatalf("lane must reset to Fresh after a corrupt length")
	}
}

func TestFramingRoundTrip(t *testing.T) {
	messages := [][]byte{
		{0x01},
		{0x02, 0x03, 0x04},
		bytes.Repeat([]byte{0x7F}, 300),
	}
	var wire []byte
	for _, m := range messages {
		wire = append(wire, byte(len(m)>>8), byte(len(m)))
		wire = append(wire, m...)
	}

	// Split into arbitrary contiguous chunks and feed them one at a time.
	splits := []int{1, 3, 7, 50, 200}
	l := NewLane(0, "test")
	var got [][]byte
	offset := 0
	for _, s := range splits {
		end := offset + s
		if end > len(wire) {
			end = len(wire)
		}
		for _, p := range l.Feed(t0(), wire[offset:end]) {
			got = append(got, p.Bytes)
		}
		offset = end
		if offset >= len(wire) {
			break
		}
	}
	if offset < len(wire) {
		for _, p := range l.Feed(t0(), wire[offset:]) {
			got = append(got, p.Bytes)
		}
	}

	if len(got) != len(messages) {
		t.Fatalf("expected %d messages, got %d", len(messages), len(got))
	}
	for i := range messages {
		if !bytes.Equal(got[i], messages[i]) {
			t.Fatalf("message %d mismatch", i)
		}
	}
}
