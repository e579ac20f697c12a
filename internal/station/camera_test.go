package station

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

// writeIVF writes a minimal IVF file with a 1/30 timebase.
func writeIVF(t *testing.T, fourCC string, frames ...[]byte) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("DKIF")
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // version
	binary.Write(&buf, binary.LittleEndian, uint16(32)) // header size
	buf.WriteString(fourCC)
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // width
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // height
	binary.Write(&buf, binary.LittleEndian, uint32(30)) // timebase denominator
	binary.Write(&buf, binary.LittleEndian, uint32(1))  // timebase numerator
	binary.Write(&buf, binary.LittleEndian, uint32(len(frames)))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	for i, f := range frames {
		binary.Write(&buf, binary.LittleEndian, uint32(len(f)))
		binary.Write(&buf, binary.LittleEndian, uint64(i))
		buf.Write(f)
	}

	path := filepath.Join(t.TempDir(), "camera.ivf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIVFSourceLoops(t *testing.T) {
	first, second := []byte{1, 2, 3}, []byte{4, 5}
	src, err := openIVF(writeIVF(t, "VP80", first, second))
	if err != nil {
		t.Fatalf("openIVF: %v", err)
	}
	defer src.Close()

	if src.MimeType() != webrtc.MimeTypeVP8 {
		t.Errorf("mime = %s, want %s", src.MimeType(), webrtc.MimeTypeVP8)
	}
	if got := src.Interval(); got < 33*time.Millisecond || got > 34*time.Millisecond {
		t.Errorf("interval = %v, want ~33ms", got)
	}

	for i, want := range [][]byte{first, second, first} {
		got, err := src.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %v, want %v", i, got, want)
		}
	}
}

func TestIVFSourceRejectsUnknownCodec(t *testing.T) {
	if _, err := openIVF(writeIVF(t, "H264", []byte{1})); err == nil {
		t.Fatal("expected an error for an unsupported codec")
	}
}

func TestOpenSourceDefaultsToSynthetic(t *testing.T) {
	st := New(Options{})
	defer st.Close()

	src, err := st.openSource()
	if err != nil {
		t.Fatal(err)
	}
	if src.MimeType() != webrtc.MimeTypeVP8 {
		t.Errorf("mime = %s, want %s", src.MimeType(), webrtc.MimeTypeVP8)
	}
	frame, err := src.Next()
	if err != nil || len(frame) == 0 {
		t.Fatalf("Next = %v, %v", frame, err)
	}
}

func TestOfferFailsForMissingVideoFile(t *testing.T) {
	st := New(Options{
		API:       loopbackAPI(),
		VideoFile: filepath.Join(t.TempDir(), "missing.ivf"),
	})
	defer st.Close()

	offer := viewerOffer(t)
	if _, _, err := st.answer(t.Context(), offer.SDP); err == nil {
		t.Fatal("expected answer to fail without a video file")
	}
	if st.Peers() != 0 {
		t.Errorf("peers = %d, want 0", st.Peers())
	}
}
