package transcoder

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/livelens/media-processor/pkg/models"
)

// stubFFmpeg places a shell script named ffmpeg on PATH so runFFmpeg
// exercises the real pipe plumbing without a video toolchain.
func stubFFmpeg(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub binary requires a shell")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", dir)
}

func testEncoder() *Encoder {
	return NewEncoder(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestEncode_DrainsOutputBeforeExit(t *testing.T) {
	// Enough stderr and stdout to outlive the pipe buffers, so the
	// readers must still be draining when the process exits.
	stubFFmpeg(t, `#!/bin/sh
i=0
while [ $i -lt 500 ]; do
	echo "frame=  $i fps= 25 q=23.0 time=00:00:01.00 bitrate=2500kbits/s" >&2
	echo "frame payload $i"
	i=$((i+1))
done
exit 0
`)

	profile := Profile{"720p", 1280, 720, 2500, 192, "medium"}
	err := testEncoder().Encode(context.Background(), "/tmp/in.mov", profile, "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("Encode() error = %v, want nil", err)
	}
}

func TestEncode_NonZeroExit(t *testing.T) {
	stubFFmpeg(t, `#!/bin/sh
echo "Error opening input file" >&2
exit 1
`)

	profile := Profile{"480p", 854, 480, 1200, 128, "fast"}
	err := testEncoder().Encode(context.Background(), "/tmp/in.mov", profile, "/tmp/out.mp4")
	if !errors.Is(err, models.ErrEncodeFailed) {
		t.Errorf("error = %v, want wrapped ErrEncodeFailed", err)
	}
}

func TestExtractThumbnail_NonZeroExit(t *testing.T) {
	stubFFmpeg(t, `#!/bin/sh
echo "Output file is empty, nothing was encoded" >&2
exit 1
`)

	err := testEncoder().ExtractThumbnail(context.Background(), "/tmp/in.mov", "/tmp/out.jpg", 10*time.Second)
	if !errors.Is(err, models.ErrThumbnailFailed) {
		t.Errorf("error = %v, want wrapped ErrThumbnailFailed", err)
	}
}
