package probe

import (
	"errors"
	"testing"

	"github.com/livelens/media-processor/pkg/models"
)

const fullOutput = `{
	"streams": [
		{"codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
		{"codec_name": "aac", "codec_type": "audio"}
	],
	"format": {
		"duration": "10.033333",
		"size": "5242880",
		"bit_rate": "4182000"
	}
}`

func TestParseOutput(t *testing.T) {
	meta, err := ParseOutput([]byte(fullOutput))
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}

	if meta.DurationSeconds != 10.033333 {
		t.Errorf("DurationSeconds = %v, want 10.033333", meta.DurationSeconds)
	}
	if meta.SizeBytes != 5242880 {
		t.Errorf("SizeBytes = %d, want 5242880", meta.SizeBytes)
	}
	if meta.Width != 1920 || meta.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", meta.Width, meta.Height)
	}
	if meta.VideoCodec != "h264" {
		t.Errorf("VideoCodec = %q, want %q", meta.VideoCodec, "h264")
	}
	if meta.AudioCodec != "aac" {
		t.Errorf("AudioCodec = %q, want %q", meta.AudioCodec, "aac")
	}
	if meta.Bitrate != 4182000 {
		t.Errorf("Bitrate = %d, want 4182000", meta.Bitrate)
	}
}

func TestParseOutput_FirstStreamWins(t *testing.T) {
	out := `{
		"streams": [
			{"codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720},
			{"codec_name": "mjpeg", "codec_type": "video", "width": 320, "height": 180},
			{"codec_name": "aac", "codec_type": "audio"},
			{"codec_name": "mp3", "codec_type": "audio"}
		],
		"format": {"duration": "5.0", "size": "1024"}
	}`

	meta, err := ParseOutput([]byte(out))
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}

	if meta.VideoCodec != "h264" || meta.Width != 1280 {
		t.Errorf("primary video = %q %dx%d, want first stream h264 1280x720",
			meta.VideoCodec, meta.Width, meta.Height)
	}
	if meta.AudioCodec != "aac" {
		t.Errorf("AudioCodec = %q, want first stream %q", meta.AudioCodec, "aac")
	}
}

func TestParseOutput_MissingStreams(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantVideo string
		wantAudio string
		wantWidth int
	}{
		{
			name: "no audio stream",
			output: `{
				"streams": [{"codec_name": "h264", "codec_type": "video", "width": 640, "height": 360}],
				"format": {"duration": "5.0", "size": "1024"}
			}`,
			wantVideo: "h264",
			wantAudio: "",
			wantWidth: 640,
		},
		{
			name: "no video stream",
			output: `{
				"streams": [{"codec_name": "aac", "codec_type": "audio"}],
				"format": {"duration": "5.0", "size": "1024"}
			}`,
			wantVideo: "",
			wantAudio: "aac",
			wantWidth: 0,
		},
		{
			name: "no streams at all",
			output: `{
				"streams": [],
				"format": {"duration": "5.0", "size": "1024"}
			}`,
			wantVideo: "",
			wantAudio: "",
			wantWidth: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := ParseOutput([]byte(tt.output))
			if err != nil {
				t.Fatalf("ParseOutput() error = %v", err)
			}
			if meta.VideoCodec != tt.wantVideo {
				t.Errorf("VideoCodec = %q, want %q", meta.VideoCodec, tt.wantVideo)
			}
			if meta.AudioCodec != tt.wantAudio {
				t.Errorf("AudioCodec = %q, want %q", meta.AudioCodec, tt.wantAudio)
			}
			if meta.Width != tt.wantWidth {
				t.Errorf("Width = %d, want %d", meta.Width, tt.wantWidth)
			}
		})
	}
}

func TestParseOutput_BitrateIsOptional(t *testing.T) {
	// Bitrate is advisory: absent or unparseable values report 0
	// instead of discarding an otherwise valid probe.
	tests := []struct {
		name   string
		format string
	}{
		{"absent", `{"duration": "5.0", "size": "1024"}`},
		{"non-numeric", `{"duration": "5.0", "size": "1024", "bit_rate": "N/A"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := `{
				"streams": [{"codec_name": "h264", "codec_type": "video", "width": 640, "height": 360}],
				"format": ` + tt.format + `
			}`

			meta, err := ParseOutput([]byte(out))
			if err != nil {
				t.Fatalf("ParseOutput() error = %v", err)
			}
			if meta.Bitrate != 0 {
				t.Errorf("Bitrate = %d, want 0", meta.Bitrate)
			}
		})
	}
}

func TestParseOutput_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"invalid JSON", `{not json`},
		{"missing duration", `{"streams": [], "format": {"size": "1024"}}`},
		{"missing size", `{"streams": [], "format": {"duration": "5.0"}}`},
		{"non-numeric duration", `{"streams": [], "format": {"duration": "N/A", "size": "1024"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOutput([]byte(tt.output))
			if err == nil {
				t.Fatal("ParseOutput() = nil, want error")
			}
			if !errors.Is(err, models.ErrProbeFailed) {
				t.Errorf("error = %v, want wrapped ErrProbeFailed", err)
			}
		})
	}
}
