package ffprobe

import (
	"context"
	"os"
	"os/exec"
	"testing"
)

func TestInspectRequiresPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "   "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInspectParsesHelperOutput(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestFFprobeHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	result, err := Inspect(context.Background(), "", "/media/source.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	video, ok := result.FirstVideoStream()
	if !ok {
		t.Fatal("expected a video stream")
	}
	if video.CodecName != "h264" || video.Width != 1280 || video.Height != 720 {
		t.Fatalf("unexpected video stream: %+v", video)
	}
	if result.DurationSeconds() != 120.5 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
	if result.BitRate() != 4500000 {
		t.Fatalf("unexpected bitrate %d", result.BitRate())
	}
}

func TestFFprobeHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Stdout.WriteString(`{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720, "avg_frame_rate": "30/1"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
  ],
  "format": {"filename": "/media/source.mp4", "nb_streams": 2, "duration": "120.5", "size": "67108864", "bit_rate": "4500000"}
}`)
	os.Exit(0)
}
