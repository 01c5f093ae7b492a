package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"hlspack/internal/hls"
)

func testRendition() hls.Rendition {
	return hls.Rendition{Name: "360p", Width: 640, Height: 360, VideoBitrate: 800_000, AudioBitrate: 96_000}
}

func stubCommand(t *testing.T, mode string, capture *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if capture != nil {
			*capture = append([]string(nil), args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestFFmpegHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/ffmpeg"))
	if cli.binary != "/opt/ffmpeg" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestEncodeRequiresInput(t *testing.T) {
	cli := NewCLI()
	req := EncodeRequest{OutputDir: t.TempDir(), Rendition: testRendition()}
	if _, err := cli.Encode(context.Background(), req, nil); err == nil {
		t.Fatal("expected error when input path is empty")
	}
}

func TestEncodeRequiresOutputDir(t *testing.T) {
	cli := NewCLI()
	req := EncodeRequest{InputPath: "/media/source.mp4", Rendition: testRendition()}
	if _, err := cli.Encode(context.Background(), req, nil); err == nil {
		t.Fatal("expected error when output directory is empty")
	}
}

func TestEncodeArgsLayout(t *testing.T) {
	var captured []string
	stubCommand(t, "success", &captured)

	dir := filepath.Join(t.TempDir(), "360p")
	req := EncodeRequest{
		InputPath:       "/media/source.mp4",
		OutputDir:       dir,
		Rendition:       testRendition(),
		SegmentSeconds:  4,
		Preset:          "fast",
		DurationSeconds: 60,
	}

	playlist, err := NewCLI().Encode(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if playlist != filepath.Join(dir, "playlist.m3u8") {
		t.Fatalf("unexpected playlist path %q", playlist)
	}

	want := map[string]string{
		"-vf":                    "scale=640:360",
		"-b:v":                   "800000",
		"-b:a":                   "96000",
		"-hls_time":              "4",
		"-hls_playlist_type":     "vod",
		"-hls_segment_filename":  filepath.Join(dir, "segment_%03d.ts"),
		"-progress":              "pipe:1",
	}
	for flag, value := range want {
		found := false
		for i, arg := range captured {
			if arg == flag && i+1 < len(captured) && captured[i+1] == value {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %s %s in args %v", flag, value, captured)
		}
	}
	if captured[len(captured)-1] != playlist {
		t.Errorf("playlist path must be the final argument, got %q", captured[len(captured)-1])
	}
}

func TestEncodeReportsProgress(t *testing.T) {
	stubCommand(t, "progress", nil)

	var fractions []float64
	req := EncodeRequest{
		InputPath:       "/media/source.mp4",
		OutputDir:       filepath.Join(t.TempDir(), "360p"),
		Rendition:       testRendition(),
		DurationSeconds: 100,
	}
	if _, err := NewCLI().Encode(context.Background(), req, func(u ProgressUpdate) {
		fractions = append(fractions, u.Fraction)
	}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(fractions) < 3 {
		t.Fatalf("expected at least 3 progress events, got %v", fractions)
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatalf("progress regressed at %d: %v", i, fractions)
		}
	}
	if got := fractions[len(fractions)-1]; got != 1 {
		t.Fatalf("final fraction should be 1, got %v", got)
	}
}

func TestEncodeUnknownDurationSkipsIntermediateProgress(t *testing.T) {
	stubCommand(t, "progress", nil)

	var fractions []float64
	req := EncodeRequest{
		InputPath: "/media/source.mp4",
		OutputDir: filepath.Join(t.TempDir(), "360p"),
		Rendition: testRendition(),
	}
	if _, err := NewCLI().Encode(context.Background(), req, func(u ProgressUpdate) {
		fractions = append(fractions, u.Fraction)
	}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Only the terminal progress=end event maps to a fraction.
	if len(fractions) != 1 || fractions[0] != 1 {
		t.Fatalf("expected single terminal event, got %v", fractions)
	}
}

func TestEncodeFailureIncludesStderr(t *testing.T) {
	stubCommand(t, "fail", nil)

	req := EncodeRequest{
		InputPath: "/media/source.mp4",
		OutputDir: filepath.Join(t.TempDir(), "360p"),
		Rendition: testRendition(),
	}
	_, err := NewCLI().Encode(context.Background(), req, nil)
	if err == nil {
		t.Fatal("expected encode failure")
	}
	if want := "no such filter"; !strings.Contains(err.Error(), want) {
		t.Fatalf("expected stderr detail %q in error %q", want, err)
	}
	if !strings.Contains(err.Error(), "encode 360p") {
		t.Fatalf("expected rendition name in error %q", err)
	}
}

func TestExtractFrame(t *testing.T) {
	var captured []string
	stubCommand(t, "success", &captured)

	out := filepath.Join(t.TempDir(), "thumbnail.jpg")
	path, err := NewCLI().ExtractFrame(context.Background(), "/media/source.mp4", out, 30.5)
	if err != nil {
		t.Fatalf("ExtractFrame: %v", err)
	}
	if path != out {
		t.Fatalf("unexpected thumbnail path %q", path)
	}

	foundSeek := false
	for i, arg := range captured {
		if arg == "-ss" && i+1 < len(captured) && captured[i+1] == "30.500" {
			foundSeek = true
		}
	}
	if !foundSeek {
		t.Fatalf("expected -ss 30.500 in args %v", captured)
	}
}

func TestExtractFrameFailure(t *testing.T) {
	stubCommand(t, "fail", nil)
	if _, err := NewCLI().ExtractFrame(context.Background(), "/media/source.mp4", "/out/thumb.jpg", 1); err == nil {
		t.Fatal("expected extraction failure")
	}
}

func TestFrameOffset(t *testing.T) {
	cases := []struct {
		duration, fraction, expected float64
	}{
		{120, 0.25, 30},
		{0, 0.25, 1},
		{120, 0, 30},
		{120, 1.5, 30},
	}
	for _, tc := range cases {
		if got := FrameOffset(tc.duration, tc.fraction); got != tc.expected {
			t.Errorf("FrameOffset(%v, %v) = %v, expected %v", tc.duration, tc.fraction, got, tc.expected)
		}
	}
}

// TestFFmpegHelperProcess emulates the ffmpeg binary for the stubs
// above.
func TestFFmpegHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		os.Exit(0)
	case "progress":
		os.Stdout.WriteString("frame=100\nout_time_us=25000000\nprogress=continue\n")
		os.Stdout.WriteString("frame=200\nout_time_us=50000000\nprogress=continue\n")
		os.Stdout.WriteString("frame=400\nout_time_us=100000000\nprogress=end\n")
		os.Exit(0)
	case "fail":
		os.Stderr.WriteString("[AVFilterGraph] no such filter: 'bogus'\n")
		os.Exit(1)
	}
	os.Exit(0)
}
