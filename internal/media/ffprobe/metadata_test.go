package ffprobe

import "testing"

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		input    string
		expected int
		ok       bool
	}{
		{"30/1", 30, true},
		{"30000/1001", 30, true},
		{"24000/1001", 24, true},
		{"25", 25, true},
		{"0/0", 0, false},
		{"", 0, false},
		{"bogus", 0, false},
		{"30/0", 0, false},
		{"-30/1", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseFrameRate(tc.input)
		if ok != tc.ok {
			t.Errorf("ParseFrameRate(%q): ok = %v, expected %v", tc.input, ok, tc.ok)
			continue
		}
		if got != tc.expected {
			t.Errorf("ParseFrameRate(%q) = %d, expected %d", tc.input, got, tc.expected)
		}
	}
}

func TestDefaultMetadata(t *testing.T) {
	meta := DefaultMetadata()
	if meta.Codec != UnknownCodec || meta.AudioCodec != UnknownCodec {
		t.Fatalf("expected unknown codecs, got %q/%q", meta.Codec, meta.AudioCodec)
	}
	if meta.DurationSeconds != 0 || meta.Width != 0 || meta.Height != 0 || meta.FrameRate != 0 {
		t.Fatalf("expected zero numeric defaults, got %+v", meta)
	}
}

func TestMergeAppliesProbedFields(t *testing.T) {
	meta := DefaultMetadata()
	meta.Merge(Result{
		Streams: []Stream{
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, AvgFrameRate: "24000/1001"},
			{CodecType: "audio", CodecName: "aac", Channels: 2},
		},
		Format: Format{Duration: "632.52", Size: "734003200", BitRate: "9283000"},
	})

	if meta.Width != 1920 || meta.Height != 1080 {
		t.Fatalf("unexpected dimensions %dx%d", meta.Width, meta.Height)
	}
	if meta.Codec != "h264" || meta.AudioCodec != "aac" {
		t.Fatalf("unexpected codecs %q/%q", meta.Codec, meta.AudioCodec)
	}
	if meta.FrameRate != 24 {
		t.Fatalf("unexpected frame rate %d", meta.FrameRate)
	}
	if meta.DurationSeconds != 632.52 {
		t.Fatalf("unexpected duration %v", meta.DurationSeconds)
	}
	if meta.SizeBytes != 734003200 || meta.BitRate != 9283000 {
		t.Fatalf("unexpected size/bitrate %d/%d", meta.SizeBytes, meta.BitRate)
	}
}

func TestMergePartialResultKeepsDefaults(t *testing.T) {
	meta := DefaultMetadata()
	meta.Merge(Result{
		Streams: []Stream{{CodecType: "video", Width: 1280, Height: 720}},
	})

	if meta.Width != 1280 || meta.Height != 720 {
		t.Fatalf("unexpected dimensions %dx%d", meta.Width, meta.Height)
	}
	if meta.Codec != UnknownCodec {
		t.Fatalf("codec should stay unknown, got %q", meta.Codec)
	}
	if meta.DurationSeconds != 0 || meta.FrameRate != 0 {
		t.Fatalf("missing fields should keep defaults, got %+v", meta)
	}
}

func TestMergeFallsBackToRFrameRate(t *testing.T) {
	meta := DefaultMetadata()
	meta.Merge(Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "30/1"}},
	})
	if meta.FrameRate != 30 {
		t.Fatalf("expected r_frame_rate fallback, got %d", meta.FrameRate)
	}
}
