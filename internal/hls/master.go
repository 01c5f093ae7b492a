package hls

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MasterPlaylistName is the filename of the top-level manifest inside a
// job's output directory.
const MasterPlaylistName = "master.m3u8"

// VariantPlaylistName is the filename each rendition's playlist is
// written under inside its per-rendition subdirectory.
const VariantPlaylistName = "playlist.m3u8"

// codecsAttr is the CODECS attribute advertised for every variant. All
// renditions encode H.264 baseline video with AAC-LC audio, so the value
// is constant.
const codecsAttr = `avc1.42e00a,mp4a.40.2`

// Master renders the master playlist for the provided ladder. One
// #EXT-X-STREAM-INF block is emitted per ladder entry, in ladder order,
// each followed by a blank line.
func Master(ladder []Rendition) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString("\n")

	for _, rendition := range ladder {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s,CODECS=%q\n",
			rendition.Bandwidth(), rendition.Resolution(), codecsAttr)
		b.WriteString(rendition.Name + "/" + VariantPlaylistName + "\n")
		b.WriteString("\n")
	}

	return b.String()
}

// WriteMaster validates the ladder, renders the master playlist, and
// writes it into outputDir. It returns the path of the written file.
// Callers must only invoke this after every variant playlist is durably
// on disk: the master must never be observable before its variants.
func WriteMaster(outputDir string, ladder []Rendition) (string, error) {
	if err := ValidateLadder(ladder); err != nil {
		return "", fmt.Errorf("validate ladder: %w", err)
	}
	path := filepath.Join(outputDir, MasterPlaylistName)
	if err := os.WriteFile(path, []byte(Master(ladder)), 0o644); err != nil {
		return "", fmt.Errorf("write master playlist: %w", err)
	}
	return path, nil
}

// VariantPlaylistPath returns the on-disk location of a rendition's
// playlist relative to the job output directory.
func VariantPlaylistPath(outputDir string, rendition Rendition) string {
	return filepath.Join(outputDir, rendition.Name, VariantPlaylistName)
}
