// Package planner maps user-facing format and quality choices to the
// option bundle the extraction provider understands.
package planner

import (
	"fmt"

	"github.com/hmehl/vidfetch/internal/provider"
	"github.com/rs/zerolog/log"
)

// OutputKind selects the output container and stream composition.
type OutputKind string

const (
	VideoWithAudio OutputKind = "mp4"
	VideoOnly      OutputKind = "mp4-video"
	AudioOnly      OutputKind = "mp3"
	ContainerAVI   OutputKind = "avi"
	ContainerMKV   OutputKind = "mkv"
)

// QualityBest means no height constraint on stream selection.
const QualityBest = "best"

// Video quality ceilings accepted by ParseKind callers.
var VideoQualities = []string{QualityBest, "1080", "720", "480", "360"}

// Audio bitrates (kbps) accepted for audio extraction.
var AudioBitrates = []string{"320", "256", "192", "128"}

// Tuning is the read-only transfer tuning snapshot handed to each task.
type Tuning struct {
	ConcurrentFragments int
	HTTPChunkSize       int64
}

const (
	DefaultConcurrentFragments = 5
	DefaultHTTPChunkSize       = 2 * 1024 * 1024
)

// ParseKind maps a CLI format name to an OutputKind. Unknown names fall
// back to VideoWithAudio, mirroring Resolve's totality guarantee.
func ParseKind(s string) OutputKind {
	switch s {
	case "mp4", "video":
		return VideoWithAudio
	case "mp4-video", "video-only":
		return VideoOnly
	case "mp3", "audio":
		return AudioOnly
	case "avi":
		return ContainerAVI
	case "mkv":
		return ContainerMKV
	default:
		return VideoWithAudio
	}
}

// Ext returns the output file extension for a kind, without the dot.
func (k OutputKind) Ext() string {
	switch k {
	case AudioOnly:
		return "mp3"
	case ContainerAVI:
		return "avi"
	case ContainerMKV:
		return "mkv"
	default:
		return "mp4"
	}
}

// NeedsVideo reports whether the kind requires a video-capable stream.
func (k OutputKind) NeedsVideo() bool {
	return k != AudioOnly
}

// Resolve builds the provider option bundle for one download. It is total:
// every input combination yields a usable bundle, with unknown kinds
// treated as VideoWithAudio. videoQuality is ignored for AudioOnly and
// audioBitrate is ignored for video-only output.
func Resolve(kind OutputKind, videoQuality, audioBitrate string, tuning Tuning) provider.OptionBundle {
	bundle := provider.OptionBundle{
		ConcurrentFragments: tuning.ConcurrentFragments,
		HTTPChunkSize:       tuning.HTTPChunkSize,
		NoPlaylist:          true,
	}
	if bundle.ConcurrentFragments <= 0 {
		bundle.ConcurrentFragments = DefaultConcurrentFragments
	}
	if bundle.HTTPChunkSize <= 0 {
		bundle.HTTPChunkSize = DefaultHTTPChunkSize
	}

	switch kind {
	case AudioOnly:
		bundle.FormatSelector = "bestaudio"
		if audioBitrate == "" {
			audioBitrate = AudioBitrates[0]
		}
		bundle.PostProcess = &provider.AudioExtract{Codec: "mp3", BitrateKbps: audioBitrate}
	case VideoOnly:
		if constrained(videoQuality) {
			bundle.FormatSelector = fmt.Sprintf("bestvideo[height<=%s]", videoQuality)
		} else {
			bundle.FormatSelector = "bestvideo"
		}
		bundle.MergeContainer = "mp4"
		bundle.CopyCodecs = true
	case ContainerAVI, ContainerMKV:
		bundle.FormatSelector = combinedSelector(videoQuality)
		bundle.MergeContainer = string(kind)
		bundle.CopyCodecs = true
	default: // VideoWithAudio and anything unknown
		bundle.FormatSelector = combinedSelector(videoQuality)
		bundle.MergeContainer = "mp4"
		bundle.CopyCodecs = true
	}
	return bundle
}

// RelaxToSingleStream rewrites a bundle for sources that expose no
// video-capable streams: a single best-effort selection with the merge
// and post-process directives dropped. The user's quality ceiling is
// silently discarded, matching the provider's own degraded behavior.
func RelaxToSingleStream(bundle provider.OptionBundle) provider.OptionBundle {
	log.Warn().Str("op", "planner/relax").
		Str("selector", bundle.FormatSelector).
		Msg("No video streams available, falling back to single best stream")
	bundle.FormatSelector = "best"
	bundle.MergeContainer = ""
	bundle.CopyCodecs = false
	bundle.PostProcess = nil
	return bundle
}

func combinedSelector(videoQuality string) string {
	if constrained(videoQuality) {
		return fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best[height<=%s]", videoQuality, videoQuality)
	}
	return "bestvideo+bestaudio/best"
}

func constrained(videoQuality string) bool {
	return videoQuality != "" && videoQuality != QualityBest
}
