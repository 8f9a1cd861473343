package ytdlp

import (
	"slices"
	"testing"

	"github.com/hmehl/vidfetch/internal/provider"
)

func TestTransferArgs(t *testing.T) {
	d := &Downloader{BinaryPath: "yt-dlp", FFmpegPath: "/usr/bin/ffmpeg"}
	opts := provider.OptionBundle{
		FormatSelector:      "bestvideo+bestaudio/best",
		MergeContainer:      "mp4",
		CopyCodecs:          true,
		ConcurrentFragments: 5,
		HTTPChunkSize:       2 << 20,
		NoPlaylist:          true,
		OutputPath:          "/downloads/clip.mp4",
		Headers:             map[string]string{"User-Agent": "Mozilla/5.0"},
	}
	args := d.TransferArgs("https://example.com/v", opts)

	wantPairs := [][]string{
		{"-f", "bestvideo+bestaudio/best"},
		{"--merge-output-format", "mp4"},
		{"--postprocessor-args", "ffmpeg:-c copy"},
		{"--concurrent-fragments", "5"},
		{"--http-chunk-size", "2097152"},
		{"--ffmpeg-location", "/usr/bin/ffmpeg"},
		{"-o", "/downloads/clip.mp4"},
		{"--add-headers", "User-Agent:Mozilla/5.0"},
		{"--progress-template", progressTemplate},
	}
	for _, pair := range wantPairs {
		i := slices.Index(args, pair[0])
		if i < 0 || i+1 >= len(args) {
			t.Errorf("missing %q flag in %v", pair[0], args)
			continue
		}
		if args[i+1] != pair[1] {
			t.Errorf("%s = %q, want %q", pair[0], args[i+1], pair[1])
		}
	}
	for _, flag := range []string{"--newline", "--no-warnings", "--progress", "--no-playlist"} {
		if !slices.Contains(args, flag) {
			t.Errorf("missing %q flag in %v", flag, args)
		}
	}
	if args[len(args)-1] != "https://example.com/v" {
		t.Errorf("url must be the last argument, got %q", args[len(args)-1])
	}
}

func TestTransferArgsAudioExtraction(t *testing.T) {
	d := &Downloader{BinaryPath: "yt-dlp"}
	opts := provider.OptionBundle{
		FormatSelector: "bestaudio",
		PostProcess:    &provider.AudioExtract{Codec: "mp3", BitrateKbps: "192"},
	}
	args := d.TransferArgs("https://example.com/v", opts)

	if !slices.Contains(args, "-x") {
		t.Errorf("missing -x in %v", args)
	}
	i := slices.Index(args, "--audio-format")
	if i < 0 || args[i+1] != "mp3" {
		t.Errorf("audio format not mp3 in %v", args)
	}
	i = slices.Index(args, "--audio-quality")
	if i < 0 || args[i+1] != "192K" {
		t.Errorf("audio quality not 192K in %v", args)
	}
	for _, flag := range []string{"--merge-output-format", "--postprocessor-args", "--ffmpeg-location", "-o"} {
		if slices.Contains(args, flag) {
			t.Errorf("unexpected %q flag in %v", flag, args)
		}
	}
}

func TestProbeArgsOmitFormatSelector(t *testing.T) {
	d := &Downloader{BinaryPath: "yt-dlp"}
	opts := provider.OptionBundle{
		FormatSelector: "bestvideo[height<=720]+bestaudio/best[height<=720]",
		MergeContainer: "mp4",
		CopyCodecs:     true,
		NoPlaylist:     true,
		Headers:        map[string]string{"User-Agent": "Mozilla/5.0"},
	}
	args := d.ProbeArgs("https://example.com/v", opts)

	// A selector the source cannot satisfy would abort the metadata dump,
	// so the probe must not constrain formats.
	for _, flag := range []string{"-f", "--merge-output-format", "--postprocessor-args"} {
		if slices.Contains(args, flag) {
			t.Errorf("unexpected %q flag in %v", flag, args)
		}
	}
	for _, flag := range []string{"--dump-json", "--skip-download", "--no-warnings", "--no-playlist"} {
		if !slices.Contains(args, flag) {
			t.Errorf("missing %q flag in %v", flag, args)
		}
	}
	i := slices.Index(args, "--add-headers")
	if i < 0 || args[i+1] != "User-Agent:Mozilla/5.0" {
		t.Errorf("headers not passed through in %v", args)
	}
	if args[len(args)-1] != "https://example.com/v" {
		t.Errorf("url must be the last argument, got %q", args[len(args)-1])
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		name           string
		line           string
		wantOK         bool
		wantDownloaded int64
		wantTotal      int64
	}{
		{
			name:           "exact totals",
			line:           "vidfetch-progress 1024 4096 4000",
			wantOK:         true,
			wantDownloaded: 1024,
			wantTotal:      4096,
		},
		{
			name:           "estimate fallback",
			line:           "vidfetch-progress 1024 NA 4000",
			wantOK:         true,
			wantDownloaded: 1024,
			wantTotal:      4000,
		},
		{
			name:           "both totals unknown",
			line:           "vidfetch-progress 1024 NA NA",
			wantOK:         true,
			wantDownloaded: 1024,
			wantTotal:      0,
		},
		{
			name:           "float bytes",
			line:           "vidfetch-progress 1536.5 4096.0 NA",
			wantOK:         true,
			wantDownloaded: 1536,
			wantTotal:      4096,
		},
		{
			name:   "unrelated output",
			line:   "[download] Destination: clip.mp4",
			wantOK: false,
		},
		{
			name:   "too few fields",
			line:   "vidfetch-progress 1024",
			wantOK: false,
		},
		{
			name:   "empty",
			line:   "",
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := parseProgressLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if ev.Status != provider.StatusDownloading {
				t.Errorf("status = %q, want downloading", ev.Status)
			}
			if ev.Downloaded != tt.wantDownloaded {
				t.Errorf("downloaded = %d, want %d", ev.Downloaded, tt.wantDownloaded)
			}
			if ev.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", ev.Total, tt.wantTotal)
			}
		})
	}
}

func TestHeaderArgsOrdering(t *testing.T) {
	args := headerArgs(map[string]string{
		"X-Custom":   "1",
		"Referer":    "https://player.videasy.net/",
		"User-Agent": "Mozilla/5.0",
		"Origin":     "https://player.videasy.net",
	})
	want := []string{
		"--add-headers", "User-Agent:Mozilla/5.0",
		"--add-headers", "Origin:https://player.videasy.net",
		"--add-headers", "Referer:https://player.videasy.net/",
		"--add-headers", "X-Custom:1",
	}
	if !slices.Equal(args, want) {
		t.Errorf("headerArgs = %v, want %v", args, want)
	}

	if got := headerArgs(nil); got != nil {
		t.Errorf("headerArgs(nil) = %v, want nil", got)
	}
}

func TestStreamKinds(t *testing.T) {
	tests := []struct {
		name      string
		info      probeInfo
		wantVideo bool
		wantAudio bool
	}{
		{
			name: "formats with both",
			info: probeInfo{Formats: []struct {
				Vcodec string `json:"vcodec"`
				Acodec string `json:"acodec"`
			}{{Vcodec: "avc1", Acodec: "none"}, {Vcodec: "none", Acodec: "mp4a"}}},
			wantVideo: true,
			wantAudio: true,
		},
		{
			name: "audio only formats",
			info: probeInfo{Formats: []struct {
				Vcodec string `json:"vcodec"`
				Acodec string `json:"acodec"`
			}{{Vcodec: "none", Acodec: "opus"}}},
			wantVideo: false,
			wantAudio: true,
		},
		{
			name:      "top level fallback",
			info:      probeInfo{Vcodec: "vp9", Acodec: ""},
			wantVideo: true,
			wantAudio: false,
		},
		{
			name:      "nothing known",
			info:      probeInfo{},
			wantVideo: false,
			wantAudio: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hasVideo, hasAudio := streamKinds(&tt.info)
			if hasVideo != tt.wantVideo || hasAudio != tt.wantAudio {
				t.Errorf("streamKinds = (%v, %v), want (%v, %v)", hasVideo, hasAudio, tt.wantVideo, tt.wantAudio)
			}
		})
	}
}

func TestLastJSONLine(t *testing.T) {
	out := "[info] extracting\n{\"title\":\"Clip\"}\n"
	if got := string(lastJSONLine(out)); got != `{"title":"Clip"}` {
		t.Errorf("lastJSONLine = %q", got)
	}
	out = "no json here"
	if got := string(lastJSONLine(out)); got != "no json here" {
		t.Errorf("lastJSONLine fallback = %q", got)
	}
}
