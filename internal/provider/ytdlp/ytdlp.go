// Package ytdlp implements the provider contract by shelling out to the
// yt-dlp binary, with ffmpeg as the merge/remux tool.
package ytdlp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/hmehl/vidfetch/internal/provider"
	"github.com/rs/zerolog/log"
)

// progressPrefix tags the machine-readable progress lines yt-dlp prints
// for us, so they are distinguishable from its other output.
const progressPrefix = "vidfetch-progress"

const progressTemplate = "download:" + progressPrefix +
	" %(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s"

// Downloader shells out to yt-dlp. Both binary paths are resolved once at
// construction via EnsureYtdlp/EnsureFFmpeg.
type Downloader struct {
	BinaryPath string
	FFmpegPath string
}

var _ provider.Provider = (*Downloader)(nil)

// New locates (or bootstraps) yt-dlp and locates ffmpeg.
func New() (*Downloader, error) {
	ytdlpPath, err := EnsureYtdlp()
	if err != nil {
		return nil, fmt.Errorf("error ensuring yt-dlp: %v", err)
	}
	ffmpegPath, err := EnsureFFmpeg()
	if err != nil {
		return nil, fmt.Errorf("error ensuring ffmpeg: %v", err)
	}
	return &Downloader{BinaryPath: ytdlpPath, FFmpegPath: ffmpegPath}, nil
}

// probeInfo mirrors the --dump-json fields the engine cares about.
type probeInfo struct {
	Title          string  `json:"title"`
	Thumbnail      string  `json:"thumbnail"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	Ext            string  `json:"ext"`
	Vcodec         string  `json:"vcodec"`
	Acodec         string  `json:"acodec"`
	Formats        []struct {
		Vcodec string `json:"vcodec"`
		Acodec string `json:"acodec"`
	} `json:"formats"`
}

// Probe fetches metadata without downloading the payload.
func (d *Downloader) Probe(ctx context.Context, url string, opts provider.OptionBundle) (*provider.Metadata, error) {
	cmd := exec.CommandContext(ctx, d.BinaryPath, d.ProbeArgs(url, opts)...)
	log.Debug().Str("op", "ytdlp/probe").Msgf("Executing yt-dlp command: %s", cmd.String())
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp probe failed: %v: %s", err, lastLine(stderr.String()))
	}

	var info probeInfo
	if err := json.Unmarshal(lastJSONLine(stdout.String()), &info); err != nil {
		return nil, fmt.Errorf("error parsing yt-dlp metadata: %v", err)
	}

	meta := &provider.Metadata{
		Title:        info.Title,
		ThumbnailURL: info.Thumbnail,
		FileSize:     info.Filesize,
		Ext:          info.Ext,
	}
	if meta.FileSize == 0 {
		meta.FileSize = info.FilesizeApprox
	}
	meta.HasVideo, meta.HasAudio = streamKinds(&info)
	return meta, nil
}

// Transfer runs the download, relaying progress lines to onProgress. When
// the callback returns an error the child process is killed and that
// error is returned unchanged.
func (d *Downloader) Transfer(ctx context.Context, url string, opts provider.OptionBundle, onProgress provider.ProgressFunc) error {
	args := d.TransferArgs(url, opts)
	cmd := exec.CommandContext(ctx, d.BinaryPath, args...)
	log.Debug().Str("op", "ytdlp/transfer").Msgf("Executing yt-dlp command: %s", cmd.String())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("error creating stdout pipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("error creating stderr pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting yt-dlp: %v", err)
	}

	var cbErr error
	var cbOnce sync.Once
	var wg sync.WaitGroup
	var errTail string

	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			ev, ok := parseProgressLine(scanner.Text())
			if !ok {
				continue
			}
			if onProgress == nil {
				continue
			}
			if err := onProgress(ev); err != nil {
				cbOnce.Do(func() {
					cbErr = err
					_ = cmd.Process.Kill()
				})
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				errTail = line
			}
		}
	}()

	waitErr := cmd.Wait()
	wg.Wait()
	if cbErr != nil {
		return cbErr
	}
	if waitErr != nil {
		return fmt.Errorf("yt-dlp failed: %v: %s", waitErr, errTail)
	}
	if onProgress != nil {
		if err := onProgress(provider.ProgressEvent{Status: provider.StatusFinished}); err != nil {
			return err
		}
	}
	return nil
}

// ProbeArgs builds the argument list for a metadata-only lookup. The
// format selector is deliberately not passed: an unsatisfiable selection
// would abort the dump, and the caller needs the formats list to decide
// whether to relax the selection.
func (d *Downloader) ProbeArgs(url string, opts provider.OptionBundle) []string {
	args := []string{"--dump-json", "--skip-download", "--no-warnings"}
	if opts.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	args = append(args, headerArgs(opts.Headers)...)
	return append(args, url)
}

// TransferArgs builds the yt-dlp argument list for an option bundle.
func (d *Downloader) TransferArgs(url string, opts provider.OptionBundle) []string {
	args := []string{
		"--newline",
		"--no-warnings",
		"--progress",
		"--progress-template", progressTemplate,
	}
	if opts.FormatSelector != "" {
		args = append(args, "-f", opts.FormatSelector)
	}
	if opts.MergeContainer != "" {
		args = append(args, "--merge-output-format", opts.MergeContainer)
	}
	if opts.CopyCodecs {
		args = append(args, "--postprocessor-args", "ffmpeg:-c copy")
	}
	if pp := opts.PostProcess; pp != nil {
		args = append(args, "-x", "--audio-format", pp.Codec, "--audio-quality", pp.BitrateKbps+"K")
	}
	if opts.ConcurrentFragments > 0 {
		args = append(args, "--concurrent-fragments", strconv.Itoa(opts.ConcurrentFragments))
	}
	if opts.HTTPChunkSize > 0 {
		args = append(args, "--http-chunk-size", strconv.FormatInt(opts.HTTPChunkSize, 10))
	}
	if opts.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	if d.FFmpegPath != "" {
		args = append(args, "--ffmpeg-location", d.FFmpegPath)
	}
	if opts.OutputPath != "" {
		args = append(args, "-o", opts.OutputPath)
	}
	args = append(args, headerArgs(opts.Headers)...)
	return append(args, url)
}

func headerArgs(headers map[string]string) []string {
	var args []string
	for _, key := range []string{"User-Agent", "Origin", "Referer"} {
		if v, ok := headers[key]; ok {
			args = append(args, "--add-headers", key+":"+v)
		}
	}
	for k, v := range headers {
		switch k {
		case "User-Agent", "Origin", "Referer":
			continue
		}
		args = append(args, "--add-headers", k+":"+v)
	}
	return args
}

// parseProgressLine decodes one templated progress line. Unknown totals
// are printed as "NA" by yt-dlp and map to 0.
func parseProgressLine(line string) (provider.ProgressEvent, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressPrefix+" ") {
		return provider.ProgressEvent{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(line, progressPrefix+" "))
	if len(fields) < 3 {
		return provider.ProgressEvent{}, false
	}
	ev := provider.ProgressEvent{
		Status:     provider.StatusDownloading,
		Downloaded: parseBytes(fields[0]),
		Total:      parseBytes(fields[1]),
	}
	if ev.Total == 0 {
		ev.Total = parseBytes(fields[2])
	}
	return ev, true
}

func parseBytes(s string) int64 {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(n)
}

func streamKinds(info *probeInfo) (hasVideo, hasAudio bool) {
	consider := func(vcodec, acodec string) {
		if vcodec != "" && vcodec != "none" {
			hasVideo = true
		}
		if acodec != "" && acodec != "none" {
			hasAudio = true
		}
	}
	for _, f := range info.Formats {
		consider(f.Vcodec, f.Acodec)
	}
	if len(info.Formats) == 0 {
		consider(info.Vcodec, info.Acodec)
	}
	return hasVideo, hasAudio
}

// lastJSONLine returns the last non-empty line of out; yt-dlp sometimes
// prints informational lines before the JSON document.
func lastJSONLine(out string) []byte {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") {
			return []byte(line)
		}
	}
	return []byte(strings.TrimSpace(out))
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
