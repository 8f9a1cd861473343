// Package provider defines the contract against the external
// extraction/download tool. The engine never talks to yt-dlp (or any
// replacement) directly; it hands a resolved option bundle to a Provider
// and consumes metadata and progress events.
package provider

import (
	"context"
	"errors"
	"strings"
)

// ErrAborted is returned by a progress callback to make the provider
// abandon the running transfer. Providers must stop the underlying
// transfer promptly and surface an error wrapping ErrAborted.
var ErrAborted = errors.New("transfer aborted by caller")

// ProgressStatus discriminates progress events.
type ProgressStatus string

const (
	StatusDownloading ProgressStatus = "downloading"
	StatusFinished    ProgressStatus = "finished"
)

// ProgressEvent carries one progress callback invocation. Total is 0 when
// the provider does not know the payload size.
type ProgressEvent struct {
	Status     ProgressStatus
	Downloaded int64
	Total      int64
}

// ProgressFunc is invoked repeatedly during a transfer. A non-nil return
// value aborts the transfer; the provider propagates the returned error.
type ProgressFunc func(ev ProgressEvent) error

// AudioExtract instructs the provider to re-encode the downloaded stream
// to an audio-only file after transfer.
type AudioExtract struct {
	Codec       string // target codec, e.g. "mp3"
	BitrateKbps string // preferred quality, e.g. "192"
}

// OptionBundle is the full set of knobs a Provider understands. It is
// built once per task by the planner and never mutated afterwards except
// for the header swap on an authorization retry.
type OptionBundle struct {
	FormatSelector      string
	MergeContainer      string        // empty when no merge step applies
	CopyCodecs          bool          // merge by stream copy, no re-encode
	PostProcess         *AudioExtract // nil unless extracting audio
	ConcurrentFragments int
	HTTPChunkSize       int64
	Headers             map[string]string // custom header set, nil for defaults
	OutputPath          string            // final output path, set at plan time
	NoPlaylist          bool
}

// Metadata is the result of a no-transfer probe.
type Metadata struct {
	Title        string
	ThumbnailURL string
	FileSize     int64 // 0 when unknown
	Ext          string
	HasVideo     bool
	HasAudio     bool
}

// Provider is the black-box extraction/download capability.
type Provider interface {
	// Probe fetches metadata without transferring the payload.
	Probe(ctx context.Context, url string, opts OptionBundle) (*Metadata, error)
	// Transfer performs the download, invoking onProgress as bytes arrive.
	Transfer(ctx context.Context, url string, opts OptionBundle, onProgress ProgressFunc) error
}

// FallbackHeaders is the alternate header set used to retry after an
// authorization denial: a generic user agent plus an origin/referer pair
// identifying the embedding player.
func FallbackHeaders() map[string]string {
	return map[string]string{
		"User-Agent": "Mozilla/5.0",
		"Origin":     "https://player.videasy.net",
		"Referer":    "https://player.videasy.net/",
	}
}

// IsAuthDenied reports whether err looks like an authorization failure
// from the provider. Matching is on the error text because providers
// surface upstream HTTP failures as opaque messages.
func IsAuthDenied(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "403") || strings.Contains(msg, "forbidden")
}
