// Package metadata performs no-transfer lookups against the provider:
// title, size label and an optional thumbnail, with a single
// fallback-header retry on authorization denial.
package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hmehl/vidfetch/internal/httputil"
	"github.com/hmehl/vidfetch/internal/provider"
	"github.com/rs/zerolog/log"
)

// SizeUnknown is the size label used when the provider reports no size.
const SizeUnknown = "Unknown"

const thumbnailTimeout = 1200 * time.Millisecond

// Result is what a probe yields for display and planning.
type Result struct {
	Title     string
	SizeLabel string
	Thumbnail []byte // nil when absent or the fetch failed
	Ext       string
	HasVideo  bool
	HasAudio  bool
}

// Probe looks up url without transferring the payload. On an error whose
// message signals an authorization denial it retries exactly once with the
// fallback header set; usedFallback reports whether that retry fired and
// succeeded. Thumbnail retrieval is best-effort and never fails the probe.
func Probe(ctx context.Context, p provider.Provider, url string, opts provider.OptionBundle) (res *Result, usedFallback bool, err error) {
	meta, err := p.Probe(ctx, url, opts)
	if err != nil {
		if !provider.IsAuthDenied(err) {
			return nil, false, err
		}
		log.Debug().Str("op", "metadata/probe").Err(err).Msg("Authorization denied, retrying with fallback headers")
		retry := opts
		retry.Headers = provider.FallbackHeaders()
		meta, err = p.Probe(ctx, url, retry)
		if err != nil {
			return nil, false, err
		}
		usedFallback = true
	}

	res = &Result{
		Title:     meta.Title,
		SizeLabel: FormatSize(meta.FileSize),
		Ext:       meta.Ext,
		HasVideo:  meta.HasVideo,
		HasAudio:  meta.HasAudio,
	}
	if meta.ThumbnailURL != "" {
		res.Thumbnail = fetchThumbnail(ctx, meta.ThumbnailURL)
	}
	return res, usedFallback, nil
}

// FormatSize renders a byte count with two decimals across B, KB, MB, GB
// and TB, dividing by 1024 until the value drops below 1024. Zero or
// negative sizes render as "Unknown" since the provider reports 0 when it
// does not know the payload size.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return SizeUnknown
	}
	size := float64(bytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f TB", size)
}

func fetchThumbnail(ctx context.Context, url string) []byte {
	client := httputil.NewClient(httputil.ClientConfig{Timeout: thumbnailTimeout})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Debug().Str("op", "metadata/thumbnail").Err(err).Msg("Thumbnail fetch failed")
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return data
}
