package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/hmehl/vidfetch/internal/provider"
)

type scriptedProvider struct {
	errs  []error
	meta  *provider.Metadata
	calls []provider.OptionBundle
}

func (p *scriptedProvider) Probe(ctx context.Context, url string, opts provider.OptionBundle) (*provider.Metadata, error) {
	p.calls = append(p.calls, opts)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	meta := p.meta
	if meta == nil {
		meta = &provider.Metadata{Title: "Sample", FileSize: 2048, Ext: "mp4", HasVideo: true, HasAudio: true}
	}
	return meta, nil
}

func (p *scriptedProvider) Transfer(ctx context.Context, url string, opts provider.OptionBundle, onProgress provider.ProgressFunc) error {
	return errors.New("not implemented")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "Unknown"},
		{-5, "Unknown"},
		{1, "1.00 B"},
		{500, "500.00 B"},
		{1023, "1023.00 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{2 * 1024 * 1024 * 1024, "2.00 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3.00 TB"},
		{5000 * 1024 * 1024 * 1024 * 1024, "5000.00 TB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestProbeSuccess(t *testing.T) {
	p := &scriptedProvider{}
	res, usedFallback, err := Probe(context.Background(), p, "https://example.com/v", provider.OptionBundle{})
	if err != nil {
		t.Fatal(err)
	}
	if usedFallback {
		t.Error("fallback should not fire on success")
	}
	if res.Title != "Sample" {
		t.Errorf("title = %q, want Sample", res.Title)
	}
	if res.SizeLabel != "2.00 KB" {
		t.Errorf("size label = %q, want 2.00 KB", res.SizeLabel)
	}
	if len(p.calls) != 1 {
		t.Errorf("probe called %d times, want 1", len(p.calls))
	}
}

func TestProbeRetriesWithFallbackHeaders(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("yt-dlp probe failed: HTTP Error 403: Forbidden")}}
	res, usedFallback, err := Probe(context.Background(), p, "https://example.com/v", provider.OptionBundle{})
	if err != nil {
		t.Fatal(err)
	}
	if !usedFallback {
		t.Error("fallback retry should be reported")
	}
	if res == nil || res.Title != "Sample" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(p.calls) != 2 {
		t.Fatalf("probe called %d times, want 2", len(p.calls))
	}
	if p.calls[0].Headers != nil {
		t.Errorf("first attempt should use original headers, got %v", p.calls[0].Headers)
	}
	retry := p.calls[1].Headers
	if retry["User-Agent"] != "Mozilla/5.0" {
		t.Errorf("retry User-Agent = %q", retry["User-Agent"])
	}
	if retry["Origin"] != "https://player.videasy.net" {
		t.Errorf("retry Origin = %q", retry["Origin"])
	}
	if retry["Referer"] != "https://player.videasy.net/" {
		t.Errorf("retry Referer = %q", retry["Referer"])
	}
}

func TestProbeNonAuthErrorNoRetry(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("yt-dlp probe failed: network unreachable")}}
	_, usedFallback, err := Probe(context.Background(), p, "https://example.com/v", provider.OptionBundle{})
	if err == nil {
		t.Fatal("expected error")
	}
	if usedFallback {
		t.Error("fallback should not fire for non-auth errors")
	}
	if len(p.calls) != 1 {
		t.Errorf("probe called %d times, want 1", len(p.calls))
	}
}

func TestProbeFallbackAlsoDenied(t *testing.T) {
	p := &scriptedProvider{errs: []error{
		errors.New("HTTP Error 403: Forbidden"),
		errors.New("HTTP Error 403: Forbidden"),
	}}
	_, usedFallback, err := Probe(context.Background(), p, "https://example.com/v", provider.OptionBundle{})
	if err == nil {
		t.Fatal("expected error after exhausted retry")
	}
	if usedFallback {
		t.Error("failed retry should not report fallback use")
	}
	if len(p.calls) != 2 {
		t.Errorf("probe called %d times, want 2", len(p.calls))
	}
}
