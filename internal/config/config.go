// Package config persists the transfer tuning settings. On first run the
// tuning is derived from a one-time network probe; afterwards the saved
// values are used unchanged.
package config

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/hmehl/vidfetch/internal/httputil"
	"github.com/hmehl/vidfetch/internal/planner"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// speedTestURL serves a small static payload used to estimate bandwidth.
const speedTestURL = "https://ipv4.download.thinkbroadband.com/1MB.zip"

const speedTestTimeout = 10 * time.Second

// Settings is the persisted configuration mapping. Keys match the legacy
// config file so existing installs keep their tuning.
type Settings struct {
	ConcurrentFragmentDownloads int    `yaml:"concurrent_fragment_downloads"`
	HTTPChunkSize               int64  `yaml:"http_chunk_size"`
	DownloadFolder              string `yaml:"download_folder"`
}

// Tuning converts the settings into the immutable snapshot handed to each
// task at submission time.
func (s *Settings) Tuning() planner.Tuning {
	return planner.Tuning{
		ConcurrentFragments: s.ConcurrentFragmentDownloads,
		HTTPChunkSize:       s.HTTPChunkSize,
	}
}

// Path returns the settings file location under the XDG config dir.
func Path() (string, error) {
	return xdg.ConfigFile(filepath.Join("vidfetch", "config.yaml"))
}

// LoadOrCreate reads the settings file, creating it with probed tuning on
// first run. A failed probe degrades to the most conservative tuning.
func LoadOrCreate() (*Settings, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("error resolving config path: %v", err)
	}
	if data, err := os.ReadFile(path); err == nil {
		var s Settings
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
		applyDefaults(&s)
		return &s, nil
	}

	s := probeDefaults()
	if err := Save(s); err != nil {
		log.Debug().Str("op", "config/create").Err(err).Msg("Could not persist settings")
	}
	return s, nil
}

// Save writes the settings file.
func Save(s *Settings) error {
	path, err := Path()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func applyDefaults(s *Settings) {
	if s.ConcurrentFragmentDownloads <= 0 {
		s.ConcurrentFragmentDownloads = planner.DefaultConcurrentFragments
	}
	if s.HTTPChunkSize <= 0 {
		s.HTTPChunkSize = planner.DefaultHTTPChunkSize
	}
	if s.DownloadFolder == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.DownloadFolder = home
		}
	}
}

// probeDefaults measures download speed once and buckets the tuning:
// fast links get more fragments and larger chunks.
func probeDefaults() *Settings {
	speed := measureSpeed()
	s := &Settings{}
	switch {
	case speed >= 5:
		s.ConcurrentFragmentDownloads = 10
		s.HTTPChunkSize = 4 * 1024 * 1024
	case speed >= 2:
		s.ConcurrentFragmentDownloads = 5
		s.HTTPChunkSize = 2 * 1024 * 1024
	default:
		s.ConcurrentFragmentDownloads = 3
		s.HTTPChunkSize = 1 * 1024 * 1024
	}
	applyDefaults(s)
	log.Info().Str("op", "config/probe").
		Str("speed", humanize.Bytes(uint64(speed*1024*1024))+"/s").
		Int("fragments", s.ConcurrentFragmentDownloads).
		Msg("Derived tuning from network probe")
	return s
}

// measureSpeed downloads up to 1 MiB from the test URL and returns the
// rate in MiB/s, or 1.0 when the probe fails.
func measureSpeed() float64 {
	client := httputil.NewClient(httputil.ClientConfig{Timeout: speedTestTimeout})
	req, err := http.NewRequest(http.MethodGet, speedTestURL, nil)
	if err != nil {
		return 1.0
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 1.0
	}
	defer resp.Body.Close()
	n, _ := io.CopyN(io.Discard, resp.Body, 1024*1024)
	duration := time.Since(start).Seconds()
	if duration <= 0 {
		duration = 0.1
	}
	return float64(n) / 1024 / 1024 / duration
}
