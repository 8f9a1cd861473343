package ytdlp

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hmehl/vidfetch/internal/httputil"
	"github.com/rs/zerolog/log"
)

const toolDir = ".vidfetch-tools"

// EnsureYtdlp returns a usable yt-dlp path: PATH first, then a sibling of
// the running executable, then a one-time download of the latest release.
func EnsureYtdlp() (string, error) {
	if path, err := exec.LookPath("yt-dlp"); err == nil {
		return path, nil
	}
	if path := siblingTool("yt-dlp"); path != "" {
		return path, nil
	}
	return downloadYtdlp()
}

// EnsureFFmpeg returns a usable ffmpeg path. ffmpeg is not bootstrapped
// automatically; installation is left to the platform package manager.
func EnsureFFmpeg() (string, error) {
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}
	if path := siblingTool("ffmpeg"); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("ffmpeg not found in PATH, please install manually")
}

func siblingTool(name string) string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	toolPath := filepath.Join(filepath.Dir(execPath), name)
	if runtime.GOOS == "windows" {
		toolPath += ".exe"
	}
	if _, err := os.Stat(toolPath); err == nil {
		return toolPath
	}
	return ""
}

func downloadYtdlp() (string, error) {
	goos := runtime.GOOS
	goarch := runtime.GOARCH
	var filename string
	switch {
	case goos == "windows" && goarch == "amd64":
		filename = "yt-dlp.exe"
	case goos == "windows" && goarch == "arm64":
		filename = "yt-dlp_arm64.exe"
	case goos == "linux" && goarch == "amd64":
		filename = "yt-dlp_linux"
	case goos == "linux" && goarch == "arm64":
		filename = "yt-dlp_linux_aarch64"
	case goos == "darwin":
		filename = "yt-dlp_macos"
	default:
		return "", fmt.Errorf("unsupported OS/arch: %s/%s", goos, goarch)
	}

	if err := os.MkdirAll(toolDir, 0755); err != nil {
		return "", fmt.Errorf("error creating tool directory: %v", err)
	}
	downloadURL := fmt.Sprintf("https://github.com/yt-dlp/yt-dlp/releases/latest/download/%s", filename)
	filePath := filepath.Join(toolDir, "yt-dlp")
	if goos == "windows" {
		filePath += ".exe"
	}
	log.Info().Str("op", "ytdlp/tools").Msgf("Downloading yt-dlp from %s", downloadURL)
	if err := downloadFile(downloadURL, filePath); err != nil {
		return "", err
	}
	if goos != "windows" {
		if err := os.Chmod(filePath, 0755); err != nil {
			return "", fmt.Errorf("error setting permissions: %v", err)
		}
	}
	return filePath, nil
}

func downloadFile(url, path string) error {
	client := httputil.NewClient(httputil.ClientConfig{Timeout: 3 * time.Minute})
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}
