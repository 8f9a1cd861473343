package cmd

import (
	"fmt"

	"github.com/hmehl/vidfetch/internal/config"
	"github.com/hmehl/vidfetch/internal/output"
	"github.com/hmehl/vidfetch/internal/provider/ytdlp"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that external tools and configuration are in place",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			output.PrintHeader("vidfetch environment check")
			if path, err := ytdlp.EnsureYtdlp(); err != nil {
				output.PrintError(fmt.Sprintf("yt-dlp: %v", err))
			} else {
				output.PrintSuccess(fmt.Sprintf("yt-dlp: %s", path))
			}
			if path, err := ytdlp.EnsureFFmpeg(); err != nil {
				output.PrintWarning(fmt.Sprintf("ffmpeg: %v", err))
			} else {
				output.PrintSuccess(fmt.Sprintf("ffmpeg: %s", path))
			}
			if path, err := config.Path(); err != nil {
				output.PrintError(fmt.Sprintf("config: %v", err))
			} else if settings, err := config.LoadOrCreate(); err != nil {
				output.PrintError(fmt.Sprintf("config at %s: %v", path, err))
			} else {
				output.PrintSuccess(fmt.Sprintf("config: %s", path))
				output.PrintInfo(fmt.Sprintf("  concurrent fragments: %d", settings.ConcurrentFragmentDownloads))
				output.PrintInfo(fmt.Sprintf("  http chunk size: %d", settings.HTTPChunkSize))
				output.PrintInfo(fmt.Sprintf("  download folder: %s", settings.DownloadFolder))
			}
		},
	}
}
