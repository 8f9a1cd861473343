package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hmehl/vidfetch/internal/config"
	"github.com/hmehl/vidfetch/internal/logging"
	"github.com/hmehl/vidfetch/internal/output"
	"github.com/hmehl/vidfetch/internal/planner"
	"github.com/hmehl/vidfetch/internal/provider/ytdlp"
	"github.com/hmehl/vidfetch/internal/task"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	format       string
	resolution   string
	bitrate      string
	filename     string
	targetFolder string
	debug        bool
)

var VidfetchVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "vidfetch [URLs...]",
	Short:   "Vidfetch downloads video and audio from streaming sites",
	Version: VidfetchVersion,
	Args:    cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(debug)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			output.PrintError("No URL provided")
			os.Exit(1)
		}
		if filename != "" && len(args) > 1 {
			output.PrintError("Cannot use --filename with multiple URLs")
			os.Exit(1)
		}
		settings, err := config.LoadOrCreate()
		if err != nil {
			output.PrintError(fmt.Sprintf("Failed to load configuration: %v", err))
			os.Exit(1)
		}
		folder := targetFolder
		if folder == "" {
			folder = settings.DownloadFolder
		}
		prov, err := ytdlp.New()
		if err != nil {
			output.PrintError(fmt.Sprintf("Failed to set up downloader: %v", err))
			os.Exit(1)
		}
		kind := planner.ParseKind(format)

		manager := output.NewManager()
		registry := task.NewRegistry(prov, task.RegistryEvents{
			TitleResolved: manager.SetTitle,
			SizeResolved:  manager.SetSize,
			Progress:      manager.SetProgress,
			Finished:      manager.Complete,
			Failed:        manager.ReportError,
			Cancelled:     manager.ReportCancelled,
		})

		ctx := context.Background()
		submitted := 0
		for _, url := range args {
			req := task.Request{
				URL:            url,
				TargetFolder:   folder,
				Kind:           kind,
				VideoQuality:   resolution,
				AudioBitrate:   bitrate,
				ForcedBaseName: filename,
				Tuning:         settings.Tuning(),
			}
			id, err := registry.Submit(ctx, req)
			if err != nil {
				output.PrintError(fmt.Sprintf("Rejected %s: %v", url, err))
				continue
			}
			manager.Register(id, url)
			submitted++
		}
		if submitted == 0 {
			os.Exit(1)
		}
		log.Debug().Str("op", "cmd/root").Msgf("Started %d downloads", submitted)

		manager.StartDisplay()
		registry.Wait()
		manager.StopDisplay()
		manager.ShowSummary()

		for _, snap := range registry.Snapshots() {
			if snap.Phase == task.PhaseErrored {
				os.Exit(1)
			}
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().StringVarP(&format, "format", "f", "mp4", "Output format (mp4, mp4-video, mp3, avi, mkv)")
	rootCmd.Flags().StringVarP(&resolution, "resolution", "r", planner.QualityBest, "Video quality ceiling (best, 1080, 720, 480, 360)")
	rootCmd.Flags().StringVarP(&bitrate, "bitrate", "b", "192", "Audio bitrate in kbps for mp3 output (320, 256, 192, 128)")
	rootCmd.Flags().StringVarP(&filename, "filename", "n", "", "File name stem to use instead of the resolved title")
	rootCmd.Flags().StringVarP(&targetFolder, "folder", "o", "", "Download folder (defaults to the configured one)")

	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newDoctorCmd())
}
