package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hmehl/vidfetch/internal/metadata"
	"github.com/hmehl/vidfetch/internal/output"
	"github.com/hmehl/vidfetch/internal/planner"
	"github.com/hmehl/vidfetch/internal/provider/ytdlp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	var probeFormat string
	var probeResolution string

	cmd := &cobra.Command{
		Use:   "probe [URL]",
		Short: "Show title, size and stream kinds without downloading",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			prov, err := ytdlp.New()
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to set up downloader: %v", err))
				os.Exit(1)
			}
			kind := planner.ParseKind(probeFormat)
			bundle := planner.Resolve(kind, probeResolution, "192", planner.Tuning{})
			res, usedFallback, err := metadata.Probe(context.Background(), prov, args[0], bundle)
			if err != nil {
				output.PrintError(fmt.Sprintf("Probe failed: %v", err))
				os.Exit(1)
			}
			if usedFallback {
				log.Debug().Str("op", "cmd/probe").Msg("Metadata resolved with fallback headers")
			}
			output.PrintHeader(res.Title)
			output.PrintInfo(fmt.Sprintf("Size: %s", res.SizeLabel))
			output.PrintInfo(fmt.Sprintf("Container: %s", res.Ext))
			output.PrintInfo(fmt.Sprintf("Video streams: %v", res.HasVideo))
			output.PrintInfo(fmt.Sprintf("Audio streams: %v", res.HasAudio))
			if res.Thumbnail != nil {
				output.PrintInfo(fmt.Sprintf("Thumbnail: %d bytes", len(res.Thumbnail)))
			}
		},
	}

	cmd.Flags().StringVarP(&probeFormat, "format", "f", "mp4", "Output format the probe plans for")
	cmd.Flags().StringVarP(&probeResolution, "resolution", "r", planner.QualityBest, "Video quality ceiling")
	return cmd
}
