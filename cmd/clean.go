package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/hmehl/vidfetch/internal/config"
	"github.com/hmehl/vidfetch/internal/fsutil"
	"github.com/hmehl/vidfetch/internal/output"
	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [folder]",
		Short: "Remove leftover partial files from a download folder",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			folder := ""
			if len(args) > 0 {
				folder = args[0]
			} else {
				settings, err := config.LoadOrCreate()
				if err != nil {
					output.PrintError(fmt.Sprintf("Failed to load configuration: %v", err))
					os.Exit(1)
				}
				folder = settings.DownloadFolder
			}
			removed, freed := fsutil.SweepFolder(folder)
			if removed == 0 {
				output.PrintInfo("No partial files found")
				return
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d partial files, freed %s", removed, humanize.Bytes(uint64(freed))))
		},
	}
}
