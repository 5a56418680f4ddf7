package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"vidsqueeze/internal/model"
	"vidsqueeze/internal/source"
	"vidsqueeze/internal/util/format"
)

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "probe <file>",
		Short:         "Show the size, bitrate and packet count of a video",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			src, err := source.Open(args[0])
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			a, err := newApp(configFrom(cmd), appOptions{plain: true, probeOnly: true})
			if err != nil {
				return exitFor(err)
			}
			defer a.Close()

			stats, err := a.ctrl.Probe(cmd.Context(), src)
			if err != nil {
				return exitFor(err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			renderStats(cmd.OutOrStdout(), src.Path(), stats)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the probed streams as JSON")
	return cmd
}

func renderStats(w io.Writer, path string, stats []model.VideoStats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(path)
	tw.AppendHeader(table.Row{"Stream", "Resolution", "Bitrate", "Packets"})
	for i, s := range stats {
		tw.AppendRow(table.Row{
			strconv.Itoa(i),
			fmt.Sprintf("%dx%d", s.Width, s.Height),
			format.HumanizeBitrate(s.BitRate),
			strconv.FormatInt(s.PacketCount, 10),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	tw.Render()
}
