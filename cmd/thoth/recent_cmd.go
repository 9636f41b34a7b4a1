package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type recentJSON struct {
	Path      string `json:"path"`
	Shape     string `json:"shape"`
	Records   int    `json:"records"`
	SizeBytes int64  `json:"size_bytes"`
	OpenedAt  string `json:"opened_at"`
	OpenCount int    `json:"open_count"`
}

func recentCmd(a *app) *cobra.Command {
	var clearAll, jsonMode bool
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openRecent()
			if err != nil {
				return err
			}
			defer db.Close()

			if clearAll {
				if err := db.Clear(); err != nil {
					return err
				}
				return newOutput(a.out, jsonMode).Print("Recent files cleared\n", map[string]any{"success": true})
			}

			entries, err := db.List()
			if err != nil {
				return err
			}

			var b strings.Builder
			data := make([]recentJSON, 0, len(entries))
			if len(entries) == 0 {
				b.WriteString("No recent files\n")
			}
			for _, e := range entries {
				fmt.Fprintf(&b, "%s %s\n", bulletSymbol, headerStyle.Render(e.Path))
				fmt.Fprintf(&b, "    %s\n", dimStyle.Render(fmt.Sprintf("%s, %s records, %s, opened %s",
					e.Shape, humanize.Comma(int64(e.Records)), humanize.IBytes(uint64(e.Size)), humanize.Time(e.OpenedAt))))
				data = append(data, recentJSON{
					Path:      e.Path,
					Shape:     e.Shape,
					Records:   e.Records,
					SizeBytes: e.Size,
					OpenedAt:  e.OpenedAt.UTC().Format("2006-01-02T15:04:05Z"),
					OpenCount: e.OpenCount,
				})
			}
			return newOutput(a.out, jsonMode).Print(b.String(), data)
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Forget all recent files")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}
