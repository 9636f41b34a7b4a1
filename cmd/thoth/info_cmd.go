package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type infoJSON struct {
	Path      string `json:"path"`
	Shape     string `json:"shape"`
	Records   int    `json:"records"`
	SizeBytes int64  `json:"size_bytes"`
	IndexMS   int64  `json:"index_ms"`
}

func infoCmd(a *app) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Show shape, record count and size of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, took, err := a.openStore(args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			size := st.Index().Size()
			var b strings.Builder
			fmt.Fprintf(&b, "%s\n", headerStyle.Render(st.Path()))
			fmt.Fprintf(&b, "  Shape:    %s\n", st.Shape())
			fmt.Fprintf(&b, "  Records:  %s\n", humanize.Comma(int64(st.Len())))
			fmt.Fprintf(&b, "  Size:     %s\n", humanize.IBytes(uint64(size)))
			fmt.Fprintf(&b, "  Indexed:  %s\n", took.Round(100*time.Microsecond))

			return newOutput(a.out, jsonMode).Print(b.String(), infoJSON{
				Path:      st.Path(),
				Shape:     st.Shape().String(),
				Records:   st.Len(),
				SizeBytes: size,
				IndexMS:   took.Milliseconds(),
			})
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}
