package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/thoth-viewer/thoth/internal/query"
)

func pathsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "paths <file> <index> [partial]",
		Short: "List field paths of a record, ranked against a partial path",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			st, _, err := a.openStore(args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			v, err := st.Get(i)
			if err != nil {
				return err
			}

			var paths []string
			if len(args) == 3 {
				paths = query.SuggestPaths(v, args[2], limit)
			} else {
				paths = query.Paths(v, limit)
			}

			var b strings.Builder
			for _, p := range paths {
				b.WriteString(pathStyle.Render(p))
				b.WriteByte('\n')
			}
			_, err = a.out.Write([]byte(b.String()))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of paths (0 for all)")
	return cmd
}
