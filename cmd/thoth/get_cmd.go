package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/thoth-viewer/thoth/internal/match"
	"github.com/thoth-viewer/thoth/internal/query"
	"github.com/thoth-viewer/thoth/internal/store"
)

func getCmd(a *app) *cobra.Command {
	var (
		raw       bool
		highlight string
		matchCase bool
	)
	cmd := &cobra.Command{
		Use:   "get <file> <index>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(2),
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

			if highlight != "" {
				return a.printHighlighted(st, i, highlight, matchCase)
			}
			if raw {
				b, err := st.RawSlice(i)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(a.out, "%s\n", b)
				return err
			}

			v, err := st.Get(i)
			if err != nil {
				return err
			}
			_, err = a.out.Write(prettyJSON([]byte(v.Raw)))
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the record bytes as stored")
	cmd.Flags().StringVar(&highlight, "highlight", "", "Print the raw record with matches of this query marked")
	cmd.Flags().BoolVarP(&matchCase, "match-case", "c", false, "Case-sensitive --highlight")
	return cmd
}

// printHighlighted runs one query against record i and prints its raw bytes
// with every fragment range styled.
func (a *app) printHighlighted(st *store.Store, i int, input string, matchCase bool) error {
	q, err := query.Parse(input, matchCase || a.cfg.Search.MatchCase)
	if err != nil {
		return err
	}
	raw, err := st.RawSlice(i)
	if err != nil {
		return err
	}
	m := match.New(q, match.WithMaxFragments(a.cfg.Search.GetMaxFragments()))
	rec := match.Record{Index: i, Raw: raw}
	if m.NeedsValue() {
		v, err := st.Get(i)
		if err != nil {
			return err
		}
		rec.Value = &v
	}
	res, err := m.ScanRecord(rec)
	if err != nil {
		return err
	}
	if res == nil {
		_, err = fmt.Fprintf(a.out, "%s\n%s\n", raw, dimStyle.Render("no matches"))
		return err
	}
	_, err = fmt.Fprintf(a.out, "%s\n", highlightRaw(raw, res.Fragments))
	return err
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid record index %q", s)
	}
	return i, nil
}

// prettyJSON indents b, colouring it when the output supports colour.
func prettyJSON(b []byte) []byte {
	out := pretty.Pretty(b)
	if lipgloss.ColorProfile() != termenv.Ascii {
		out = pretty.Color(out, nil)
	}
	return out
}
