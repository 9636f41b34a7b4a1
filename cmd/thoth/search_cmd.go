package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/thoth-viewer/thoth/internal/match"
	"github.com/thoth-viewer/thoth/internal/scan"
	"github.com/thoth-viewer/thoth/internal/search"
	"github.com/thoth-viewer/thoth/internal/store"
	"github.com/thoth-viewer/thoth/internal/watch"
)

// maxListedPaths bounds how many fragment paths are shown under one hit.
const maxListedPaths = 4

type searchFlags struct {
	matchCase bool
	limit     int
	follow    bool
	from      int
	to        int
	jsonMode  bool
}

type fragmentJSON struct {
	Target     string `json:"target"`
	Component  string `json:"component,omitempty"`
	Path       string `json:"path,omitempty"`
	Text       string `json:"text,omitempty"`
	Start      uint32 `json:"start"`
	End        uint32 `json:"end"`
	CapApplied bool   `json:"cap_applied,omitempty"`
}

type hitJSON struct {
	Index     int            `json:"index"`
	Preview   string         `json:"preview"`
	Fragments []fragmentJSON `json:"fragments"`
}

type searchJSON struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Kind      string    `json:"kind"`
	Scanned   int       `json:"scanned"`
	Matched   int       `json:"matched"`
	Malformed int       `json:"malformed"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Hits      []hitJSON `json:"hits"`
}

func searchCmd(a *app) *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search <file> <query>",
		Short: "Search records by free text or by $-path",
		Long: "Queries starting with $ are path expressions such as $.items[*].id or\n" +
			"$.user.name = \"ada\". Anything else is matched as plain text.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd.Context(), args[0], args[1], f)
		},
	}
	fl := cmd.Flags()
	fl.BoolVarP(&f.matchCase, "match-case", "c", false, "Case-sensitive matching")
	fl.IntVarP(&f.limit, "limit", "n", 20, "Maximum hits to print (0 for all)")
	fl.BoolVarP(&f.follow, "follow", "f", false, "Re-run the search whenever the file changes")
	fl.IntVar(&f.from, "from", 0, "First record to search")
	fl.IntVar(&f.to, "to", 0, "Stop before this record (0 for end of file)")
	fl.BoolVar(&f.jsonMode, "json", false, "Output as JSON")
	return cmd
}

func (a *app) runSearch(ctx context.Context, path, input string, f searchFlags) error {
	st, _, err := a.openStore(path)
	if err != nil {
		return err
	}
	current := st
	defer func() { current.Close() }()

	cfg := a.sessionConfig(f.matchCase)
	cfg.Range = scan.Range{Start: f.from, End: f.to}
	sess := search.NewSession(st, cfg)
	defer sess.Close()

	if err := sess.Start(input); err != nil {
		return err
	}
	if err := a.waitAndPrint(ctx, sess, current, f); err != nil {
		return err
	}
	if !f.follow {
		return nil
	}

	w, err := watch.New(path, time.Duration(a.cfg.Watch.GetDebounceMS())*time.Millisecond)
	if err != nil {
		return err
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changes():
		}
		next, _, err := a.openStore(path)
		if err != nil {
			fmt.Fprintln(a.errOut, errorStyle.Render(fmt.Sprintf("reload failed: %v", err)))
			continue
		}
		sess.SetSource(next)
		current.Close()
		current = next
		if err := sess.Rerun(); err != nil {
			return err
		}
		if !f.jsonMode {
			fmt.Fprintln(a.out, dimStyle.Render(fmt.Sprintf("── %s changed, %d records ──", path, next.Len())))
		}
		if err := a.waitAndPrint(ctx, sess, current, f); err != nil {
			return err
		}
	}
}

// waitAndPrint waits for the running search, showing progress on a terminal.
func (a *app) waitAndPrint(ctx context.Context, sess *search.Session, st *store.Store, f searchFlags) error {
	snap, err := a.waitWithProgress(ctx, sess)
	if err != nil {
		return err
	}
	switch snap.State {
	case search.StateFailed:
		return snap.Err
	case search.StateCancelled:
		return context.Canceled
	}
	return a.printResults(snap, st, f)
}

func (a *app) waitWithProgress(ctx context.Context, sess *search.Session) (search.Snapshot, error) {
	if !isTerminal(a.errOut) {
		return sess.Wait(ctx)
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	type waited struct {
		snap search.Snapshot
		err  error
	}
	doneCh := make(chan waited, 1)
	go func() {
		s, err := sess.Wait(waitCtx)
		doneCh <- waited{s, err}
	}()

	for {
		select {
		case w := <-doneCh:
			fmt.Fprint(a.errOut, "\r\033[K")
			return w.snap, w.err
		case <-ticker.C:
			p := sess.Results().Progress
			fmt.Fprintf(a.errOut, "\rscanning %s/%s records, %d matched",
				humanize.Comma(int64(p.Scanned)), humanize.Comma(int64(p.Total)), p.Matched)
		}
	}
}

func (a *app) printResults(snap search.Snapshot, st *store.Store, f searchFlags) error {
	res := snap.Results
	if res == nil {
		return nil
	}
	hits := res.Hits
	if f.limit > 0 && len(hits) > f.limit {
		hits = hits[:f.limit]
	}

	if f.jsonMode {
		out := searchJSON{
			ID:        res.ID,
			Query:     snap.Query.Raw,
			Kind:      snap.Query.Kind.String(),
			Scanned:   res.Stats.Scanned,
			Matched:   res.Stats.Matched,
			Malformed: res.Stats.Malformed,
			ElapsedMS: res.Stats.Elapsed.Milliseconds(),
			Hits:      make([]hitJSON, 0, len(hits)),
		}
		for _, h := range hits {
			out.Hits = append(out.Hits, toHitJSON(h))
		}
		return newOutput(a.out, true).Print("", out)
	}

	width := terminalWidth(a.out)
	var b strings.Builder
	for _, h := range hits {
		label := fmt.Sprintf("#%-6d", h.Index)
		fmt.Fprintf(&b, "%s %s\n", indexStyle.Render(label), renderPreview(h.Preview, width-len(label)-1))
		writeFragmentPaths(&b, h.Fragments)
	}
	if len(hits) < len(res.Hits) {
		fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf("… %d more", len(res.Hits)-len(hits))))
	}
	fmt.Fprintf(&b, "%s\n", dimStyle.Render(summaryLine(res, st)))
	_, err := io.WriteString(a.out, b.String())
	return err
}

func writeFragmentPaths(w io.Writer, frags []match.Fragment) {
	seen := make(map[string]bool)
	var paths []string
	for _, fr := range frags {
		// Root highlights carry no text and add nothing to the listing.
		if fr.Path == "" || seen[fr.Path] || (fr.Component == match.ComponentEntireRow && fr.MatchedText == "") {
			continue
		}
		seen[fr.Path] = true
		paths = append(paths, fr.Path)
	}
	if len(paths) == 0 {
		return
	}
	more := ""
	if len(paths) > maxListedPaths {
		more = fmt.Sprintf(" (+%d)", len(paths)-maxListedPaths)
		paths = paths[:maxListedPaths]
	}
	fmt.Fprintf(w, "        %s %s%s\n", bulletSymbol, pathStyle.Render(strings.Join(paths, ", ")), dimStyle.Render(more))
}

func summaryLine(res *scan.Results, st *store.Store) string {
	s := res.Stats
	line := fmt.Sprintf("%s of %s records matched in %s",
		humanize.Comma(int64(s.Matched)), humanize.Comma(int64(st.Len())), s.Elapsed.Round(time.Millisecond))
	if s.Malformed > 0 {
		line += fmt.Sprintf(", %d malformed", s.Malformed)
	}
	return line
}

func toHitJSON(h scan.Hit) hitJSON {
	out := hitJSON{Index: h.Index, Preview: h.Preview.String(), Fragments: make([]fragmentJSON, 0, len(h.Fragments))}
	for _, fr := range h.Fragments {
		fj := fragmentJSON{
			Target:     fr.Target.String(),
			Path:       fr.Path,
			Text:       fr.MatchedText,
			Start:      fr.Range.Start,
			End:        fr.Range.End,
			CapApplied: fr.CapApplied,
		}
		if fr.Target == match.TargetJSONField {
			fj.Component = fr.Component.String()
		}
		out.Fragments = append(out.Fragments, fj)
	}
	return out
}
