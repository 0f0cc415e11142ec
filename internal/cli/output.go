package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/glabrego/selfoss-cli/internal/app"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type OutputFormat string

const (
	OutputTable OutputFormat = "table"
	OutputJSON  OutputFormat = "json"
)

var wsRegexp = regexp.MustCompile(`\s+`)

func parseOutputFormat(raw string) (OutputFormat, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch OutputFormat(s) {
	case OutputTable, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("%w: invalid output format %q (expected table|json)", ErrInvalidInput, raw)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeEntriesTable(out io.Writer, entries []selfoss.Entry, now time.Time) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFLAGS\tSOURCE\tTITLE\tAGE")
	for _, e := range entries {
		fmt.Fprintf(
			tw,
			"%d\t%s\t%s\t%s\t%s\n",
			e.ID,
			entryFlags(e),
			compactText(e.SourceTitle, 24),
			compactText(displayTitle(e), 64),
			humanize.RelTime(e.Datetime, now, "ago", "from now"),
		)
	}
	_ = tw.Flush()
}

func writeStatsTable(out io.Writer, st selfoss.Stats, cached bool) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE")
	fmt.Fprintf(tw, "total\t%s\n", humanize.Comma(int64(st.Total)))
	fmt.Fprintf(tw, "unread\t%s\n", humanize.Comma(int64(st.Unread)))
	fmt.Fprintf(tw, "starred\t%s\n", humanize.Comma(int64(st.Starred)))
	if cached {
		fmt.Fprintln(tw, "source\tcache")
	}
	_ = tw.Flush()
}

func writeSyncTable(out io.Writer, res app.SyncResult, took time.Duration) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REPLAYED\tDROPPED\tSAVED\tPRUNED\tTOOK")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\n", res.Replayed, res.Dropped, res.Saved, res.Pruned, took.Round(time.Millisecond))
	_ = tw.Flush()
}

func entryFlags(e selfoss.Entry) string {
	flags := []byte("--")
	if e.Unread {
		flags[0] = 'U'
	}
	if e.Starred {
		flags[1] = '*'
	}
	return string(flags)
}

func displayTitle(e selfoss.Entry) string {
	if strings.TrimSpace(e.Title) != "" {
		return e.Title
	}
	if strings.TrimSpace(e.Link) != "" {
		return e.Link
	}
	return "(untitled)"
}

func compactText(v string, max int) string {
	v = strings.TrimSpace(wsRegexp.ReplaceAllString(v, " "))
	r := []rune(v)
	if max <= 0 || len(r) <= max {
		return v
	}
	return string(r[:max-1]) + "…"
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid id %q", ErrInvalidInput, arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
