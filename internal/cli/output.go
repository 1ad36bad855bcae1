package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/service"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
)

// render writes v as indented JSON, or calls text with a tab-aligned writer.
func (a *App) render(format string, v any, text func(w io.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(a.Streams.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatText, "":
		tw := tabwriter.NewWriter(a.Streams.Out, 0, 4, 2, ' ', 0)
		text(tw)
		return tw.Flush()
	default:
		return usageErrorf("unknown format %q", format)
	}
}

// warnFailed names the sections of a concurrent load that failed. The other
// sections are still shown.
func (a *App) warnFailed(errs service.BranchErrors) {
	if len(errs) == 0 {
		return
	}
	names := failedNames(errs)
	fmt.Fprintf(a.Streams.Err, "warning: could not load %s\n", strings.Join(names, ", "))
	a.Logger.Debug("partial load", "error", errs.Err())
}

func failedNames(errs service.BranchErrors) []string {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatMoney(minor int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, strings.ToUpper(currency))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printStats(w io.Writer, s metrics.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE")
	keys := make([]string, 0, len(s.Requests))
	for k := range s.Requests {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "requests %s\t%d\n", k, s.Requests[k])
	}
	if s.RequestDurationCount > 0 {
		avg := time.Duration(s.RequestDurationTotalNs / int64(s.RequestDurationCount))
		fmt.Fprintf(tw, "request avg\t%s\n", avg.Round(time.Millisecond))
	}
	fmt.Fprintf(tw, "unauthorized broadcasts\t%d\n", s.UnauthorizedBroadcasts)
	fmt.Fprintf(tw, "catalog cache hits\t%d\n", s.CatalogCacheHits)
	fmt.Fprintf(tw, "catalog cache misses\t%d\n", s.CatalogCacheMisses)
	for status, n := range s.CaptureFrames {
		fmt.Fprintf(tw, "capture %s\t%d\n", status, n)
	}
	_ = tw.Flush()
}
