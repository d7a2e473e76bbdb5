package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/agnosto/autoposter/core"
	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
	headColor = color.New(color.FgCyan, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

func success(w io.Writer, format string, args ...any) {
	okColor.Fprintf(w, format+"\n", args...)
}

func warn(w io.Writer, format string, args ...any) {
	warnColor.Fprintf(w, format+"\n", args...)
}

func failure(w io.Writer, format string, args ...any) {
	failColor.Fprintf(w, format+"\n", args...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headColor.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...string) {
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func printPosts(w io.Writer, list []core.Post) {
	if len(list) == 0 {
		warn(w, "No posts.")
		return
	}
	tw := newTable(w, "ID", "STATUS", "TYPE", "SCHEDULED", "TEXT")
	for _, p := range list {
		row(tw, p.ID, string(p.Status), string(p.ContentType), formatTime(p.ScheduledTime), truncate(p.Content.Text, 48))
	}
	tw.Flush()
}

func printSchedules(w io.Writer, list []core.Schedule) {
	if len(list) == 0 {
		warn(w, "No schedules.")
		return
	}
	tw := newTable(w, "ID", "POST", "SCHEDULED", "RECURRENCE", "STATUS", "DETAIL")
	for _, s := range list {
		scheduled := s.ScheduledTime
		detail := s.ErrorMessage
		if s.ExecutedAt != nil {
			detail = "executed " + formatTime(s.ExecutedAt)
		}
		row(tw, s.ID, s.PostID, formatTime(&scheduled), string(s.Recurrence), statusText(s.Status), truncate(detail, 48))
	}
	tw.Flush()
}

func statusText(st core.ScheduleStatus) string {
	switch st {
	case core.ScheduleStatusExecuted:
		return okColor.Sprint(st)
	case core.ScheduleStatusFailed:
		return failColor.Sprint(st)
	case core.ScheduleStatusPending:
		return warnColor.Sprint(st)
	}
	return dimColor.Sprint(st)
}

func printStatistics(w io.Writer, st core.Statistics) {
	tw := newTable(w, "METRIC", "VALUE")
	row(tw, "total", fmt.Sprint(st.Total))
	row(tw, "pending", fmt.Sprint(st.Pending))
	row(tw, "executed", fmt.Sprint(st.Executed))
	row(tw, "failed", fmt.Sprint(st.Failed))
	row(tw, "cancelled", fmt.Sprint(st.Cancelled))
	row(tw, "today", fmt.Sprint(st.Today))
	row(tw, "success rate", fmt.Sprintf("%.1f%%", st.SuccessRate))
	tw.Flush()
}
