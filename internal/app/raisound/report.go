package raisound

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"raisound/internal/app/raisound/podcast"
)

// RenderReport formats per episode results as table with a summary footer
func RenderReport(report *podcast.Report, pretty bool) string {
	tw := table.NewWriter()
	if pretty {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	tw.AppendHeader(table.Row{"#", "Title", "Status", "Source", "Size", "Length", "File / Error"})
	for _, res := range report.Results {
		size, length, detail := "", "", ""
		if res.Path != "" {
			detail = filepath.Base(res.Path)
		}
		if res.Size > 0 {
			size = humanize.Bytes(uint64(res.Size))
		}
		if res.Duration > 0 {
			length = res.Duration.Round(time.Second).String()
		}
		if res.Err != nil {
			detail = res.Err.Error()
		}
		tw.AppendRow(table.Row{
			strconv.Itoa(res.Episode.Ordinal), res.Episode.Title, res.Status.String(), string(res.Origin), size, length, detail,
		})
	}

	succeeded, skipped, failed := report.Counts()
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d succeeded, %d skipped, %d failed", succeeded, skipped, failed)})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, WidthMax: 60},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, WidthMax: 80},
	})
	return tw.Render()
}
