package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"watchlater/curate"
)

// renderVideos prints videos in insertion order with publish times in loc.
func renderVideos(w io.Writer, videos []curate.VideoRecord, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"#", "Published", "Channel", "Title", "Video"})
	for i, v := range videos {
		tbl.AppendRow(table.Row{
			i + 1,
			v.Published.In(loc).Format("2006-01-02 15:04"),
			fmt.Sprintf("%.20s", v.ChannelTitle),
			fmt.Sprintf("%.50s", v.Title),
			v.VideoID,
		})
	}
	tbl.AppendFooter(table.Row{"", "", "", "Total", len(videos)})
	tbl.SetStyle(table.StyleLight)
	tbl.Render()
}
