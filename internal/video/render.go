package video

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/occupancy-counter/internal/pipeline"
)

const (
	fontScale  = 0.6
	statsScale = 0.8
	lineWidth  = 2
)

// Draw annotates mat in place: debug door candidates first, then person
// boxes, gates and the per-room counters.
func Draw(mat *gocv.Mat, v pipeline.View) {
	for _, c := range v.Candidates {
		col := CandidateColor(c)
		gocv.Rectangle(mat, c.Box.Rect(), col, 1)
		x1, y1, _, _ := c.Box.Ints()
		gocv.PutText(mat, CandidateLabel(c), image.Pt(x1, max(12, y1-4)), gocv.FontHersheySimplex, 0.45, col, 1)
		if c.Gate != nil {
			gocv.Line(mat, image.Pt(c.Gate.X1, c.Gate.Y1), image.Pt(c.Gate.X2, c.Gate.Y2), col, 1)
		}
	}

	for _, t := range v.Tracks {
		x1, y1, x2, y2 := t.Box.Ints()
		gocv.Rectangle(mat, image.Rect(x1, y1, x2, y2), TrackColor, lineWidth)
		gocv.Circle(mat, image.Pt((x1+x2)/2, y2), 4, FootColor, -1)
		gocv.PutText(mat, TrackLabel(t.ID), image.Pt(x1, max(12, y1-6)), gocv.FontHersheySimplex, fontScale, TrackColor, lineWidth)
	}

	for _, b := range v.Boundaries {
		gocv.Line(mat, image.Pt(b.X1, b.Y1), image.Pt(b.X2, b.Y2), GateColor, max(1, b.Thickness))
	}

	if v.NoDoors {
		gocv.PutText(mat, NoDoorsMessage, image.Pt(20, statsTop), gocv.FontHersheySimplex, statsScale, WarningColor, lineWidth)
		return
	}
	for i, rs := range v.Rooms {
		gocv.PutText(mat, RoomLabel(rs), image.Pt(20, RoomLabelY(i)), gocv.FontHersheySimplex, statsScale, StatsColor, lineWidth)
	}
}
