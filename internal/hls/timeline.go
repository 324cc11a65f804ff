// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"fmt"
	"time"

	"github.com/ManuGH/streamgrab/internal/m3u8"
)

// Timeline is the timing metadata derived from a media playlist.
type Timeline struct {
	Segments        int
	HasPDT          bool
	FirstPDT        time.Time
	LastPDT         time.Time
	LastDuration    time.Duration
	TotalDuration   time.Duration
	Discontinuities int
	IsVOD           bool // #EXT-X-PLAYLIST-TYPE:VOD or #EXT-X-ENDLIST
}

// ExtractTimeline summarizes a media playlist. It rejects:
// 1. PDT jumping backwards without a discontinuity between the two segments
// 2. Live playlists where only some segments carry a PDT
func ExtractTimeline(pl *m3u8.Playlist) (*Timeline, error) {
	if pl.IsMaster {
		return nil, fmt.Errorf("timeline of a master playlist")
	}
	tl := &Timeline{
		Segments: len(pl.Segments),
		IsVOD:    pl.EndList || pl.Type == m3u8.PlaylistTypeVOD,
	}

	var (
		lastPDT         time.Time
		segmentsWithPDT int
	)
	for _, seg := range pl.Segments {
		d := time.Duration(seg.Duration * float64(time.Second))
		tl.TotalDuration += d
		tl.LastDuration = d
		if seg.Discontinuity {
			tl.Discontinuities++
			lastPDT = time.Time{}
		}
		if seg.ProgramDateTime == nil {
			continue
		}
		t := *seg.ProgramDateTime
		if !lastPDT.IsZero() && t.Before(lastPDT) {
			return nil, fmt.Errorf("PDT non-monotonic at sequence %d: %v < %v", seg.Sequence, t, lastPDT)
		}
		lastPDT = t
		segmentsWithPDT++
		if tl.FirstPDT.IsZero() {
			tl.FirstPDT = t
		}
		tl.LastPDT = t
	}
	tl.HasPDT = segmentsWithPDT > 0

	if !tl.IsVOD && tl.HasPDT && segmentsWithPDT != len(pl.Segments) {
		return nil, fmt.Errorf("partial PDT coverage in live playlist (found %d/%d)", segmentsWithPDT, len(pl.Segments))
	}
	return tl, nil
}
