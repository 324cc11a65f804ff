// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package m3u8

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Encode renders the playlist in M3U8 format. Parsing the output yields an
// equivalent playlist.
func (p *Playlist) Encode() *bytes.Buffer {
	var buf bytes.Buffer
	buf.WriteString(headerTag)
	buf.WriteByte('\n')

	if p.Version > 0 {
		fmt.Fprintf(&buf, "#EXT-X-VERSION:%d\n", p.Version)
	}
	if p.IndependentSegments {
		buf.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	}
	if p.Start != nil {
		fmt.Fprintf(&buf, "#EXT-X-START:TIME-OFFSET=%s", formatFloat(p.Start.TimeOffset))
		if p.Start.Precise {
			buf.WriteString(",PRECISE=YES")
		}
		buf.WriteByte('\n')
	}

	if p.IsMaster {
		p.encodeMaster(&buf)
	} else {
		p.encodeMedia(&buf)
	}
	return &buf
}

// WriteTo implements io.WriterTo.
func (p *Playlist) WriteTo(w io.Writer) (int64, error) {
	return p.Encode().WriteTo(w)
}

func (p *Playlist) String() string {
	return p.Encode().String()
}

func (p *Playlist) encodeMaster(buf *bytes.Buffer) {
	for _, r := range p.Media {
		buf.WriteString("#EXT-X-MEDIA:")
		a := attrWriter{buf: buf}
		a.enum("TYPE", string(r.Type))
		a.quoted("GROUP-ID", r.GroupID)
		a.quoted("NAME", r.Name)
		a.quoted("LANGUAGE", r.Language)
		a.quoted("ASSOC-LANGUAGE", r.AssocLanguage)
		a.flag("DEFAULT", r.Default)
		a.flag("AUTOSELECT", r.Autoselect)
		a.flag("FORCED", r.Forced)
		a.quoted("CHARACTERISTICS", r.Characteristics)
		a.quoted("CHANNELS", r.Channels)
		a.quoted("URI", r.URI)
		buf.WriteByte('\n')
	}
	for _, v := range p.Variants {
		if v.IFrame {
			buf.WriteString("#EXT-X-I-FRAME-STREAM-INF:")
		} else {
			buf.WriteString("#EXT-X-STREAM-INF:")
		}
		a := attrWriter{buf: buf}
		if v.ProgramID != nil {
			a.enum("PROGRAM-ID", strconv.Itoa(*v.ProgramID))
		}
		a.enum("BANDWIDTH", strconv.FormatInt(v.Bandwidth, 10))
		if v.AverageBandwidth > 0 {
			a.enum("AVERAGE-BANDWIDTH", strconv.FormatInt(v.AverageBandwidth, 10))
		}
		a.quoted("CODECS", strings.Join(v.Codecs, ","))
		if v.Resolution != nil {
			a.enum("RESOLUTION", v.Resolution.String())
		}
		if v.FrameRate > 0 {
			a.enum("FRAME-RATE", strconv.FormatFloat(v.FrameRate, 'f', 3, 64))
		}
		a.quoted("AUDIO", v.Audio)
		a.quoted("VIDEO", v.Video)
		a.quoted("SUBTITLES", v.Subtitles)
		a.quoted("CLOSED-CAPTIONS", v.ClosedCaptions)
		a.quoted("NAME", v.Name)
		if v.IFrame {
			a.quoted("URI", v.URI)
			buf.WriteByte('\n')
			continue
		}
		buf.WriteByte('\n')
		buf.WriteString(v.URI)
		buf.WriteByte('\n')
	}
}

func (p *Playlist) encodeMedia(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "#EXT-X-TARGETDURATION:%s\n", formatFloat(p.TargetDuration))
	fmt.Fprintf(buf, "#EXT-X-MEDIA-SEQUENCE:%d\n", p.MediaSequence)
	if p.DiscontinuitySequence != 0 {
		fmt.Fprintf(buf, "#EXT-X-DISCONTINUITY-SEQUENCE:%d\n", p.DiscontinuitySequence)
	}
	if p.Type != "" {
		fmt.Fprintf(buf, "#EXT-X-PLAYLIST-TYPE:%s\n", p.Type)
	}
	if p.IFramesOnly {
		buf.WriteString("#EXT-X-I-FRAMES-ONLY\n")
	}
	if p.AllowCache != nil {
		fmt.Fprintf(buf, "#EXT-X-ALLOW-CACHE:%s\n", yesNo(*p.AllowCache))
	}
	for _, dr := range p.DateRanges {
		encodeDateRange(buf, dr)
	}

	var (
		lastKey *Key
		lastMap *Map
	)
	for _, seg := range p.Segments {
		if seg.Discontinuity {
			buf.WriteString("#EXT-X-DISCONTINUITY\n")
			lastMap = nil
		}
		// A map captures the key current at its declaration, so it is
		// emitted before the segment's own key.
		if seg.Map != nil && !sameMap(seg.Map, lastMap) {
			if seg.Map.Key != nil && !sameKey(seg.Map.Key, lastKey) {
				encodeKey(buf, seg.Map.Key)
				lastKey = seg.Map.Key
			}
			buf.WriteString("#EXT-X-MAP:")
			a := attrWriter{buf: buf}
			a.quoted("URI", seg.Map.URI)
			if seg.Map.ByteRange != nil {
				a.quoted("BYTERANGE", seg.Map.ByteRange.String())
			}
			buf.WriteByte('\n')
			lastMap = seg.Map
		}
		if seg.Key != nil && !sameKey(seg.Key, lastKey) {
			encodeKey(buf, seg.Key)
			lastKey = seg.Key
		}
		if seg.ProgramDateTime != nil {
			fmt.Fprintf(buf, "#EXT-X-PROGRAM-DATE-TIME:%s\n", seg.ProgramDateTime.Format(time.RFC3339Nano))
		}
		if seg.ByteRange != nil {
			fmt.Fprintf(buf, "#EXT-X-BYTERANGE:%s\n", seg.ByteRange)
		}
		if seg.Gap {
			buf.WriteString("#EXT-X-GAP\n")
		}
		fmt.Fprintf(buf, "#EXTINF:%s,%s\n", formatFloat(seg.Duration), seg.Title)
		buf.WriteString(seg.URI)
		buf.WriteByte('\n')
	}

	if p.EndList {
		buf.WriteString("#EXT-X-ENDLIST\n")
	}
}

func encodeKey(buf *bytes.Buffer, k *Key) {
	buf.WriteString("#EXT-X-KEY:")
	a := attrWriter{buf: buf}
	a.enum("METHOD", string(k.Method))
	a.quoted("URI", k.URI)
	if len(k.IV) > 0 {
		a.enum("IV", "0x"+strings.ToUpper(hex.EncodeToString(k.IV)))
	}
	a.quoted("KEYFORMAT", k.KeyFormat)
	a.quoted("KEYFORMATVERSIONS", k.KeyFormatVersions)
	buf.WriteByte('\n')
}

func encodeDateRange(buf *bytes.Buffer, dr *DateRange) {
	buf.WriteString("#EXT-X-DATERANGE:")
	a := attrWriter{buf: buf}
	a.quoted("ID", dr.ID)
	a.quoted("CLASS", dr.Class)
	if dr.StartDate != nil {
		a.quoted("START-DATE", dr.StartDate.Format(time.RFC3339Nano))
	}
	if dr.EndDate != nil {
		a.quoted("END-DATE", dr.EndDate.Format(time.RFC3339Nano))
	}
	if dr.Duration != nil {
		a.enum("DURATION", formatFloat(*dr.Duration))
	}
	if dr.PlannedDuration != nil {
		a.enum("PLANNED-DURATION", formatFloat(*dr.PlannedDuration))
	}
	for _, x := range dr.XAttributes {
		if x.Quoted {
			a.quoted(x.Name, x.Value)
		} else {
			a.enum(x.Name, x.Value)
		}
	}
	if dr.EndOnNext {
		a.enum("END-ON-NEXT", "YES")
	}
	buf.WriteByte('\n')
}

// attrWriter emits comma separated attributes, skipping empty values.
type attrWriter struct {
	buf *bytes.Buffer
	n   int
}

func (a *attrWriter) sep() {
	if a.n > 0 {
		a.buf.WriteByte(',')
	}
	a.n++
}

func (a *attrWriter) enum(name, value string) {
	if value == "" {
		return
	}
	a.sep()
	a.buf.WriteString(name)
	a.buf.WriteByte('=')
	a.buf.WriteString(value)
}

func (a *attrWriter) quoted(name, value string) {
	if value == "" {
		return
	}
	a.sep()
	a.buf.WriteString(name)
	a.buf.WriteString(`="`)
	a.buf.WriteString(value)
	a.buf.WriteByte('"')
}

func (a *attrWriter) flag(name string, v bool) {
	if v {
		a.enum(name, "YES")
	}
}

func sameKey(a, b *Key) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Method == b.Method && a.URI == b.URI && bytes.Equal(a.IV, b.IV) &&
		a.KeyFormat == b.KeyFormat && a.KeyFormatVersions == b.KeyFormatVersions
}

func sameMap(a, b *Map) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.URI != b.URI || !sameKey(a.Key, b.Key) {
		return false
	}
	if (a.ByteRange == nil) != (b.ByteRange == nil) {
		return false
	}
	return a.ByteRange == nil || a.ByteRange.String() == b.ByteRange.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}
