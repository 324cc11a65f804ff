// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package m3u8

import (
	"fmt"
	"strconv"
	"strings"
)

type tagHandler func(st *parseState, value string)

// tagTable maps tag names (without the leading '#') to handlers. Tags not
// listed here are skipped.
var tagTable = []struct {
	name    string
	handler tagHandler
}{
	{"EXTINF", handleExtinf},
	{"EXT-X-BYTERANGE", handleByteRange},
	{"EXT-X-DISCONTINUITY", handleDiscontinuity},
	{"EXT-X-GAP", handleGap},
	{"EXT-X-KEY", handleKey},
	{"EXT-X-MAP", handleMap},
	{"EXT-X-PROGRAM-DATE-TIME", handleProgramDateTime},
	{"EXT-X-DATERANGE", handleDateRange},
	{"EXT-X-VERSION", handleVersion},
	{"EXT-X-TARGETDURATION", handleTargetDuration},
	{"EXT-X-MEDIA-SEQUENCE", handleMediaSequence},
	{"EXT-X-DISCONTINUITY-SEQUENCE", handleDiscontinuitySequence},
	{"EXT-X-ENDLIST", handleEndList},
	{"EXT-X-PLAYLIST-TYPE", handlePlaylistType},
	{"EXT-X-I-FRAMES-ONLY", handleIFramesOnly},
	{"EXT-X-ALLOW-CACHE", handleAllowCache},
	{"EXT-X-MEDIA", handleMedia},
	{"EXT-X-STREAM-INF", handleStreamInf},
	{"EXT-X-I-FRAME-STREAM-INF", handleIFrameStreamInf},
	{"EXT-X-SESSION-DATA", handleIgnored},
	{"EXT-X-SESSION-KEY", handleIgnored},
	{"EXT-X-INDEPENDENT-SEGMENTS", handleIndependentSegments},
	{"EXT-X-START", handleStart},
}

func lookupTag(name string) tagHandler {
	for _, t := range tagTable {
		if t.name == name {
			return t.handler
		}
	}
	return nil
}

func handleIgnored(*parseState, string) {}

// attributes parses an attribute list; a malformed list is logged and
// treated as empty.
func (st *parseState) attributes(tag, value string) AttributeList {
	attrs, err := ParseAttributes(value)
	if err != nil {
		st.warn(tag, err)
		return nil
	}
	return attrs
}

func handleExtinf(st *parseState, value string) {
	durStr, title, _ := strings.Cut(value, ",")
	d, err := strconv.ParseFloat(strings.TrimSpace(durStr), 64)
	if err != nil || d < 0 {
		if err == nil {
			err = fmt.Errorf("negative duration %v", d)
		}
		st.warn("EXTINF", err)
		d = 0
	}
	st.extinf = &extinf{duration: d, title: strings.TrimSpace(title)}
}

func handleByteRange(st *parseState, value string) {
	br, err := parseByteRange(value)
	if err != nil {
		st.warn("EXT-X-BYTERANGE", err)
		return
	}
	st.byteRange = br
}

func handleDiscontinuity(st *parseState, _ string) {
	st.discontinuity = true
	st.xmap = nil
}

func handleGap(st *parseState, _ string) {
	st.gap = true
}

func handleKey(st *parseState, value string) {
	attrs := st.attributes("EXT-X-KEY", value)
	key := &Key{
		Method:            ParseKeyMethod(attrs.String("METHOD")),
		KeyFormat:         attrs.String("KEYFORMAT"),
		KeyFormatVersions: attrs.String("KEYFORMATVERSIONS"),
	}
	if key.Method == "" {
		st.warn("EXT-X-KEY", fmt.Errorf("%w: METHOD", ErrAttributeMissing))
		return
	}
	// Non-identity KEYFORMATs (DRM systems) never replace the current key.
	if key.KeyFormat != "" && !strings.EqualFold(key.KeyFormat, "identity") {
		st.logger.Debug().Str("keyformat", key.KeyFormat).Msg("skipping key with non-identity KEYFORMAT")
		return
	}
	if uri := attrs.String("URI"); uri != "" {
		key.URI = ResolveURI(st.base, uri)
	}
	if attrs.Has("IV") {
		iv, err := attrs.Hex("IV")
		switch {
		case err != nil:
			st.warn("EXT-X-KEY", fmt.Errorf("IV: %w", err))
		case len(iv) != 16:
			st.warn("EXT-X-KEY", fmt.Errorf("IV has %d bytes, want 16", len(iv)))
		default:
			key.IV = iv
		}
	}
	if key.Encrypted() && key.URI == "" {
		st.warn("EXT-X-KEY", fmt.Errorf("%w: URI for method %s", ErrAttributeMissing, key.Method))
	}
	st.key = key
}

func handleMap(st *parseState, value string) {
	attrs := st.attributes("EXT-X-MAP", value)
	uri := attrs.String("URI")
	if uri == "" {
		st.warn("EXT-X-MAP", fmt.Errorf("%w: URI", ErrAttributeMissing))
		return
	}
	m := &Map{URI: ResolveURI(st.base, uri), Key: st.key}
	if attrs.Has("BYTERANGE") {
		br, err := parseByteRange(attrs.String("BYTERANGE"))
		if err != nil {
			st.warn("EXT-X-MAP", err)
		} else {
			m.ByteRange = br
		}
	}
	st.xmap = m
}

func handleProgramDateTime(st *parseState, value string) {
	t, err := ParseTime(value)
	if err != nil {
		st.warn("EXT-X-PROGRAM-DATE-TIME", err)
		return
	}
	st.programDate = &t
}

func handleDateRange(st *parseState, value string) {
	attrs := st.attributes("EXT-X-DATERANGE", value)
	dr := &DateRange{
		ID:        attrs.String("ID"),
		Class:     attrs.String("CLASS"),
		EndOnNext: attrs.Bool("END-ON-NEXT"),
	}
	if attrs.Has("START-DATE") {
		if t, err := ParseTime(attrs.String("START-DATE")); err == nil {
			dr.StartDate = &t
		} else {
			st.warn("EXT-X-DATERANGE", fmt.Errorf("START-DATE: %w", err))
		}
	}
	if attrs.Has("END-DATE") {
		if t, err := ParseTime(attrs.String("END-DATE")); err == nil {
			dr.EndDate = &t
		} else {
			st.warn("EXT-X-DATERANGE", fmt.Errorf("END-DATE: %w", err))
		}
	}
	if attrs.Has("DURATION") {
		if d, err := attrs.Float("DURATION"); err == nil {
			dr.Duration = &d
		} else {
			st.warn("EXT-X-DATERANGE", err)
		}
	}
	if attrs.Has("PLANNED-DURATION") {
		if d, err := attrs.Float("PLANNED-DURATION"); err == nil {
			dr.PlannedDuration = &d
		} else {
			st.warn("EXT-X-DATERANGE", err)
		}
	}
	for _, a := range attrs {
		if strings.HasPrefix(a.Name, "X-") {
			dr.XAttributes = append(dr.XAttributes, a)
		}
	}
	st.pl.DateRanges = append(st.pl.DateRanges, dr)
}

func handleVersion(st *parseState, value string) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		st.warn("EXT-X-VERSION", err)
		return
	}
	st.pl.Version = v
}

func handleTargetDuration(st *parseState, value string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v < 0 {
		st.warn("EXT-X-TARGETDURATION", fmt.Errorf("invalid value %q", value))
		return
	}
	st.pl.TargetDuration = v
}

func handleMediaSequence(st *parseState, value string) {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		st.warn("EXT-X-MEDIA-SEQUENCE", err)
		return
	}
	st.pl.MediaSequence = v
}

func handleDiscontinuitySequence(st *parseState, value string) {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		st.warn("EXT-X-DISCONTINUITY-SEQUENCE", err)
		return
	}
	st.pl.DiscontinuitySequence = v
}

func handleEndList(st *parseState, _ string) {
	st.pl.EndList = true
}

func handlePlaylistType(st *parseState, value string) {
	st.pl.Type = ParsePlaylistType(value)
}

func handleIFramesOnly(st *parseState, _ string) {
	st.pl.IFramesOnly = true
}

func handleIndependentSegments(st *parseState, _ string) {
	st.pl.IndependentSegments = true
}

func handleAllowCache(st *parseState, value string) {
	v := strings.EqualFold(strings.TrimSpace(value), "YES")
	st.pl.AllowCache = &v
}

func handleStart(st *parseState, value string) {
	attrs := st.attributes("EXT-X-START", value)
	offset, err := attrs.Float("TIME-OFFSET")
	if err != nil {
		st.warn("EXT-X-START", err)
		return
	}
	st.pl.Start = &Start{TimeOffset: offset, Precise: attrs.Bool("PRECISE")}
}

func handleMedia(st *parseState, value string) {
	attrs := st.attributes("EXT-X-MEDIA", value)
	r := &Rendition{
		Type:            ParseMediaType(attrs.String("TYPE")),
		GroupID:         attrs.String("GROUP-ID"),
		Name:            attrs.String("NAME"),
		Language:        NormalizeLanguage(attrs.String("LANGUAGE")),
		AssocLanguage:   NormalizeLanguage(attrs.String("ASSOC-LANGUAGE")),
		Default:         attrs.Bool("DEFAULT"),
		Autoselect:      attrs.Bool("AUTOSELECT"),
		Forced:          attrs.Bool("FORCED"),
		Characteristics: attrs.String("CHARACTERISTICS"),
		Channels:        attrs.String("CHANNELS"),
	}
	if uri := attrs.String("URI"); uri != "" {
		r.URI = ResolveURI(st.base, uri)
	}
	st.pl.Media = append(st.pl.Media, r)
}

func handleStreamInf(st *parseState, value string) {
	info := parseStreamInfo(st, "EXT-X-STREAM-INF", value)
	st.streamInf = &Variant{StreamInfo: info}
}

func handleIFrameStreamInf(st *parseState, value string) {
	info := parseStreamInfo(st, "EXT-X-I-FRAME-STREAM-INF", value)
	attrs, _ := ParseAttributes(value)
	uri := attrs.String("URI")
	if uri == "" {
		st.warn("EXT-X-I-FRAME-STREAM-INF", fmt.Errorf("%w: URI", ErrAttributeMissing))
		return
	}
	st.pl.Variants = append(st.pl.Variants, &Variant{
		URI:        ResolveURI(st.base, uri),
		IFrame:     true,
		StreamInfo: info,
	})
}

func parseStreamInfo(st *parseState, tag, value string) StreamInfo {
	attrs := st.attributes(tag, value)
	info := StreamInfo{
		Audio:          attrs.String("AUDIO"),
		Video:          attrs.String("VIDEO"),
		Subtitles:      attrs.String("SUBTITLES"),
		ClosedCaptions: attrs.String("CLOSED-CAPTIONS"),
		Name:           attrs.String("NAME"),
	}
	if strings.EqualFold(info.ClosedCaptions, "NONE") {
		if a, _ := attrs.Get("CLOSED-CAPTIONS"); !a.Quoted {
			info.ClosedCaptions = ""
		}
	}

	if bw, err := attrs.Int("BANDWIDTH"); err == nil {
		info.Bandwidth = RoundBandwidth(bw)
	} else {
		st.warn(tag, err)
	}
	if attrs.Has("AVERAGE-BANDWIDTH") {
		if bw, err := attrs.Int("AVERAGE-BANDWIDTH"); err == nil {
			info.AverageBandwidth = bw
		} else {
			st.warn(tag, err)
		}
	}
	if attrs.Has("PROGRAM-ID") {
		if id, err := attrs.Int("PROGRAM-ID"); err == nil {
			pid := int(id)
			info.ProgramID = &pid
		} else {
			st.warn(tag, err)
		}
	}
	if codecs := attrs.String("CODECS"); codecs != "" {
		for _, c := range strings.Split(codecs, ",") {
			if c = strings.TrimSpace(c); c != "" {
				info.Codecs = append(info.Codecs, c)
			}
		}
	}
	if attrs.Has("RESOLUTION") {
		if res, err := attrs.Resolution("RESOLUTION"); err == nil {
			info.Resolution = res
		} else {
			st.warn(tag, err)
		}
	}
	if attrs.Has("FRAME-RATE") {
		if fr, err := attrs.Float("FRAME-RATE"); err == nil {
			info.FrameRate = fr
		} else {
			st.warn(tag, err)
		}
	}
	return info
}
