// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package m3u8 parses and encodes HLS playlists (RFC 8216).
//
// Parsing is line oriented and tolerant: malformed attributes are logged and
// treated as absent, unknown tags are skipped. Only a missing #EXTM3U header
// is fatal.
package m3u8

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/streamgrab/internal/log"
)

// ErrMissingHeader is returned when the first non-empty line is not #EXTM3U.
var ErrMissingHeader = errors.New("missing #EXTM3U header")

const (
	headerTag     = "#EXTM3U"
	maxLineLength = 4 << 20
)

// Option configures a parse.
type Option func(*options)

type options struct {
	baseURI string
	logger  *zerolog.Logger
}

// WithBaseURI sets the URI relative segment and variant URIs resolve against.
func WithBaseURI(uri string) Option {
	return func(o *options) { o.baseURI = uri }
}

// WithLogger overrides the component logger used for field-level warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// ParseString parses an in-memory playlist.
func ParseString(s string, opts ...Option) (*Playlist, error) {
	return Parse(strings.NewReader(s), opts...)
}

// ParseResponse parses an HTTP response body, resolving relative URIs against
// the final request URL. The caller closes the body.
func ParseResponse(resp *http.Response, opts ...Option) (*Playlist, error) {
	if resp.Request != nil && resp.Request.URL != nil {
		opts = append([]Option{WithBaseURI(resp.Request.URL.String())}, opts...)
	}
	return Parse(resp.Body, opts...)
}

// Parse reads a playlist from r.
func Parse(r io.Reader, opts ...Option) (*Playlist, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := xglog.WithComponent("m3u8")
	if o.logger != nil {
		logger = *o.logger
	}

	st := &parseState{
		pl:     &Playlist{URI: o.baseURI},
		base:   o.baseURI,
		logger: logger,
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if !st.headerOK {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" {
			continue
		}
		if !st.headerOK {
			if !strings.HasPrefix(line, headerTag) {
				return nil, ErrMissingHeader
			}
			st.headerOK = true
			continue
		}
		st.line = lineNo
		st.parseLine(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	if !st.headerOK {
		return nil, ErrMissingHeader
	}

	st.finish()
	return st.pl, nil
}

// parseState carries tag state that applies to the next URI line.
type parseState struct {
	pl       *Playlist
	base     string
	logger   zerolog.Logger
	headerOK bool
	line     int

	// pending segment attributes, cleared when a segment URI is consumed
	extinf        *extinf
	byteRange     *ByteRange
	discontinuity bool
	gap           bool
	programDate   *time.Time

	// carried across segments until replaced
	key  *Key
	xmap *Map

	streamInf *Variant
}

type extinf struct {
	duration float64
	title    string
}

func (st *parseState) parseLine(line string) {
	if !strings.HasPrefix(line, "#") {
		st.uriLine(line)
		return
	}
	if !strings.HasPrefix(line, "#EXT") {
		// comment
		return
	}
	name, value, _ := strings.Cut(line[1:], ":")
	if h := lookupTag(name); h != nil {
		h(st, value)
	}
}

func (st *parseState) uriLine(line string) {
	switch {
	case st.streamInf != nil:
		v := st.streamInf
		v.URI = ResolveURI(st.base, line)
		st.pl.Variants = append(st.pl.Variants, v)
		st.streamInf = nil
	case st.extinf != nil:
		seg := &Segment{
			URI:             ResolveURI(st.base, line),
			Duration:        st.extinf.duration,
			Title:           st.extinf.title,
			ByteRange:       st.byteRange,
			Discontinuity:   st.discontinuity,
			Gap:             st.gap,
			Key:             st.key,
			Map:             st.xmap,
			ProgramDateTime: st.programDate,
		}
		st.pl.Segments = append(st.pl.Segments, seg)
		st.extinf = nil
		st.byteRange = nil
		st.discontinuity = false
		st.gap = false
		st.programDate = nil
	default:
		st.pl.Warnings++
		st.logger.Debug().Int("line", st.line).Msg("ignoring URI line without EXTINF or EXT-X-STREAM-INF")
	}
}

func (st *parseState) warn(tag string, err error) {
	st.logger.Warn().Err(err).Str("tag", tag).Int("line", st.line).Msg("malformed playlist field ignored")
}

// finish assigns sequence numbers and attaches renditions to variants.
func (st *parseState) finish() {
	pl := st.pl
	if st.streamInf != nil || st.extinf != nil {
		pl.Warnings++
		st.logger.Debug().Msg("playlist ends with a tag awaiting its URI line")
	}

	pl.IsMaster = len(pl.Variants) > 0
	if pl.IsMaster && len(pl.Segments) > 0 {
		st.logger.Warn().Int("segments", len(pl.Segments)).Msg("master playlist carries segments, dropping them")
		pl.Segments = nil
	}

	for i, seg := range pl.Segments {
		seg.Sequence = pl.MediaSequence + int64(i)
	}

	for _, v := range pl.Variants {
		for _, r := range pl.Media {
			if renditionMatches(v, r) {
				v.Media = append(v.Media, r)
			}
		}
	}
}

func renditionMatches(v *Variant, r *Rendition) bool {
	switch r.Type {
	case MediaTypeAudio:
		return v.Audio != "" && v.Audio == r.GroupID
	case MediaTypeVideo:
		return v.Video != "" && v.Video == r.GroupID
	case MediaTypeSubtitles:
		return v.Subtitles != "" && v.Subtitles == r.GroupID
	case MediaTypeClosedCaptions:
		return v.ClosedCaptions != "" && v.ClosedCaptions == r.GroupID
	}
	return false
}
