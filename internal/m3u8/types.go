// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package m3u8

import (
	"fmt"
	"strings"
	"time"
)

// KeyMethod is the METHOD attribute of EXT-X-KEY. Unknown methods are kept verbatim.
type KeyMethod string

const (
	KeyMethodNone      KeyMethod = "NONE"
	KeyMethodAES128    KeyMethod = "AES-128"
	KeyMethodSampleAES KeyMethod = "SAMPLE-AES"
)

// ParseKeyMethod normalizes a METHOD value.
func ParseKeyMethod(s string) KeyMethod {
	return KeyMethod(strings.ToUpper(strings.TrimSpace(s)))
}

// IsKnown reports whether m is one of the methods defined by RFC 8216.
func (m KeyMethod) IsKnown() bool {
	switch m {
	case KeyMethodNone, KeyMethodAES128, KeyMethodSampleAES:
		return true
	}
	return false
}

// MediaType is the TYPE attribute of EXT-X-MEDIA.
type MediaType string

const (
	MediaTypeAudio          MediaType = "AUDIO"
	MediaTypeVideo          MediaType = "VIDEO"
	MediaTypeSubtitles      MediaType = "SUBTITLES"
	MediaTypeClosedCaptions MediaType = "CLOSED-CAPTIONS"
)

// ParseMediaType normalizes a TYPE value.
func ParseMediaType(s string) MediaType {
	return MediaType(strings.ToUpper(strings.TrimSpace(s)))
}

// IsKnown reports whether t is one of the rendition types defined by RFC 8216.
func (t MediaType) IsKnown() bool {
	switch t {
	case MediaTypeAudio, MediaTypeVideo, MediaTypeSubtitles, MediaTypeClosedCaptions:
		return true
	}
	return false
}

// PlaylistType is the EXT-X-PLAYLIST-TYPE value. The zero value means the tag was absent.
type PlaylistType string

const (
	PlaylistTypeEvent PlaylistType = "EVENT"
	PlaylistTypeVOD   PlaylistType = "VOD"
)

// ParsePlaylistType normalizes an EXT-X-PLAYLIST-TYPE value.
func ParsePlaylistType(s string) PlaylistType {
	return PlaylistType(strings.ToUpper(strings.TrimSpace(s)))
}

// IsKnown reports whether t is EVENT or VOD.
func (t PlaylistType) IsKnown() bool {
	return t == PlaylistTypeEvent || t == PlaylistTypeVOD
}

// ByteRange is a sub-range of a resource. Offset is nil when the tag omitted it.
type ByteRange struct {
	Length int64
	Offset *int64
}

// Start returns the first byte position requested by the range.
func (r ByteRange) Start() int64 {
	if r.Offset == nil {
		return 0
	}
	return *r.Offset
}

// HTTPRange formats the range as an RFC 7233 Range header value.
func (r ByteRange) HTTPRange() string {
	start := r.Start()
	return fmt.Sprintf("bytes=%d-%d", start, start+r.Length-1)
}

// String formats the range as it appears in a playlist ("n[@o]").
func (r ByteRange) String() string {
	if r.Offset == nil {
		return fmt.Sprintf("%d", r.Length)
	}
	return fmt.Sprintf("%d@%d", r.Length, *r.Offset)
}

// Key describes how the segments following an EXT-X-KEY tag are encrypted.
type Key struct {
	Method            KeyMethod
	URI               string
	IV                []byte // explicit 16-byte IV, nil when absent
	KeyFormat         string
	KeyFormatVersions string
}

// Encrypted reports whether the key requires decryption.
func (k *Key) Encrypted() bool {
	return k != nil && k.Method != "" && k.Method != KeyMethodNone
}

// Map is an EXT-X-MAP media initialization section.
type Map struct {
	URI       string
	ByteRange *ByteRange
	Key       *Key // key current when the map was declared
}

// Segment is one media segment of a media playlist.
type Segment struct {
	Sequence        int64
	URI             string
	Duration        float64
	Title           string
	ByteRange       *ByteRange
	Discontinuity   bool
	Gap             bool
	Key             *Key
	Map             *Map
	ProgramDateTime *time.Time
}

// Resolution is a WxH decimal resolution.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Rendition is an EXT-X-MEDIA alternative rendition.
type Rendition struct {
	Type            MediaType
	GroupID         string
	Name            string
	Language        string
	AssocLanguage   string
	URI             string
	Default         bool
	Autoselect      bool
	Forced          bool
	Characteristics string
	Channels        string
}

// StreamInfo holds the EXT-X-STREAM-INF / EXT-X-I-FRAME-STREAM-INF attributes.
type StreamInfo struct {
	Bandwidth        int64 // rounded to two significant digits
	AverageBandwidth int64
	ProgramID        *int
	Codecs           []string
	Resolution       *Resolution
	FrameRate        float64
	Audio            string
	Video            string
	Subtitles        string
	ClosedCaptions   string
	Name             string
}

// Variant is a child playlist of a master playlist.
type Variant struct {
	URI    string
	IFrame bool
	StreamInfo
	Media []*Rendition // renditions whose group matches this variant's groups
}

// DateRange is an EXT-X-DATERANGE tag.
type DateRange struct {
	ID              string
	Class           string
	StartDate       *time.Time
	EndDate         *time.Time
	Duration        *float64
	PlannedDuration *float64
	EndOnNext       bool
	XAttributes     []Attribute
}

// Start is the EXT-X-START preferred start point.
type Start struct {
	TimeOffset float64
	Precise    bool
}

// Playlist is a parsed master or media playlist. It is not modified after Parse returns.
type Playlist struct {
	URI                   string
	IsMaster              bool
	Version               int
	TargetDuration        float64
	MediaSequence         int64
	DiscontinuitySequence int64
	EndList               bool
	IFramesOnly           bool
	Type                  PlaylistType
	AllowCache            *bool
	Start                 *Start
	IndependentSegments   bool

	Media      []*Rendition
	DateRanges []*DateRange
	Variants   []*Variant
	Segments   []*Segment

	// Warnings counts lines that were neither tags nor expected URI lines.
	Warnings int
}

// LastSequence returns the sequence number of the newest segment, or
// MediaSequence-1 for an empty media playlist.
func (p *Playlist) LastSequence() int64 {
	if len(p.Segments) == 0 {
		return p.MediaSequence - 1
	}
	return p.Segments[len(p.Segments)-1].Sequence
}

// Validate checks the structural invariants of a parsed playlist.
func (p *Playlist) Validate() error {
	if p.IsMaster && len(p.Segments) > 0 {
		return fmt.Errorf("master playlist contains %d segments", len(p.Segments))
	}
	if !p.IsMaster && len(p.Variants) > 0 {
		return fmt.Errorf("media playlist contains %d variants", len(p.Variants))
	}
	for i, seg := range p.Segments {
		if i > 0 && seg.Sequence != p.Segments[i-1].Sequence+1 {
			return fmt.Errorf("segment %d: sequence %d does not follow %d", i, seg.Sequence, p.Segments[i-1].Sequence)
		}
		// Rounded durations may reach the target duration; RFC 8216 only
		// requires the rounded value not to exceed it.
		if p.TargetDuration > 0 && roundDuration(seg.Duration) > p.TargetDuration {
			return fmt.Errorf("segment %d: duration %.3f exceeds target duration %.0f", seg.Sequence, seg.Duration, p.TargetDuration)
		}
	}
	return nil
}

func roundDuration(d float64) float64 {
	return float64(int64(d + 0.5))
}
