// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"runtime"
	"strings"
)

// Family captures how a player wants its input and title.
type Family interface {
	Name() string
	NamedPipeURL(path string) string
	TitleArgs(title string) []string
	InputToken(t Transport, input string) string
}

// titledInput is implemented by families that carry the title inside the
// input argument instead of a flag.
type titledInput interface {
	TitledInput(input, title string) (string, bool)
}

// Generic is used for unrecognized players: stdin as "-", no title support.
type Generic struct{}

func (Generic) Name() string                    { return "generic" }
func (Generic) NamedPipeURL(path string) string { return path }
func (Generic) TitleArgs(string) []string       { return nil }
func (Generic) InputToken(t Transport, input string) string {
	if t == TransportStdin {
		return "-"
	}
	return input
}

// VLC and its forks.
type VLC struct {
	Generic
	windows bool
}

func (VLC) Name() string { return "vlc" }

func (v VLC) NamedPipeURL(path string) string {
	if v.windows {
		return `stream://\` + path
	}
	return "file://" + path
}

// TitleArgs doubles "$" because VLC expands $-sequences in the title format.
func (VLC) TitleArgs(title string) []string {
	if title == "" {
		return nil
	}
	return []string{"--input-title-format", strings.ReplaceAll(title, "$", "$$"), "--meta-title", title}
}

// MPV and mpv.net.
type MPV struct{ Generic }

func (MPV) Name() string                    { return "mpv" }
func (MPV) NamedPipeURL(path string) string { return "file://" + path }

func (MPV) TitleArgs(title string) []string {
	if title == "" {
		return nil
	}
	return []string{"--force-media-title=" + title}
}

// Potplayer reads the title from a backslash suffix on the input path and,
// for stdin, from a /title= flag.
type Potplayer struct{ Generic }

func (Potplayer) Name() string { return "potplayer" }

func (Potplayer) TitleArgs(title string) []string {
	if title == "" {
		return nil
	}
	return []string{"/title=" + title}
}

func (Potplayer) TitledInput(input, title string) (string, bool) {
	if input == "-" || title == "" {
		return input, false
	}
	return input + `\` + title, true
}

// Detect picks the family from the executable's base name, ignoring case
// and extension.
func Detect(executable string) Family {
	return detect(executable, isWindows)
}

const isWindows = runtime.GOOS == "windows"

func detect(executable string, windows bool) Family {
	name := executable
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToLower(name)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		switch name[i:] {
		case ".exe", ".app", ".com", ".bat", ".cmd", ".sh":
			name = name[:i]
		}
	}

	switch {
	case name == "vlc" || strings.HasPrefix(name, "vlc-") || name == "cvlc" || name == "qvlc":
		return VLC{windows: windows}
	case name == "mpv" || strings.HasPrefix(name, "mpvnet") || name == "mpv.net":
		return MPV{}
	case strings.HasPrefix(name, "potplayer"):
		return Potplayer{}
	default:
		return Generic{}
	}
}
