// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	cases := map[string]string{
		"mpv":                                      "mpv",
		"/usr/bin/mpv":                             "mpv",
		`C:\Program Files\mpv.net\mpvnet.exe`:      "mpv",
		"vlc":                                      "vlc",
		"/Applications/VLC.app":                    "vlc",
		`C:\Program Files\VideoLAN\VLC\vlc.exe`:    "vlc",
		"cvlc":                                     "vlc",
		`C:\Program Files\DAUM\PotPlayerMini64.exe`: "potplayer",
		"/usr/bin/ffplay":                          "generic",
		"mpvx":                                     "generic",
	}
	for exe, want := range cases {
		assert.Equal(t, want, Detect(exe).Name(), exe)
	}
}

// Executable basename mpv: the title is passed through unchanged.
func TestTitle_MPV(t *testing.T) {
	argv, err := BuildArgs("/usr/bin/mpv", "", "Hello$World", "-", Detect("/usr/bin/mpv"))
	require.NoError(t, err)
	assert.Contains(t, argv, "--force-media-title=Hello$World")
	assert.Equal(t, "/usr/bin/mpv", argv[0])
	assert.Equal(t, "-", argv[len(argv)-1])
}

// Executable basename vlc: dollar signs are doubled for the title format.
func TestTitle_VLC(t *testing.T) {
	argv, err := BuildArgs("/usr/bin/vlc", "", "Hello$World", "-", Detect("/usr/bin/vlc"))
	require.NoError(t, err)

	i := indexOf(argv, "--input-title-format")
	require.GreaterOrEqual(t, i, 0, "argv: %q", argv)
	require.Less(t, i+1, len(argv))
	assert.Equal(t, "Hello$$World", argv[i+1])
}

func TestNamedPipeURL(t *testing.T) {
	assert.Equal(t, "file:///tmp/streamgrab-x", detect("vlc", false).NamedPipeURL("/tmp/streamgrab-x"))
	assert.Equal(t, `stream://\\\.\pipe\streamgrab-x`, detect("vlc.exe", true).NamedPipeURL(`\\.\pipe\streamgrab-x`))
	assert.Equal(t, "file:///tmp/p", MPV{}.NamedPipeURL("/tmp/p"))
	assert.Equal(t, `\\.\pipe\p`, Potplayer{}.NamedPipeURL(`\\.\pipe\p`))
	assert.Equal(t, "/tmp/p", Generic{}.NamedPipeURL("/tmp/p"))
}

func TestInputToken(t *testing.T) {
	for _, f := range []Family{Generic{}, VLC{}, MPV{}, Potplayer{}} {
		assert.Equal(t, "-", f.InputToken(TransportStdin, ""), f.Name())
		assert.Equal(t, "http://127.0.0.1:1/", f.InputToken(TransportHTTP, "http://127.0.0.1:1/"), f.Name())
	}
}

func TestPotplayerTitle(t *testing.T) {
	argv, err := BuildArgs("PotPlayerMini64.exe", "", "News", `\\.\pipe\p`, Potplayer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"PotPlayerMini64.exe", `\\.\pipe\p\News`}, argv)

	argv, err = BuildArgs("PotPlayerMini64.exe", "", "News", "-", Potplayer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"PotPlayerMini64.exe", "/title=News", "-"}, argv)
}

func TestGenericHasNoTitle(t *testing.T) {
	argv, err := BuildArgs("ffplay", "", "Title", "-", Generic{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ffplay", "-"}, argv)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
