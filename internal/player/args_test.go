// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		template string
		title    string
		input    string
		family   Family
		want     []string
	}{
		{
			name:   "empty template appends input",
			input:  "-",
			family: Generic{},
			want:   []string{"/bin/player", "-"},
		},
		{
			name:     "user args then input",
			template: "--cache=yes --volume 50",
			input:    "-",
			family:   MPV{},
			want:     []string{"/bin/player", "--cache=yes", "--volume", "50", "-"},
		},
		{
			name:     "title args prepended without placeholder",
			template: "--fs",
			title:    "My Show",
			input:    "-",
			family:   MPV{},
			want:     []string{"/bin/player", "--force-media-title=My Show", "--fs", "-"},
		},
		{
			name:     "placeholders positioned and quoted",
			template: "--fs {playertitleargs} --input {playerinput} --end",
			title:    "it's $5",
			input:    "file:///tmp/a b",
			family:   MPV{},
			want:     []string{"/bin/player", "--fs", "--force-media-title=it's $5", "--input", "file:///tmp/a b", "--end"},
		},
		{
			name:     "unknown placeholder kept",
			template: "{unknown} {playerinput}",
			input:    "-",
			family:   Generic{},
			want:     []string{"/bin/player", "{unknown}", "-"},
		},
		{
			name:     "empty title placeholder expands to nothing",
			template: "{playertitleargs} --x",
			input:    "-",
			family:   VLC{},
			want:     []string{"/bin/player", "--x", "-"},
		},
		{
			name:     "quoted user args",
			template: `--title "two words" 'single'`,
			input:    "-",
			family:   Generic{},
			want:     []string{"/bin/player", "--title", "two words", "single", "-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildArgs("/bin/player", tt.template, tt.title, tt.input, tt.family)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildArgs_UnbalancedQuote(t *testing.T) {
	_, err := BuildArgs("/bin/player", `--title "open`, "", "-", Generic{})
	assert.Error(t, err)
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"PATH=/bin", "HOME=/root", "LANG=C"}, map[string]string{"LANG": "de_DE.UTF-8", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "A=1", "LANG=de_DE.UTF-8"}, got)

	base := []string{"X=1"}
	assert.Equal(t, base, mergeEnv(base, nil))
}

func TestParseTransport(t *testing.T) {
	tr, err := ParseTransport("")
	require.NoError(t, err)
	assert.Equal(t, TransportStdin, tr)

	tr, err = ParseTransport("NamedPipe")
	require.NoError(t, err)
	assert.Equal(t, TransportNamedPipe, tr)

	_, err = ParseTransport("carrier-pigeon")
	assert.Error(t, err)
}

func TestSpecValidate(t *testing.T) {
	assert.Error(t, Spec{}.Validate())
	assert.Error(t, Spec{Executable: "mpv", Transport: TransportFile}.Validate())
	assert.Error(t, Spec{Executable: "mpv", Record: true}.Validate())
	assert.NoError(t, Spec{Executable: "mpv", Transport: TransportHTTP}.Validate())
}
