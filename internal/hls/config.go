// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"time"

	"github.com/ManuGH/streamgrab/internal/m3u8"
)

const (
	DefaultLiveEdge               = 3
	DefaultWorkers                = 2
	MaxWorkers                    = 10
	DefaultAttempts               = 3
	DefaultRetryBase              = time.Second
	DefaultPlaylistReloadAttempts = 3
)

// VariantSelector picks the media playlist to follow from a master playlist.
type VariantSelector func(variants []*m3u8.Variant) (*m3u8.Variant, error)

// Config tunes one engine run.
type Config struct {
	// LiveEdge is how many segments from the end of the first non-empty live
	// window playback starts. The newest segment is always included, so
	// values below 1 select DefaultLiveEdge.
	LiveEdge int
	// Workers is the number of concurrent segment fetchers (1-10).
	Workers int
	// Attempts is the per-request budget including the first try.
	Attempts int
	// RetryBase is the first backoff interval.
	RetryBase time.Duration
	// RetryMax caps the backoff interval; zero caps it at the target duration.
	RetryMax time.Duration
	// PlaylistReloadAttempts consecutive failed or empty reloads stall the stream.
	PlaylistReloadAttempts int
	// ReloadInterval overrides the computed live reload wait when positive.
	ReloadInterval time.Duration
	// HonorStartOffset applies EXT-X-START to VOD playlists.
	HonorStartOffset bool
	// Variant selects from master playlists; nil picks the best variant.
	Variant VariantSelector
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		LiveEdge:               DefaultLiveEdge,
		Workers:                DefaultWorkers,
		Attempts:               DefaultAttempts,
		RetryBase:              DefaultRetryBase,
		PlaylistReloadAttempts: DefaultPlaylistReloadAttempts,
	}
}

func (c Config) withDefaults() Config {
	if c.LiveEdge < 1 {
		c.LiveEdge = DefaultLiveEdge
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Workers > MaxWorkers {
		c.Workers = MaxWorkers
	}
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	if c.PlaylistReloadAttempts <= 0 {
		c.PlaylistReloadAttempts = DefaultPlaylistReloadAttempts
	}
	if c.Variant == nil {
		c.Variant = BestVariant
	}
	return c
}
