// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamgrab/internal/hls"
	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/m3u8"
	"github.com/ManuGH/streamgrab/internal/session"
)

func newInspectCmd(f *cliFlags, stdout io.Writer) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "inspect URL",
		Short: "Print a playlist as parsed and summarize its timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			client, err := session.NewClient(sessionOptions(cfg))
			if err != nil {
				return err
			}
			pl, err := fetchPlaylist(cmd.Context(), client, playlistURL(args[0]))
			if err != nil {
				return err
			}
			if _, err := pl.WriteTo(stdout); err != nil {
				return err
			}
			if raw {
				return nil
			}
			return summarize(stdout, pl)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print only the re-encoded playlist")
	return cmd
}

// playlistURL drops the hls:// and hlsvariant:// prefixes accepted by the
// root command.
func playlistURL(raw string) string {
	for _, prefix := range []string{"hlsvariant://", "hls://"} {
		if len(raw) >= len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
			raw = raw[len(prefix):]
			if !strings.Contains(raw, "://") {
				raw = "https://" + strings.TrimLeft(raw, "/")
			}
			break
		}
	}
	return raw
}

func fetchPlaylist(ctx context.Context, client *session.Client, url string) (*m3u8.Playlist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &hls.HTTPError{URL: url, Status: resp.StatusCode}
	}
	return m3u8.ParseResponse(resp, m3u8.WithLogger(xglog.WithComponent("inspect")))
}

func summarize(w io.Writer, pl *m3u8.Playlist) error {
	var b strings.Builder
	b.WriteString("\n")
	if pl.IsMaster {
		names := hls.QualityNames(pl.Variants)
		fmt.Fprintf(&b, "# master playlist: %d variants, %d renditions\n", len(pl.Variants), len(pl.Media))
		fmt.Fprintf(&b, "# qualities: %s\n", strings.Join(hls.SortedNames(names), ", "))
		_, err := io.WriteString(w, b.String())
		return err
	}

	tl, err := hls.ExtractTimeline(pl)
	if err != nil {
		fmt.Fprintf(&b, "# timeline: %v\n", err)
		_, werr := io.WriteString(w, b.String())
		return werr
	}
	kind := "live"
	if tl.IsVOD {
		kind = "vod"
	}
	fmt.Fprintf(&b, "# media playlist (%s): %d segments, %s total, %d discontinuities\n",
		kind, tl.Segments, tl.TotalDuration.Round(time.Millisecond), tl.Discontinuities)
	if tl.HasPDT {
		fmt.Fprintf(&b, "# program date time: %s .. %s\n",
			tl.FirstPDT.UTC().Format(time.RFC3339), tl.LastPDT.UTC().Format(time.RFC3339))
	} else {
		b.WriteString("# program date time: none\n")
	}
	_, err = io.WriteString(w, b.String())
	return err
}
