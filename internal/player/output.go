// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/metrics"
	"github.com/ManuGH/streamgrab/internal/namedpipe"
	"github.com/ManuGH/streamgrab/internal/output"
	"github.com/ManuGH/streamgrab/internal/passthrough"
	"github.com/ManuGH/streamgrab/internal/procgroup"
	"github.com/ManuGH/streamgrab/internal/telemetry"
)

const (
	startupDelay   = 500 * time.Millisecond
	terminateGrace = 10 * time.Second
)

// Output is a sink backed by a player process.
type Output struct {
	spec   Spec
	logger zerolog.Logger

	startupDelay time.Duration
	grace        time.Duration

	family Family
	cmd    *exec.Cmd
	waitCh chan error
	exited chan struct{}

	input  io.WriteCloser
	record *output.Tee
	w      io.Writer

	closeOnce sync.Once
	closeErr  error
}

var _ output.Sink = (*Output)(nil)

// NewOutput returns an unopened player sink.
func NewOutput(spec Spec) *Output {
	if spec.Transport == "" {
		spec.Transport = TransportStdin
	}
	grace := terminateGrace
	if isWindows {
		grace = 0
	}
	return &Output{
		spec:         spec,
		logger:       xglog.WithComponent("player"),
		startupDelay: startupDelay,
		grace:        grace,
	}
}

// Family is the detected player family, valid after Open.
func (o *Output) Family() Family { return o.family }

// Open starts the player and waits until its input is connected.
func (o *Output) Open(ctx context.Context) (err error) {
	ctx, span := telemetry.Tracer("streamgrab/player").Start(ctx, "player.open")
	defer func() {
		if o.family != nil {
			span.SetAttributes(telemetry.PlayerAttributes(o.family.Name(), string(o.spec.Transport))...)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := o.spec.Validate(); err != nil {
		return err
	}
	exe, err := exec.LookPath(o.spec.Executable)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPlayerNotFound, o.spec.Executable, err)
	}
	o.family = Detect(exe)
	o.logger = o.logger.With().
		Str(xglog.FieldPlayer, o.family.Name()).
		Str(xglog.FieldTransport, string(o.spec.Transport)).
		Logger()

	tr, err := o.newTransport(ctx)
	if err != nil {
		return err
	}

	argv, err := BuildArgs(exe, o.spec.Args, o.spec.Title, o.family.InputToken(o.spec.Transport, tr.token), o.family)
	if err != nil {
		_ = tr.Close()
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204
	procgroup.Set(cmd)
	cmd.Env = environ(o.spec.Env)
	if o.spec.Transport == TransportStdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			_ = tr.Close()
			return fmt.Errorf("player stdin: %w", err)
		}
		tr.w = stdin
	}

	if err := cmd.Start(); err != nil {
		_ = tr.Close()
		metrics.IncPlayerStart(o.family.Name(), string(o.spec.Transport), false)
		return fmt.Errorf("start player: %w", err)
	}
	o.cmd = cmd
	o.waitCh = make(chan error, 1)
	o.exited = make(chan struct{})
	go func() {
		err := cmd.Wait()
		close(o.exited)
		o.waitCh <- err
	}()
	o.logger.Info().Int(xglog.FieldPID, cmd.Process.Pid).Strs("argv", argv).Msg("player started")

	if err := o.awaitStartup(ctx); err != nil {
		_ = tr.Close()
		o.stop()
		metrics.IncPlayerStart(o.family.Name(), string(o.spec.Transport), false)
		return err
	}

	if tr.connect != nil {
		cctx, cancel := o.untilExit(ctx)
		err := tr.connect(cctx)
		cancel()
		if err != nil {
			_ = tr.Close()
			o.stop()
			metrics.IncPlayerStart(o.family.Name(), string(o.spec.Transport), false)
			if o.hasExited() {
				return ErrPlayerExited
			}
			return fmt.Errorf("connect player input: %w", err)
		}
	}
	o.input = tr
	o.w = tr

	if o.spec.Record {
		rec := output.NewFileSink(o.spec.RecordPath, o.spec.Overwrite)
		if err := rec.Open(ctx); err != nil {
			_ = o.Close()
			return fmt.Errorf("open recording: %w", err)
		}
		o.record = output.NewTee(tr, rec)
		o.w = o.record
	}

	metrics.IncPlayerStart(o.family.Name(), string(o.spec.Transport), true)
	return nil
}

// awaitStartup gives the player startupDelay to fail.
func (o *Output) awaitStartup(ctx context.Context) error {
	t := time.NewTimer(o.startupDelay)
	defer t.Stop()
	select {
	case <-o.exited:
		return ErrPlayerExited
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// untilExit derives a context cancelled when the player exits.
func (o *Output) untilExit(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-o.exited:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (o *Output) hasExited() bool {
	select {
	case <-o.exited:
		return true
	default:
		return false
	}
}

func (o *Output) Write(p []byte) (int, error) {
	if o.w == nil {
		return 0, errors.New("player output not open")
	}
	if o.hasExited() {
		return 0, fmt.Errorf("%w: player exited", output.ErrSinkClosed)
	}
	n, err := o.w.Write(p)
	if err != nil && !errors.Is(err, output.ErrSinkClosed) {
		err = fmt.Errorf("%w: %w", output.ErrSinkClosed, err)
	}
	return n, err
}

// Close signals EOF to the player, finishes the recording and stops the
// player process group unless NoClose is set.
func (o *Output) Close() error {
	o.closeOnce.Do(func() {
		var errs []error
		if o.input != nil {
			if err := o.input.Close(); err != nil && !o.hasExited() {
				errs = append(errs, fmt.Errorf("close player input: %w", err))
			}
		}
		if o.record != nil {
			if err := o.record.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if o.cmd != nil {
			if o.spec.NoClose {
				err := <-o.waitCh
				o.cmd = nil
				o.logger.Info().Err(err).Msg("player exited")
			} else {
				o.stop()
			}
		}
		o.closeErr = errors.Join(errs...)
	})
	return o.closeErr
}

// stop terminates the player. Its exit status after a signal is expected
// and only logged.
func (o *Output) stop() {
	if o.cmd == nil {
		return
	}
	defer func() { o.cmd = nil }()
	if o.hasExited() {
		err := <-o.waitCh
		o.logger.Debug().Err(err).Msg("player already exited")
		return
	}
	err := procgroup.Terminate(o.cmd, o.waitCh, o.grace)
	o.logger.Info().Err(err).Msg("player stopped")
}

// transport is the writer side of the player's input.
type transport struct {
	token   string
	w       io.WriteCloser
	connect func(ctx context.Context) error
	closers []io.Closer
}

func (t *transport) Write(p []byte) (int, error) {
	if t.w == nil {
		return 0, output.ErrSinkClosed
	}
	return t.w.Write(p)
}

func (t *transport) Close() error {
	var errs []error
	if t.w != nil {
		errs = append(errs, t.w.Close())
	}
	for _, c := range t.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (o *Output) newTransport(ctx context.Context) (*transport, error) {
	switch o.spec.Transport {
	case TransportStdin:
		return &transport{}, nil

	case TransportNamedPipe:
		p, err := namedpipe.New()
		if err != nil {
			return nil, err
		}
		o.logger.Debug().Str(xglog.FieldPath, p.Path()).Msg("named pipe created")
		return &transport{
			token:   o.family.NamedPipeURL(p.Path()),
			connect: p.Open,
			closers: []io.Closer{p},
			w:       nopCloser{p},
		}, nil

	case TransportHTTP:
		srv, err := passthrough.Listen(o.spec.HTTPHost, o.spec.HTTPPort)
		if err != nil {
			return nil, err
		}
		return &transport{
			token:   srv.URL(),
			connect: srv.Accept,
			closers: []io.Closer{srv},
			w:       nopCloser{srv},
		}, nil

	case TransportFile:
		f := output.NewFileSink(o.spec.FilePath, o.spec.Overwrite)
		if err := f.Open(ctx); err != nil {
			return nil, err
		}
		return &transport{token: o.spec.FilePath, w: f}, nil

	default:
		return nil, fmt.Errorf("unknown player transport %q", o.spec.Transport)
	}
}

// nopCloser leaves closing to transport.closers.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
