package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vinodismyname/shopperinsights/internal/clickstream"
)

// Pass names, reported to Options.OnPass and in logs.
const (
	PassSessions = "sessions"
	PassPaths    = "paths"
	PassFunnel   = "funnel"
	PassSegments = "segments"
	PassProfile  = "profile"
)

// Passes lists every pass Analyze runs.
var Passes = []string{PassSessions, PassPaths, PassFunnel, PassSegments, PassProfile}

// Options configures Analyze.
type Options struct {
	Segments SegmentOptions

	// AllowPartial records a segmentation InsufficientDataError as a warning
	// instead of failing the report.
	AllowPartial bool

	// OnPass, when set, is called once per finished pass. It may be called
	// concurrently.
	OnPass func(pass string)
}

// Report bundles every analytic mapping of one batch.
type Report struct {
	Source       string            `json:"source"`
	Rows         int               `json:"rows"`
	Metrics      Metrics           `json:"key_metrics"`
	Sessions     SessionSummary    `json:"session_metrics"`
	Paths        PathSummary       `json:"path_analysis"`
	Funnel       Funnel            `json:"funnel"`
	Segmentation *Segmentation     `json:"segmentation,omitempty"`
	Segments     []Assignment      `json:"segments,omitempty"`
	Behavior     Behavior          `json:"user_behavior"`
	Sales        Sales             `json:"product_sales"`
	Warnings     []string          `json:"warnings,omitempty"`
	Durations    map[string]string `json:"-"`
}

// Analyze runs all passes over t concurrently. The table is only read, so the
// result matches running the passes one after another. The first failing pass
// cancels the others.
func Analyze(ctx context.Context, t *clickstream.Table, opts Options) (Report, error) {
	rep := Report{Source: t.Source, Rows: t.Len(), Durations: map[string]string{}}
	if t.Len() == 0 {
		return rep, noSessions("report")
	}
	// Memoize sessions before fanning out.
	t.Sessions()

	log := zerolog.Ctx(ctx)
	var mu sync.Mutex
	done := func(pass string, start time.Time) {
		d := time.Since(start)
		mu.Lock()
		rep.Durations[pass] = d.String()
		mu.Unlock()
		log.Debug().Str("pass", pass).Dur("elapsed", d).Msg("analysis pass finished")
		if opts.OnPass != nil {
			opts.OnPass(pass)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		s, err := AggregateSessions(t)
		if err != nil {
			return err
		}
		rep.Sessions = s
		done(PassSessions, start)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		p, err := MinePaths(t)
		if err != nil {
			return err
		}
		rep.Paths = p
		done(PassPaths, start)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		f, err := AnalyzeFunnel(t)
		if err != nil {
			return err
		}
		rep.Funnel = f
		done(PassFunnel, start)
		return nil
	})
	var segWarning string
	g.Go(func() error {
		start := time.Now()
		seg, err := SegmentUsers(gctx, t, opts.Segments)
		switch {
		case err == nil:
			rep.Segmentation = &seg
			rep.Segments = seg.Assignments
		case opts.AllowPartial && errors.Is(err, ErrInsufficientData):
			segWarning = err.Error()
		default:
			return fmt.Errorf("segmentation: %w", err)
		}
		done(PassSegments, start)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		m, err := KeyMetrics(t)
		if err != nil {
			return err
		}
		b, err := AnalyzeBehavior(t)
		if err != nil {
			return err
		}
		s, err := AnalyzeSales(t)
		if err != nil {
			return err
		}
		rep.Metrics, rep.Behavior, rep.Sales = m, b, s
		done(PassProfile, start)
		return nil
	})
	if err := g.Wait(); err != nil {
		return rep, err
	}
	if segWarning != "" {
		rep.Warnings = append(rep.Warnings, segWarning)
	}
	return rep, nil
}
