package youtube

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// DefaultShortMax is the platform's short-form duration ceiling.
const DefaultShortMax = 180 * time.Second

// verticalRatio is the width/height below which a frame counts as vertical.
const verticalRatio = 0.7

// Verdict is a signal's opinion about one video.
type Verdict int

const (
	VerdictInconclusive Verdict = iota
	VerdictShort
	VerdictLong
)

func (v Verdict) String() string {
	switch v {
	case VerdictShort:
		return "short"
	case VerdictLong:
		return "long"
	default:
		return "inconclusive"
	}
}

// Signal is one source of evidence for short-form classification.
type Signal interface {
	Name() string
	Evaluate(ctx context.Context, v *Video) Verdict
}

// Classifier runs its signals in order and takes the first definite
// verdict. A video no signal can decide is long-form.
type Classifier struct {
	signals []Signal
	log     *slog.Logger
}

// NewClassifier creates a classifier over signals, highest precedence first.
func NewClassifier(log *slog.Logger, signals ...Signal) *Classifier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Classifier{signals: signals, log: log}
}

// DefaultClassifier returns probe, duration and heuristic signals in that
// order. probe may be nil, in which case the probe signal is left out.
func DefaultClassifier(probe ShortsProbe, shortMax time.Duration, log *slog.Logger) *Classifier {
	if shortMax <= 0 {
		shortMax = DefaultShortMax
	}
	var signals []Signal
	if probe != nil {
		signals = append(signals, NewProbeSignal(probe, shortMax, log))
	}
	signals = append(signals, DurationSignal{Max: shortMax}, HeuristicSignal{})
	return NewClassifier(log, signals...)
}

// Classify sets v.IsShort and reports the deciding signal's name, or ""
// when nothing was conclusive.
func (c *Classifier) Classify(ctx context.Context, v *Video) string {
	for _, s := range c.signals {
		switch s.Evaluate(ctx, v) {
		case VerdictShort:
			v.IsShort = true
			return s.Name()
		case VerdictLong:
			v.IsShort = false
			return s.Name()
		}
	}
	v.IsShort = false
	return ""
}

// DurationSignal calls anything at or under Max short. Unknown durations
// are inconclusive.
type DurationSignal struct {
	Max time.Duration
}

func (DurationSignal) Name() string { return "duration" }

func (d DurationSignal) Evaluate(_ context.Context, v *Video) Verdict {
	if v.Duration <= 0 {
		return VerdictInconclusive
	}
	if v.Duration <= d.Max {
		return VerdictShort
	}
	return VerdictLong
}

var shortsTagRegex = regexp.MustCompile(`(?i)#shorts?\b`)

// HeuristicSignal looks for a #short/#shorts tag in the title or a vertical
// frame. It never answers long.
type HeuristicSignal struct{}

func (HeuristicSignal) Name() string { return "heuristic" }

func (HeuristicSignal) Evaluate(_ context.Context, v *Video) Verdict {
	if shortsTagRegex.MatchString(v.Title) {
		return VerdictShort
	}
	if r := v.AspectRatio(); r > 0 && r < verticalRatio {
		return VerdictShort
	}
	return VerdictInconclusive
}

// ShortsProbe checks the short-form URL of one video.
type ShortsProbe interface {
	ProbeShort(ctx context.Context, videoID string) (Verdict, error)
}

// ProbeSignal asks a ShortsProbe, caching conclusive answers per video ID.
// Videos longer than the ceiling are not probed.
type ProbeSignal struct {
	probe ShortsProbe
	max   time.Duration
	log   *slog.Logger

	mu    sync.Mutex
	cache map[string]Verdict
}

// NewProbeSignal creates a ProbeSignal.
func NewProbeSignal(probe ShortsProbe, shortMax time.Duration, log *slog.Logger) *ProbeSignal {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &ProbeSignal{probe: probe, max: shortMax, log: log, cache: make(map[string]Verdict)}
}

func (*ProbeSignal) Name() string { return "probe" }

func (p *ProbeSignal) Evaluate(ctx context.Context, v *Video) Verdict {
	if p.max > 0 && v.Duration > p.max {
		return VerdictInconclusive
	}

	p.mu.Lock()
	cached, ok := p.cache[v.ID]
	p.mu.Unlock()
	if ok {
		return cached
	}

	verdict, err := p.probe.ProbeShort(ctx, v.ID)
	if err != nil {
		p.log.Debug("shorts probe failed", slog.String("video_id", v.ID), slog.Any("error", err))
		return VerdictInconclusive
	}
	if verdict != VerdictInconclusive {
		p.mu.Lock()
		p.cache[v.ID] = verdict
		p.mu.Unlock()
	}
	return verdict
}
