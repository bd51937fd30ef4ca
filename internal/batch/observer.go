package batch

import (
	"go.uber.org/zap"

	"github.com/spigell/adherence-scorer/internal/logger"
)

// Progress describes the candidate about to be processed. Index starts at 1.
type Progress struct {
	Index     int
	Total     int
	Candidate Candidate
}

type Observer interface {
	OnCandidate(p Progress)
	OnResult(index int, r Result)
}

type nopObserver struct{}

func (nopObserver) OnCandidate(Progress) {}

func (nopObserver) OnResult(int, Result) {}

// LogObserver reports progress through the logger.
type LogObserver struct {
	Logger *zap.Logger
}

func (o LogObserver) OnCandidate(p Progress) {
	o.Logger.Info("processing candidate", append(logger.CandidateFields(p.Candidate.Slug, p.Candidate.Name),
		zap.Int("index", p.Index),
		zap.Int("total", p.Total),
	)...)
}

func (o LogObserver) OnResult(index int, r Result) {
	o.Logger.Info("candidate processed", append(logger.CandidateFields(r.Slug, r.Name),
		zap.Int("index", index),
		zap.String("status", string(r.Status)),
		zap.Float64("score", r.Score),
	)...)
}
