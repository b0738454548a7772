package usecase

import (
	"wanderbot/internal/domain"
)

// TokenEstimator supplies token counts for trimming decisions.
type TokenEstimator interface {
	CountText(text string) int
}

// HistoryTrimmer drops the oldest turns when history exceeds a token budget.
type HistoryTrimmer struct {
	budget  int
	counter TokenEstimator
}

// NewHistoryTrimmer creates a trimmer. A budget of zero or less disables
// trimming.
func NewHistoryTrimmer(budget int, counter TokenEstimator) *HistoryTrimmer {
	return &HistoryTrimmer{budget: budget, counter: counter}
}

// Trim returns the longest suffix of turns that fits the budget. The most
// recent turn is always kept even when it alone exceeds the budget, and the
// window is nudged forward so it never opens on a dangling agent turn.
func (ht *HistoryTrimmer) Trim(turns []domain.Turn) []domain.Turn {
	if ht.budget <= 0 || len(turns) == 0 {
		return turns
	}

	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := ht.counter.CountText(turns[i].Text) + turnOverhead
		if total+cost > ht.budget && start < len(turns) {
			break
		}
		total += cost
		start = i
	}

	kept := turns[start:]
	for len(kept) > 1 && kept[0].Role == domain.RoleAgent {
		kept = kept[1:]
	}
	return kept
}
