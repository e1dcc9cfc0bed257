package evidence

import (
	"strings"

	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/common"
)

// Log is the append-only per-session evidence log. Each round's summary is
// recorded once, and the accumulated entries are replayed as bounded context
// for future extraction prompts.
type Log struct {
	findings []common.Finding
}

// NewLog creates an empty evidence log.
func NewLog() *Log {
	return &Log{}
}

// Record appends the round's summary text to the log.
func (l *Log) Record(result common.RoundResult) (common.Finding, error) {
	id, err := util.NewID()
	if err != nil {
		return common.Finding{}, err
	}
	finding := common.Finding{
		ID:      id,
		Round:   result.RoundNumber,
		Summary: result.SummaryText,
	}
	l.findings = append(l.findings, finding)
	return finding, nil
}

// Findings returns the recorded entries in append order.
func (l *Log) Findings() []common.Finding {
	out := make([]common.Finding, len(l.findings))
	copy(out, l.findings)
	return out
}

// ContextForNextRound concatenates the most recent entries, newest last,
// separated by newlines. Entries are dropped whole from the oldest end until
// the result fits maxChars; an entry is never truncated mid-text. Recency
// matters more than completeness for the extraction prompt, so the newest
// entries always survive.
func (l *Log) ContextForNextRound(maxChars int) string {
	if maxChars <= 0 || len(l.findings) == 0 {
		return ""
	}

	total := 0
	start := len(l.findings)
	for i := len(l.findings) - 1; i >= 0; i-- {
		size := len(l.findings[i].Summary)
		if total > 0 {
			size++ // newline separator
		}
		if total+size > maxChars {
			break
		}
		total += size
		start = i
	}

	if start == len(l.findings) {
		return ""
	}

	parts := make([]string, 0, len(l.findings)-start)
	for _, finding := range l.findings[start:] {
		parts = append(parts, finding.Summary)
	}
	return strings.Join(parts, "\n")
}
