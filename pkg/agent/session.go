package agent

import (
	"fmt"
	"sync"

	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/common"
	"github.com/redstring/corkboard/pkg/evidence"
	"github.com/redstring/corkboard/pkg/graph"
)

// State is the session lifecycle state. Transitions are one-way:
// Idle -> Running -> (Completed | Failed).
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session owns all state for one run: the board, the evidence log, the
// intensity score, and cumulative skip counts. It is created once per user
// request and never shared between runs.
//
// The loop is the only writer. Read methods lock so the HTTP surface can
// inspect a session while its loop is still running.
type Session struct {
	mu sync.RWMutex

	runID  string
	topicA string
	topicB string

	rounds         int
	roundNumber    int
	roundsComplete int

	intensity float64
	skipped   int

	board    *graph.Board
	evidence *evidence.Log

	state State
	err   error
}

// NewSession validates the request and creates a session at round 0 with the
// two anchor entities already on the board.
func NewSession(topicA, topicB string, rounds int) (*Session, error) {
	if rounds < 1 {
		return nil, fmt.Errorf("rounds must be >= 1, got %d", rounds)
	}

	runID, err := util.NewRunID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	board := graph.NewBoard()
	if _, err := board.UpsertEntity(topicA, "", 0); err != nil {
		return nil, fmt.Errorf("seed topic A: %w", err)
	}
	if _, err := board.UpsertEntity(topicB, "", 0); err != nil {
		return nil, fmt.Errorf("seed topic B: %w", err)
	}
	board.ResetTouch()

	return &Session{
		runID:    runID,
		topicA:   topicA,
		topicB:   topicB,
		rounds:   rounds,
		board:    board,
		evidence: evidence.NewLog(),
		state:    StateIdle,
	}, nil
}

// RunID returns the session's run identifier.
func (s *Session) RunID() string {
	return s.runID
}

// Topics returns the two anchor topics.
func (s *Session) Topics() (string, string) {
	return s.topicA, s.topicB
}

// Rounds returns the requested round count.
func (s *Session) Rounds() int {
	return s.rounds
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the fatal error for a failed session, nil otherwise.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Intensity returns the current conspiracy intensity in [0, 1].
func (s *Session) Intensity() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intensity
}

// RoundsCompleted returns how many rounds have fully finished.
func (s *Session) RoundsCompleted() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roundsComplete
}

// SkippedTotal returns the cumulative count of malformed extraction tuples
// dropped across all rounds.
func (s *Session) SkippedTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipped
}

// Snapshot exports a read-only copy of the board.
func (s *Session) Snapshot() common.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Snapshot()
}

// Findings returns the evidence log entries in append order.
func (s *Session) Findings() []common.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evidence.Findings()
}

func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.err = err
}

func (s *Session) completeRound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundNumber++
	s.roundsComplete++
}
