package contextselect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetctl/masterctl/internal/domain"
)

func TestMatchesKeywordWholeWordOnly(t *testing.T) {
	require.True(t, matchesKeyword("can you elaborate on that?", DefaultReferenceKeywords))
	require.False(t, matchesKeyword("write a function to format a date", DefaultReferenceKeywords))
}

func TestSelectNoContextWhenNoKeywordAndLongMessage(t *testing.T) {
	s := New(Config{}, nil)
	decision, ctxStr := s.Select(context.Background(), "please write a brand new coding project from scratch", nil)
	require.False(t, decision.NeedsContext)
	require.Empty(t, ctxStr)
}

func TestSelectKeywordTriggersContext(t *testing.T) {
	s := New(Config{}, nil)
	window := []domain.Message{
		{Role: domain.RoleUser, Content: "write a fibonacci function"},
		{Role: domain.RoleAssistant, Content: "here it is"},
	}
	decision, ctxStr := s.Select(context.Background(), "now optimize that", window)
	require.True(t, decision.NeedsContext)
	require.Contains(t, ctxStr, "Previous Conversation:")
	require.Contains(t, ctxStr, "now optimize that")
}

func TestSelectShortMessageConsultsOracleWithoutKeyword(t *testing.T) {
	called := false
	oracle := fakeContextOracle{decision: Decision{NeedsContext: true}, onCall: func() { called = true }}
	s := New(Config{}, oracle)
	window := []domain.Message{{Role: domain.RoleUser, Content: "prior turn"}}
	_, _ = s.Select(context.Background(), "go on", window)
	require.True(t, called, "a short message should consult the oracle even without a keyword hit")
}

func TestSelectOracleErrorKeepsKeywordVerdict(t *testing.T) {
	oracle := fakeContextOracle{err: errors.New("boom")}
	s := New(Config{}, oracle)
	window := []domain.Message{{Role: domain.RoleUser, Content: "prior turn"}}
	decision, ctxStr := s.Select(context.Background(), "explain that further", window)
	require.True(t, decision.NeedsContext)
	require.NotEmpty(t, ctxStr)
}

func TestSelectRelevantIndicesNarrowTheSlice(t *testing.T) {
	oracle := fakeContextOracle{decision: Decision{NeedsContext: true, RelevantIndices: []int{1}}}
	s := New(Config{}, oracle)
	window := []domain.Message{
		{Role: domain.RoleUser, Content: "first turn"},
		{Role: domain.RoleUser, Content: "second turn"},
	}
	_, ctxStr := s.Select(context.Background(), "more", window)
	require.Contains(t, ctxStr, "second turn")
	require.NotContains(t, ctxStr, "first turn")
}

type fakeContextOracle struct {
	decision Decision
	err      error
	onCall   func()
}

func (f fakeContextOracle) AnalyzeContext(ctx context.Context, message string, history []domain.Message) (Decision, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.decision, f.err
}
