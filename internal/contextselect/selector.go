package contextselect

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetctl/masterctl/internal/domain"
)

// Config controls the selector's keyword list and window sizes.
type Config struct {
	ReferenceKeywords  []string
	MaxContextMessages int // default domain.DefaultContextWindow
	MaxOracleTurns      int // default 3, per spec §4.3 "last <=3 turns"
}

func (c Config) withDefaults() Config {
	if len(c.ReferenceKeywords) == 0 {
		c.ReferenceKeywords = DefaultReferenceKeywords
	}
	if c.MaxContextMessages <= 0 {
		c.MaxContextMessages = domain.DefaultContextWindow
	}
	if c.MaxOracleTurns <= 0 {
		c.MaxOracleTurns = 3
	}
	return c
}

// Selector implements the spec's two-phase hybrid policy.
type Selector struct {
	cfg    Config
	oracle ContextOracle
}

// New constructs a Selector. oracle may be nil (keyword-only, fully
// deterministic).
func New(cfg Config, oracle ContextOracle) *Selector {
	return &Selector{cfg: cfg.withDefaults(), oracle: oracle}
}

// Select runs phase 1 (keyword) and, when triggered, phase 2 (semantic), then
// composes the worker-facing context block from only the relevant slice.
// window is the conversation's full retrievable history, oldest-first.
func (s *Selector) Select(ctx context.Context, message string, window []domain.Message) (Decision, string) {
	candidate := matchesKeyword(message, s.cfg.ReferenceKeywords)
	decision := Decision{NeedsContext: candidate, Reason: "keyword match"}
	if !candidate {
		decision.Reason = "no reference keyword"
	}

	needsPhase2 := candidate || isShortMessage(message)
	if needsPhase2 && s.oracle != nil && len(window) > 0 {
		recent := lastN(window, s.cfg.MaxOracleTurns)
		if verdict, err := s.oracle.AnalyzeContext(ctx, message, recent); err == nil {
			decision = verdict
		}
		// on oracle error, the phase-1 keyword verdict stands unchanged.
	}

	if !decision.NeedsContext {
		return decision, ""
	}

	slice := lastN(window, s.cfg.MaxContextMessages)
	selected := slice
	if len(decision.RelevantIndices) > 0 {
		// The oracle's indices number the last MaxOracleTurns messages it was
		// shown; shift them onto slice, which may reach further back.
		offset := len(slice) - len(lastN(window, s.cfg.MaxOracleTurns))
		shifted := make([]int, len(decision.RelevantIndices))
		for i, idx := range decision.RelevantIndices {
			shifted[i] = idx + offset
		}
		selected = pickIndices(slice, shifted)
	}
	return decision, composePrompt(selected, message)
}

func lastN(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

func pickIndices(msgs []domain.Message, indices []int) []domain.Message {
	out := make([]domain.Message, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(msgs) {
			out = append(out, msgs[idx])
		}
	}
	if len(out) == 0 {
		return msgs
	}
	return out
}

// composePrompt builds "Previous Conversation" + "Current Request" +
// consistency instruction, per spec §4.3.
func composePrompt(history []domain.Message, message string) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous Conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}
	b.WriteString("\nCurrent Request:\n")
	b.WriteString(message)
	b.WriteString("\n\nMaintain consistency with the previous conversation above.")
	return b.String()
}
