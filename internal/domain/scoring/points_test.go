package scoring

import (
	"errors"
	"testing"
)

func TestCalculatePoints_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		guess  ScorePair
		result ScorePair
		want   int
		rule   Rule
	}{
		{name: "exact score", guess: ScorePair{2, 1}, result: ScorePair{2, 1}, want: 25, rule: RuleExact},
		{name: "winner and margin", guess: ScorePair{3, 1}, result: ScorePair{2, 0}, want: 18, rule: RuleWinnerAndMargin},
		{name: "winner and one score", guess: ScorePair{1, 0}, result: ScorePair{3, 0}, want: 15, rule: RuleWinnerAndOneScore},
		{name: "winner only", guess: ScorePair{3, 1}, result: ScorePair{1, 0}, want: 12, rule: RuleWinnerOnly},
		{name: "draw counts as same margin", guess: ScorePair{1, 1}, result: ScorePair{2, 2}, want: 18, rule: RuleWinnerAndMargin},
		{name: "away win margin", guess: ScorePair{0, 2}, result: ScorePair{1, 3}, want: 18, rule: RuleWinnerAndMargin},
		{name: "wrong winner one score", guess: ScorePair{2, 2}, result: ScorePair{2, 0}, want: 5, rule: RuleOneScore},
		{name: "wrong winner no score", guess: ScorePair{0, 3}, result: ScorePair{1, 2}, want: 0, rule: RuleMiss},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := EvaluateRule(tc.guess, tc.result); got != tc.rule {
				t.Fatalf("rule: expected %s, got %s", tc.rule, got)
			}
			if got := CalculatePoints(tc.guess, tc.result); got != tc.want {
				t.Fatalf("points: expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestCalculatePoints_DrawIsNotWinnerOnlyAgainstWin(t *testing.T) {
	t.Parallel()

	// 1x1 vs 2x0 is a draw against a home win, so only the ladder's
	// partial rungs can apply; neither component matches.
	if got := CalculatePoints(ScorePair{1, 1}, ScorePair{2, 0}); got != 0 {
		t.Fatalf("expected 0 for 1x1 against 2x0, got %d", got)
	}
	if got := CalculatePoints(ScorePair{4, 1}, ScorePair{2, 0}); got != 12 {
		t.Fatalf("expected 12 for 4x1 against 2x0, got %d", got)
	}
}

func TestCalculatePoints_ExactAlwaysWins(t *testing.T) {
	t.Parallel()

	table := DefaultPointsTable()
	for home := 0; home <= 6; home++ {
		for away := 0; away <= 6; away++ {
			pair := ScorePair{Home: home, Away: away}
			if got := CalculatePoints(pair, pair); got != table.Exact {
				t.Fatalf("exact %s: expected %d, got %d", pair, table.Exact, got)
			}
		}
	}
}

func TestEvaluateRule_SingleBranch(t *testing.T) {
	t.Parallel()

	table := DefaultPointsTable()
	for gh := 0; gh <= 6; gh++ {
		for ga := 0; ga <= 6; ga++ {
			for rh := 0; rh <= 6; rh++ {
				for ra := 0; ra <= 6; ra++ {
					guess := ScorePair{gh, ga}
					result := ScorePair{rh, ra}

					matches := matchingRules(guess, result)
					if len(matches) == 0 {
						t.Fatalf("%s vs %s: no rule matched", guess, result)
					}
					rule := EvaluateRule(guess, result)
					if rule != matches[0] {
						t.Fatalf("%s vs %s: expected first matching rule %s, got %s", guess, result, matches[0], rule)
					}
					if got := CalculatePoints(guess, result); got != table.Award(rule) {
						t.Fatalf("%s vs %s: award mismatch %d", guess, result, got)
					}
				}
			}
		}
	}
}

// matchingRules lists every ladder rung whose predicate holds, top-down.
func matchingRules(guess, result ScorePair) []Rule {
	sameOutcome := Classify(guess) == Classify(result)
	oneScore := guess.Home == result.Home || guess.Away == result.Away
	sameMargin := guess.Home-guess.Away == result.Home-result.Away

	var out []Rule
	if guess == result {
		out = append(out, RuleExact)
	}
	if sameOutcome && sameMargin {
		out = append(out, RuleWinnerAndMargin)
	}
	if sameOutcome && oneScore {
		out = append(out, RuleWinnerAndOneScore)
	}
	if sameOutcome {
		out = append(out, RuleWinnerOnly)
	}
	if oneScore {
		out = append(out, RuleOneScore)
	}
	return append(out, RuleMiss)
}

func TestCalculatePointsChecked(t *testing.T) {
	t.Parallel()

	t.Run("rejects negative guess", func(t *testing.T) {
		t.Parallel()
		_, _, err := CalculatePointsChecked(ScorePair{-1, 0}, ScorePair{1, 0}, DefaultPointsTable())
		if !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("expected ErrInvalidScore, got %v", err)
		}
	})

	t.Run("rejects negative result", func(t *testing.T) {
		t.Parallel()
		_, _, err := CalculatePointsChecked(ScorePair{1, 0}, ScorePair{1, -2}, DefaultPointsTable())
		if !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("expected ErrInvalidScore, got %v", err)
		}
	})

	t.Run("uses custom table", func(t *testing.T) {
		t.Parallel()
		table := PointsTable{Exact: 10, WinnerAndMargin: 5, WinnerAndOneScore: 3, WinnerOnly: 3, OneScore: 1}
		points, rule, err := CalculatePointsChecked(ScorePair{3, 1}, ScorePair{2, 0}, table)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rule != RuleWinnerAndMargin || points != 5 {
			t.Fatalf("expected margin rule worth 5, got %s=%d", rule, points)
		}
	})
}

func TestParsePointsTable(t *testing.T) {
	t.Parallel()

	table, err := ParsePointsTable("12, 5, 3, 3, 1")
	if err != nil {
		t.Fatalf("parse points table: %v", err)
	}
	if table.Exact != 12 || table.OneScore != 1 {
		t.Fatalf("unexpected table: %+v", table)
	}

	for _, raw := range []string{"", "25,18,15,12", "25,18,x,12,5", "5,18,15,12,5", "25,18,15,12,-1"} {
		if _, err := ParsePointsTable(raw); !errors.Is(err, ErrInvalidPointsTable) {
			t.Fatalf("expected ErrInvalidPointsTable for %q, got %v", raw, err)
		}
	}
}
