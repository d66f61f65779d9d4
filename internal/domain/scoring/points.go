package scoring

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidScore       = errors.New("invalid score")
	ErrInvalidPointsTable = errors.New("invalid points table")
)

// ScorePair is a home/away score, either predicted or final.
type ScorePair struct {
	Home int
	Away int
}

func (p ScorePair) String() string {
	return strconv.Itoa(p.Home) + "x" + strconv.Itoa(p.Away)
}

func (p ScorePair) Validate() error {
	if p.Home < 0 || p.Away < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidScore, p)
	}
	return nil
}

type Outcome string

const (
	OutcomeHomeWin Outcome = "home_win"
	OutcomeAwayWin Outcome = "away_win"
	OutcomeDraw    Outcome = "draw"
)

func Classify(p ScorePair) Outcome {
	switch {
	case p.Home > p.Away:
		return OutcomeHomeWin
	case p.Home < p.Away:
		return OutcomeAwayWin
	default:
		return OutcomeDraw
	}
}

// Rule identifies which step of the points ladder matched a guess.
type Rule string

const (
	RuleExact             Rule = "exact"
	RuleWinnerAndMargin   Rule = "winner_and_margin"
	RuleWinnerAndOneScore Rule = "winner_and_one_score"
	RuleWinnerOnly        Rule = "winner_only"
	RuleOneScore          Rule = "one_score"
	RuleMiss              Rule = "miss"
)

// PointsTable stores the award for every rule of the ladder. A miss is always 0.
type PointsTable struct {
	Exact             int
	WinnerAndMargin   int
	WinnerAndOneScore int
	WinnerOnly        int
	OneScore          int
}

func DefaultPointsTable() PointsTable {
	return PointsTable{
		Exact:             25,
		WinnerAndMargin:   18,
		WinnerAndOneScore: 15,
		WinnerOnly:        12,
		OneScore:          5,
	}
}

// ParsePointsTable reads "exact,margin,oneScore,winner,partial", e.g. "25,18,15,12,5".
func ParsePointsTable(raw string) (PointsTable, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 5 {
		return PointsTable{}, fmt.Errorf("%w: expected 5 values, got %d", ErrInvalidPointsTable, len(parts))
	}

	values := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return PointsTable{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidPointsTable, part)
		}
		values = append(values, v)
	}

	table := PointsTable{
		Exact:             values[0],
		WinnerAndMargin:   values[1],
		WinnerAndOneScore: values[2],
		WinnerOnly:        values[3],
		OneScore:          values[4],
	}
	if err := table.Validate(); err != nil {
		return PointsTable{}, err
	}
	return table, nil
}

// Validate requires awards to be non-negative and to not increase down the ladder.
func (t PointsTable) Validate() error {
	ordered := []int{t.Exact, t.WinnerAndMargin, t.WinnerAndOneScore, t.WinnerOnly, t.OneScore}
	for i, v := range ordered {
		if v < 0 {
			return fmt.Errorf("%w: negative award %d", ErrInvalidPointsTable, v)
		}
		if i > 0 && v > ordered[i-1] {
			return fmt.Errorf("%w: award %d ranks above %d", ErrInvalidPointsTable, v, ordered[i-1])
		}
	}
	return nil
}

func (t PointsTable) Award(rule Rule) int {
	switch rule {
	case RuleExact:
		return t.Exact
	case RuleWinnerAndMargin:
		return t.WinnerAndMargin
	case RuleWinnerAndOneScore:
		return t.WinnerAndOneScore
	case RuleWinnerOnly:
		return t.WinnerOnly
	case RuleOneScore:
		return t.OneScore
	default:
		return 0
	}
}

// EvaluateRule walks the ladder top-down and returns the first rule that matches.
func EvaluateRule(guess, result ScorePair) Rule {
	if guess == result {
		return RuleExact
	}

	oneScore := guess.Home == result.Home || guess.Away == result.Away
	if Classify(guess) == Classify(result) {
		switch {
		case guess.Home-guess.Away == result.Home-result.Away:
			return RuleWinnerAndMargin
		case oneScore:
			return RuleWinnerAndOneScore
		default:
			return RuleWinnerOnly
		}
	}

	if oneScore {
		return RuleOneScore
	}
	return RuleMiss
}

// CalculatePoints scores a guess with the default table. Inputs must be non-negative.
func CalculatePoints(guess, result ScorePair) int {
	return DefaultPointsTable().Award(EvaluateRule(guess, result))
}

func CalculatePointsChecked(guess, result ScorePair, table PointsTable) (int, Rule, error) {
	if err := guess.Validate(); err != nil {
		return 0, RuleMiss, fmt.Errorf("guess: %w", err)
	}
	if err := result.Validate(); err != nil {
		return 0, RuleMiss, fmt.Errorf("result: %w", err)
	}

	rule := EvaluateRule(guess, result)
	return table.Award(rule), rule, nil
}
