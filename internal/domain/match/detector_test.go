package match

import "testing"

func intPtr(v int) *int { return &v }

func scored(home, away int) Match {
	return Match{ID: "m1", HomeTeam: "Palmeiras", AwayTeam: "Santos", HomeScore: intPtr(home), AwayScore: intPtr(away)}
}

func TestIsNewlyFinalized(t *testing.T) {
	t.Parallel()

	pending := Match{ID: "m1", HomeTeam: "Palmeiras", AwayTeam: "Santos"}
	halfScored := Match{ID: "m1", HomeScore: intPtr(2)}

	tests := []struct {
		name   string
		before Match
		after  Match
		want   bool
	}{
		{name: "null to score", before: pending, after: scored(2, 1), want: true},
		{name: "half score to full score", before: halfScored, after: scored(2, 1), want: true},
		{name: "same score", before: scored(2, 1), after: scored(2, 1), want: false},
		{name: "corrected score", before: scored(2, 1), after: scored(3, 1), want: false},
		{name: "unfinalized", before: scored(2, 1), after: pending, want: false},
		{name: "unrelated edit", before: pending, after: Match{ID: "m1", HomeTeam: "SE Palmeiras"}, want: false},
		{name: "only one score set", before: pending, after: halfScored, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsNewlyFinalized(tc.before, tc.after); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDetect_Policy(t *testing.T) {
	t.Parallel()

	pending := Match{ID: "m1"}

	cases := []struct {
		policy RescorePolicy
		before Match
		after  Match
		want   Decision
	}{
		{PolicyFinalizeOnly, pending, scored(1, 0), Decision{TransitionFinalized, true}},
		{PolicyFinalizeOnly, scored(1, 0), scored(2, 0), Decision{TransitionCorrected, false}},
		{PolicyOnCorrection, scored(1, 0), scored(2, 0), Decision{TransitionCorrected, true}},
		{PolicyOnCorrection, scored(1, 0), scored(1, 0), Decision{TransitionNoChange, false}},
		{PolicyOnCorrection, scored(1, 0), pending, Decision{TransitionUnfinalized, false}},
	}

	for _, tc := range cases {
		if got := Detect(tc.policy, tc.before, tc.after); got != tc.want {
			t.Fatalf("policy=%s: expected %+v, got %+v", tc.policy, tc.want, got)
		}
	}
}

func TestParseRescorePolicy(t *testing.T) {
	t.Parallel()

	if got, err := ParseRescorePolicy(""); err != nil || got != PolicyFinalizeOnly {
		t.Fatalf("expected default finalize-only, got %q err=%v", got, err)
	}
	if got, err := ParseRescorePolicy(" On-Correction "); err != nil || got != PolicyOnCorrection {
		t.Fatalf("expected on-correction, got %q err=%v", got, err)
	}
	if _, err := ParseRescorePolicy("always"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
