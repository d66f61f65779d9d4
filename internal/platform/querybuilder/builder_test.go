package querybuilder

import (
	"reflect"
	"testing"
	"time"
)

func TestSelectBuilder(t *testing.T) {
	t.Parallel()

	query, args, err := Select("g.user_id", "g.points", "m.kickoff_at").
		From("guesses g").
		Join("JOIN matches m ON m.id = g.match_id").
		Where(Eq("g.user_id", "u1"), IsNotNull("g.scored_at"), IsNull("m.deleted_at")).
		OrderBy("m.kickoff_at", "g.match_id").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT g.user_id, g.points, m.kickoff_at FROM guesses g JOIN matches m ON m.id = g.match_id " +
		"WHERE g.user_id = $1 AND g.scored_at IS NOT NULL AND m.deleted_at IS NULL ORDER BY m.kickoff_at, g.match_id LIMIT 10"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "u1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilder_ForUpdateAndIn(t *testing.T) {
	t.Parallel()

	query, args, err := Select("user_id").
		From("user_scores").
		Where(In("user_id", []any{"a", "b"}), Expr("version >= ?", 2)).
		Suffix("FOR UPDATE").
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}
	want := "SELECT user_id FROM user_scores WHERE user_id IN ($1, $2) AND version >= $3 FOR UPDATE"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if !reflect.DeepEqual(args, []any{"a", "b", 2}) {
		t.Fatalf("unexpected args: %+v", args)
	}

	empty, _, _ := Select("id").From("matches").Where(In("id", nil)).ToSQL()
	if empty != "SELECT id FROM matches WHERE 1=0" {
		t.Fatalf("unexpected empty IN query: %s", empty)
	}
}

func TestInsertModel(t *testing.T) {
	t.Parallel()

	type row struct {
		ID        string    `db:"id"`
		HomeScore *int      `db:"home_score"`
		KickoffAt time.Time `db:"kickoff_at"`
		Ignored   string    `db:"-"`
		internal  string
	}

	kickoff := time.Date(2026, 5, 3, 19, 0, 0, 0, time.UTC)
	query, args, err := InsertModel("matches", row{ID: "m1", KickoffAt: kickoff, internal: "x"},
		"ON CONFLICT (id) DO UPDATE SET kickoff_at = EXCLUDED.kickoff_at")
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	want := "INSERT INTO matches (id, home_score, kickoff_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET kickoff_at = EXCLUDED.kickoff_at"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 3 || args[0] != "m1" {
		t.Fatalf("unexpected args: %+v", args)
	}

	if _, _, err := InsertModel("matches", (*row)(nil), ""); err == nil {
		t.Fatalf("expected nil model error")
	}
}

func TestUpdateBuilder(t *testing.T) {
	t.Parallel()

	query, args, err := Update("user_scores").
		Set("total_score", 43).
		SetExpr("version", "version + 1").
		SetExpr("updated_at", "?", "now").
		Where(Eq("user_id", "u1")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	want := "UPDATE user_scores SET total_score = $1, version = version + 1, updated_at = $2 WHERE user_id = $3"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if !reflect.DeepEqual(args, []any{43, "now", "u1"}) {
		t.Fatalf("unexpected args: %+v", args)
	}
}
