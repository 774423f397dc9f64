package binding

import (
	"testing"

	"github.com/bawdo/sqldivider/internal/testutil"
)

func TestBindJPAScenario(t *testing.T) {
	t.Parallel()
	got := Bind("select * from t where age >= :age", JPA, []Parameter{{Name: "age", Value: "18"}})
	testutil.AssertEqual(t, got, "select * from t where age >= 18")
}

func TestBindTokens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		pattern  Pattern
		template string
		want     string
	}{
		{MyBatis, "select * from t where id = #{id}", "select * from t where id = 7"},
		{JPA, "select * from t where id = :id", "select * from t where id = 7"},
		{Dapper, "select * from t where id = @id", "select * from t where id = 7"},
		{Log, "select * from t where id = $id", "select * from t where id = 7"},
	}
	params := []Parameter{{Name: "id", Value: "7"}}
	for _, tt := range tests {
		t.Run(tt.pattern.String(), func(t *testing.T) {
			testutil.AssertEqual(t, Bind(tt.template, tt.pattern, params), tt.want)
		})
	}
}

func TestBindGlobalReplacement(t *testing.T) {
	t.Parallel()
	params := []Parameter{{Name: "id", Value: "1"}}
	tests := []struct {
		pattern  Pattern
		template string
		want     string
	}{
		{MyBatis, "#{id} or #{id}", "1 or 1"},
		{JPA, ":id or :id", "1 or 1"},
		{Dapper, "@id or @id", "1 or 1"},
	}
	for _, tt := range tests {
		testutil.AssertEqual(t, Bind(tt.template, tt.pattern, params), tt.want)
	}
}

func TestBindLogReplacesFirstOccurrenceOnly(t *testing.T) {
	t.Parallel()
	got := Bind("$id or $id", Log, []Parameter{{Name: "id", Value: "1"}})
	testutil.AssertEqual(t, got, "1 or $id")
}

func TestBindLogRepeatedParameterConsumesNextOccurrence(t *testing.T) {
	t.Parallel()
	params := []Parameter{{Name: "id", Value: "1"}, {Name: "id", Value: "2"}}
	got := Bind("$id or $id", Log, params)
	testutil.AssertEqual(t, got, "1 or 2")
}

func TestBindPrefixCollision(t *testing.T) {
	t.Parallel()
	// ":a" is applied first and eats the head of ":ab".
	params := []Parameter{{Name: "a", Value: "1"}, {Name: "ab", Value: "2"}}
	got := Bind(":a and :ab", JPA, params)
	testutil.AssertEqual(t, got, "1 and 1b")
}

func TestBindPrefixCollisionReversedOrder(t *testing.T) {
	t.Parallel()
	params := []Parameter{{Name: "ab", Value: "2"}, {Name: "a", Value: "1"}}
	got := Bind(":a and :ab", JPA, params)
	testutil.AssertEqual(t, got, "1 and 2")
}

func TestBindUnmatchedPlaceholdersPassThrough(t *testing.T) {
	t.Parallel()
	template := "select #{x}, :x, @x, $x from t"
	for _, p := range Patterns() {
		got := Bind(template, p, []Parameter{{Name: "other", Value: "v"}})
		testutil.AssertEqual(t, got, template)
	}
}

func TestBindIdempotentOnUnmatched(t *testing.T) {
	t.Parallel()
	params := []Parameter{{Name: "age", Value: "18"}}
	for _, p := range Patterns() {
		once := Bind("where age >= "+p.Token("age")+" and name = "+p.Token("name"), p, params)
		twice := Bind(once, p, params)
		testutil.AssertEqual(t, twice, once)
	}
}

func TestBindEmptyParameters(t *testing.T) {
	t.Parallel()
	testutil.AssertEqual(t, Bind(":a", JPA, nil), ":a")
}

func TestBindDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	params := []Parameter{{Name: "a", Value: "1"}}
	_ = Bind(":a", JPA, params)
	testutil.AssertEqual(t, params[0], Parameter{Name: "a", Value: "1"})
}

func TestParsePattern(t *testing.T) {
	t.Parallel()
	for _, p := range Patterns() {
		got, err := ParsePattern(p.String())
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, got, p)
	}
	got, err := ParsePattern("  JPA ")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got, JPA)

	_, err = ParsePattern("sqlx")
	testutil.AssertError(t, err)
}

func TestPatternTextRoundTrip(t *testing.T) {
	t.Parallel()
	text, err := Dapper.MarshalText()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(text), "dapper")

	var p Pattern
	testutil.AssertNoError(t, p.UnmarshalText([]byte("log")))
	testutil.AssertEqual(t, p, Log)
	testutil.AssertError(t, p.UnmarshalText([]byte("nope")))
}
