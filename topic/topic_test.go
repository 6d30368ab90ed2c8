package topic

import "testing"

func mustFilter(t *testing.T, s string) Filter {
	t.Helper()
	f, err := ParseFilter(s)
	if err != nil {
		t.Fatalf("ParseFilter(%q): %v", s, err)
	}
	return f
}

func mustName(t *testing.T, s string) Name {
	t.Helper()
	n, err := ParseName(s)
	if err != nil {
		t.Fatalf("ParseName(%q): %v", s, err)
	}
	return n
}

func TestParseNameRejectsWildcards(t *testing.T) {
	for _, s := range []string{"a/+", "a/#", "+", "#"} {
		if _, err := ParseName(s); err == nil {
			t.Fatalf("ParseName(%q): expected error", s)
		}
	}
}

func TestParseNameRejectsEmptyAndNull(t *testing.T) {
	if _, err := ParseName(""); err == nil {
		t.Fatal("expected error for empty topic name")
	}
	if _, err := ParseName("a/\x00/b"); err == nil {
		t.Fatal("expected error for null byte in topic name")
	}
}

func TestParseFilterValidForms(t *testing.T) {
	for _, s := range []string{"a", "a/b", "a/+", "a/+/c", "a/#", "+", "#", "+/+", "$share/g/a/b"} {
		if _, err := ParseFilter(s); err != nil {
			t.Fatalf("ParseFilter(%q): unexpected error: %v", s, err)
		}
	}
}

func TestParseFilterInvalidForms(t *testing.T) {
	for _, s := range []string{"a/#/b", "a#", "#a", "a/b+", "+a", ""} {
		if _, err := ParseFilter(s); err == nil {
			t.Fatalf("ParseFilter(%q): expected error", s)
		}
	}
}

func TestMatchesExactAndLiteral(t *testing.T) {
	if !Matches(mustFilter(t, "a/b/c"), mustName(t, "a/b/c")) {
		t.Fatal("expected literal match")
	}
	if Matches(mustFilter(t, "a/b/c"), mustName(t, "a/b/d")) {
		t.Fatal("expected literal mismatch")
	}
}

func TestMatchesSingleLevelWildcard(t *testing.T) {
	if !Matches(mustFilter(t, "a/+/c"), mustName(t, "a/b/c")) {
		t.Fatal("expected + to match a single level")
	}
	if Matches(mustFilter(t, "a/+/c"), mustName(t, "a/b/x/c")) {
		t.Fatal("+ must not match multiple levels")
	}
}

func TestMatchesMultiLevelWildcard(t *testing.T) {
	if !Matches(mustFilter(t, "a/#"), mustName(t, "a")) {
		t.Fatal("'#' must match zero additional levels")
	}
	if !Matches(mustFilter(t, "a/#"), mustName(t, "a/b/c/d")) {
		t.Fatal("'#' must match any number of additional levels")
	}
	if !Matches(mustFilter(t, "#"), mustName(t, "a/b/c")) {
		t.Fatal("bare '#' must match everything (except $-prefixed names)")
	}
}

func TestMatchesFewerTopicLevelsThanFilter(t *testing.T) {
	if Matches(mustFilter(t, "a/b/+"), mustName(t, "a/b")) {
		t.Fatal("filter with more levels than the topic name must not match")
	}
}

func TestMatchesDollarPrefixExcludedFromWildcardFirstLevel(t *testing.T) {
	if Matches(mustFilter(t, "#"), mustName(t, "$SYS/broker/version")) {
		t.Fatal("leading '#' must not match a $-prefixed topic")
	}
	if Matches(mustFilter(t, "+/broker"), mustName(t, "$SYS/broker")) {
		t.Fatal("leading '+' must not match a $-prefixed topic")
	}
	if !Matches(mustFilter(t, "$SYS/broker/+"), mustName(t, "$SYS/broker/version")) {
		t.Fatal("an explicit $SYS filter must still match")
	}
}

func TestHasWildcard(t *testing.T) {
	if mustFilter(t, "a/b").HasWildcard() {
		t.Fatal("literal filter reported as wildcard")
	}
	if !mustFilter(t, "a/+").HasWildcard() {
		t.Fatal("+ filter not reported as wildcard")
	}
}
