package summary

import (
	"errors"
	"strings"
	"testing"
)

const conversationFixture = `User:
Mira, tell me about the lighthouse on the cliff.

Mira:
The lighthouse has stood empty since the storm. The keeper vanished, and the villagers say his lantern still burns some nights.

User:
Then we should climb up there tonight and see the lantern ourselves.
`

func TestParseModelOutputParsed(t *testing.T) {
	raw := `{"title": "The Lighthouse Pact", "summary": "The pair resolved to climb the cliff.", "keywords": ["Lighthouse", "lantern", "lighthouse", "Keeper"]}`

	result, err := ParseModelOutput(raw, conversationFixture, "Mira")
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != ParseOutcomeParsed {
		t.Fatalf("Outcome = %s, want parsed", result.Outcome)
	}
	if result.Title != "The Lighthouse Pact" {
		t.Errorf("Title = %q", result.Title)
	}
	if result.Prose != "The pair resolved to climb the cliff." {
		t.Errorf("Prose = %q", result.Prose)
	}

	want := []string{"lighthouse", "lantern", "keeper", "mira"}
	if len(result.Keywords) != len(want) {
		t.Fatalf("Keywords = %v, want %v", result.Keywords, want)
	}
	for i, kw := range want {
		if result.Keywords[i] != kw {
			t.Errorf("Keywords[%d] = %q, want %q", i, result.Keywords[i], kw)
		}
	}
}

func TestParseModelOutputStripsCodeFences(t *testing.T) {
	raw := "```json\n" + `{"title": "T", "summary": "Body.", "keywords": ["cliff"]}` + "\n```"

	result, err := ParseModelOutput(raw, conversationFixture, "Mira")
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != ParseOutcomeParsed {
		t.Errorf("Outcome = %s, want parsed", result.Outcome)
	}
	if result.Prose != "Body." {
		t.Errorf("Prose = %q", result.Prose)
	}
}

func TestParseModelOutputMissingKeywords(t *testing.T) {
	raw := `{ "summary": "Hi" }`

	result, err := ParseModelOutput(raw, conversationFixture, "Mira")
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != ParseOutcomePartial {
		t.Fatalf("Outcome = %s, want partial", result.Outcome)
	}
	if result.Prose != "Hi" {
		t.Errorf("Prose = %q", result.Prose)
	}
	if len(result.Keywords) == 0 || result.Keywords[0] != "mira" {
		t.Errorf("Keywords = %v, want character name first", result.Keywords)
	}
}

func TestParseModelOutputRegexRecovery(t *testing.T) {
	// Truncated JSON with trailing commentary defeats the parser but still
	// carries a quoted summary field.
	raw := `Here is the summary you asked for: {"title": "T", "summary": "The keeper\nvanished in the storm.", "keywords": ["one", ...`

	result, err := ParseModelOutput(raw, conversationFixture, "Mira")
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != ParseOutcomePartial {
		t.Fatalf("Outcome = %s, want partial", result.Outcome)
	}
	if result.Prose != "The keeper\nvanished in the storm." {
		t.Errorf("Prose = %q", result.Prose)
	}
	if result.Title != "Conversation with Mira" {
		t.Errorf("Title = %q", result.Title)
	}
}

func TestParseModelOutputFallback(t *testing.T) {
	raw := "The two of them talked about the lighthouse and decided to climb the cliff at night."

	result, err := ParseModelOutput(raw, conversationFixture, "Mira")
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != ParseOutcomeFallback {
		t.Fatalf("Outcome = %s, want fallback", result.Outcome)
	}
	if result.Prose != raw {
		t.Errorf("Prose = %q, want raw output", result.Prose)
	}
	if result.Keywords[0] != "mira" {
		t.Errorf("Keywords = %v, want character name first", result.Keywords)
	}
}

func TestParseModelOutputEmpty(t *testing.T) {
	for _, raw := range []string{"", "   \n  ", "```\n```"} {
		if _, err := ParseModelOutput(raw, conversationFixture, "Mira"); !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("ParseModelOutput(%q) error = %v, want ErrEmptyResponse", raw, err)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	text := strings.Repeat("lighthouse ", 5) + strings.Repeat("lantern ", 3) + "cliff storm the and with about"

	keywords := ExtractKeywords(text, "Mira", 4)
	if len(keywords) > 4 {
		t.Fatalf("got %d keywords, want at most 4", len(keywords))
	}
	if keywords[0] != "mira" {
		t.Errorf("keywords[0] = %q, want character name", keywords[0])
	}
	if keywords[1] != "lighthouse" || keywords[2] != "lantern" {
		t.Errorf("keywords = %v, want frequency order after name", keywords)
	}
	for _, kw := range keywords {
		if stopwords[kw] {
			t.Errorf("stopword %q leaked into keywords", kw)
		}
	}
}

func TestExtractKeywordsDeterministic(t *testing.T) {
	text := "cliff storm cliff storm lantern keeper"
	a := ExtractKeywords(text, "Mira", 10)
	b := ExtractKeywords(text, "Mira", 10)

	if len(a) != len(b) {
		t.Fatalf("non-deterministic length: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic order: %v vs %v", a, b)
		}
	}
}
