package intent

import "testing"

func TestClassifyAboutProblemPassesThrough(t *testing.T) {
	decision := Default().Classify("giải thích đề bài này")
	if !decision.AboutProblem {
		t.Fatal("expected about-problem match")
	}
	if decision.SyntaxSolution {
		t.Fatal("unexpected syntax match")
	}
	if decision.Refuse() {
		t.Fatal("about-problem prompt must not be refused")
	}
}

func TestClassifySyntaxOnlyIsRefused(t *testing.T) {
	decision := Default().Classify("viết code cho bài này")
	if !decision.SyntaxSolution || decision.AboutProblem {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	if !decision.Refuse() {
		t.Fatal("syntax-only prompt must be refused")
	}
}

func TestClassifyOutputExplanationPassesThrough(t *testing.T) {
	decision := Default().Classify("giải thích output được tính như thế nào")
	if !decision.AboutProblem {
		t.Fatal("expected about-problem match")
	}
	if decision.Refuse() {
		t.Fatal("output explanation must not be refused")
	}
}

func TestClassifyBothFamiliesPassesThrough(t *testing.T) {
	decision := Default().Classify("Không hiểu đề, cho tôi code mẫu được không")
	if !decision.AboutProblem || !decision.SyntaxSolution {
		t.Fatalf("expected both families, got %+v", decision)
	}
	if decision.Refuse() {
		t.Fatal("about-problem wins when both families match")
	}
}

func TestClassifyIsCaseInsensitiveAndAcceptsPlainSpelling(t *testing.T) {
	for _, prompt := range []string{"VIẾT CODE giúp mình", "viet code giup minh", "Cú Pháp của for"} {
		if !Default().Classify(prompt).Refuse() {
			t.Fatalf("expected refusal for %q", prompt)
		}
	}
}

func TestClassifyDecomposedInput(t *testing.T) {
	// "giải thích đề này" written with combining marks
	decomposed := "gia\u0309i thi\u0301ch \u0111e\u0302\u0300 na\u0300y"
	if !Default().Classify(decomposed).AboutProblem {
		t.Fatal("expected decomposed input to match after normalisation")
	}
}

func TestClassifyNeutralPrompt(t *testing.T) {
	decision := Default().Classify("xin chào")
	if decision.AboutProblem || decision.SyntaxSolution || decision.Refuse() {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestParseTableRejectsMissingFamily(t *testing.T) {
	_, err := ParseTable([]byte("families:\n  about_problem: [a]\nrefusal: no\n"))
	if err == nil {
		t.Fatal("expected error for missing syntax_solution family")
	}
}

func TestRefusalLoaded(t *testing.T) {
	if Default().Refusal() == "" {
		t.Fatal("refusal text is empty")
	}
}

func TestClassifyPlainAndAccentedSpellingsAgree(t *testing.T) {
	pairs := [][2]string{
		{"viết code bài này", "viet code bai nay"},
		{"giải thích đề bài này", "giai thich de bai nay"},
		{"đề bài này nghĩa là gì", "de bai nay nghia la gi"},
	}
	for _, pair := range pairs {
		accented, plain := Default().Classify(pair[0]), Default().Classify(pair[1])
		if accented != plain {
			t.Fatalf("%q -> %+v but %q -> %+v", pair[0], accented, pair[1], plain)
		}
	}
	if !Default().Classify("viet code bai nay").Refuse() {
		t.Fatal("expected refusal for plain-spelled code request")
	}
}

func TestPhrasesMatchAtWordStart(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"de bai", true},
		{"xem de bai nay", true},
		{"(de bai)", true},
		{"code bai nay", false},
		{"code bai, de bai", true},
	}
	for _, tt := range tests {
		if got := containsWord(tt.text, "de bai"); got != tt.want {
			t.Fatalf("containsWord(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
