package domain

import "testing"

func TestGradeGuideWordBounds(t *testing.T) {
	for grade := MinGrade; grade <= MaxGrade; grade++ {
		g := GuideForGrade(grade)
		if g.MinWords >= g.MaxWords {
			t.Errorf("grade %d: min words %d not below max %d", grade, g.MinWords, g.MaxWords)
		}
	}
}

func TestGradeGuideParagraphsNonDecreasing(t *testing.T) {
	prev := 0
	for grade := MinGrade; grade <= MaxGrade; grade++ {
		g := GuideForGrade(grade)
		if g.Paragraphs < prev {
			t.Errorf("grade %d: paragraphs %d below grade %d's %d", grade, g.Paragraphs, grade-1, prev)
		}
		prev = g.Paragraphs
	}
}

func TestGuideForGradeFallsBack(t *testing.T) {
	want := GuideForGrade(DefaultGrade)
	for _, grade := range []int{0, -1, 7, 12} {
		if got := GuideForGrade(grade); got != want {
			t.Errorf("grade %d: expected fallback %+v, got %+v", grade, want, got)
		}
	}
}

func TestProfileLastScore(t *testing.T) {
	p := DemoProfile()
	score, ok := p.LastScore()
	if !ok || score != 90 {
		t.Fatalf("expected last score 90, got %d (ok=%v)", score, ok)
	}

	var empty Profile
	if _, ok := empty.LastScore(); ok {
		t.Fatal("expected no last score for empty profile")
	}
	if !empty.IsEmpty() {
		t.Fatal("expected zero profile to be empty")
	}
}
