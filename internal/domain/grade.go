package domain

// DefaultGrade is used when a profile has no grade or one outside MinGrade..MaxGrade.
const (
	MinGrade     = 1
	MaxGrade     = 6
	DefaultGrade = 3
)

// GradeGuide holds the writing expectations for one grade level.
type GradeGuide struct {
	Paragraphs int `json:"paragraphs"`
	MinWords   int `json:"min_words"`
	MaxWords   int `json:"max_words"`
}

var gradeGuides = map[int]GradeGuide{
	1: {Paragraphs: 2, MinWords: 40, MaxWords: 700},
	2: {Paragraphs: 3, MinWords: 60, MaxWords: 1000},
	3: {Paragraphs: 3, MinWords: 80, MaxWords: 1500},
	4: {Paragraphs: 4, MinWords: 120, MaxWords: 2000},
	5: {Paragraphs: 4, MinWords: 150, MaxWords: 3000},
	6: {Paragraphs: 5, MinWords: 200, MaxWords: 4000},
}

// NormalizeGrade maps unknown grades to DefaultGrade.
func NormalizeGrade(grade int) int {
	if grade < MinGrade || grade > MaxGrade {
		return DefaultGrade
	}
	return grade
}

// GuideForGrade returns the expectations for grade, falling back to DefaultGrade.
func GuideForGrade(grade int) GradeGuide {
	return gradeGuides[NormalizeGrade(grade)]
}
