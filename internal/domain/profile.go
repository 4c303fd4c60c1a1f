// Package domain contains core domain types for the WritePal application.
package domain

import (
	"time"
)

// DemoUserID identifies the profile seeded on first start.
const DemoUserID = "demo_user"

// Submission is one past essay recorded in a learner's history.
type Submission struct {
	Date     string `json:"date" yaml:"date"`
	Topic    string `json:"topic" yaml:"topic"`
	Score    int    `json:"score" yaml:"score"`
	Comments string `json:"comments" yaml:"comments"`
}

// Profile describes a learner as known to the profile store.
type Profile struct {
	UserID     string       `json:"user_id" yaml:"user_id"`
	Age        int          `json:"age" yaml:"age"`
	Grade      int          `json:"grade" yaml:"grade"`
	SkillLevel string       `json:"skill_level" yaml:"skill_level"`
	WeakAreas  []string     `json:"weak_areas" yaml:"weak_areas"`
	History    []Submission `json:"history" yaml:"history"`
	CreatedAt  time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time    `json:"updated_at" yaml:"-"`
}

// IsEmpty reports whether the profile carries no learner data.
// The store returns an empty profile for unknown users.
func (p *Profile) IsEmpty() bool {
	return p == nil || (p.Age == 0 && p.Grade == 0 && p.SkillLevel == "" &&
		len(p.WeakAreas) == 0 && len(p.History) == 0)
}

// LastScore returns the score of the most recent submission.
func (p *Profile) LastScore() (int, bool) {
	if p == nil || len(p.History) == 0 {
		return 0, false
	}
	return p.History[len(p.History)-1].Score, true
}

// DemoProfile returns the profile used for the demo learner.
func DemoProfile() Profile {
	return Profile{
		UserID:     DemoUserID,
		Age:        8,
		Grade:      3,
		SkillLevel: "beginner",
		WeakAreas:  []string{"organization", "comma splices"},
		History: []Submission{
			{Date: "2023-09-01", Topic: "My Favorite Animal", Score: 85, Comments: "Good effort, but needs better structure."},
			{Date: "2023-09-15", Topic: "A Day at the Zoo", Score: 90, Comments: "Great use of descriptive language!"},
		},
	}
}
