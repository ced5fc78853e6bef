package domain

import "time"

type Child struct {
	ID        int64     `json:"id"`
	ParentID  int64     `json:"parent_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthYear int       `json:"birth_year"`
	CreatedAt time.Time `json:"created_at"`
}

// SkillLog records one practice entry for a child's skill.
type SkillLog struct {
	ID        int64     `json:"id"`
	ChildID   int64     `json:"child_id"`
	Skill     string    `json:"skill"`
	Note      string    `json:"note"`
	Minutes   int       `json:"minutes"`
	LoggedAt  time.Time `json:"logged_at"`
	CreatedAt time.Time `json:"created_at"`
}

// EvaluationLog records a tutor evaluation of a child's progress.
type EvaluationLog struct {
	ID        int64     `json:"id"`
	ChildID   int64     `json:"child_id"`
	Subject   string    `json:"subject"`
	Score     int       `json:"score"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
