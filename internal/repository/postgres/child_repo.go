package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
)

type ChildRepo struct {
	DB *sql.DB
}

func NewChildRepo(db *sql.DB) *ChildRepo {
	return &ChildRepo{DB: db}
}

// CreateChild registers a child under a parent account
func (r *ChildRepo) CreateChild(parentID int64, firstName, lastName string, birthYear int) (int64, error) {
	query := `
	INSERT INTO children (parent_id, first_name, last_name, birth_year)
	VALUES ($1, $2, $3, $4)
	RETURNING id;
	`
	var childID int64
	err := r.DB.QueryRow(query, parentID, firstName, lastName, birthYear).Scan(&childID)
	if err != nil {
		return 0, fmt.Errorf("failed to create child: %v", err)
	}
	return childID, nil
}

// GetChildByID retrieves a child by id. Returns nil, nil when not found.
func (r *ChildRepo) GetChildByID(id int64) (*domain.Child, error) {
	query := `
	SELECT id, parent_id, first_name, last_name, birth_year, created_at
	FROM children
	WHERE id = $1;
	`
	var c domain.Child
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.ParentID, &c.FirstName, &c.LastName, &c.BirthYear, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %v", err)
	}
	return &c, nil
}

// ListChildrenByParent returns all children registered by a parent
func (r *ChildRepo) ListChildrenByParent(parentID int64) ([]domain.Child, error) {
	query := `
	SELECT id, parent_id, first_name, last_name, birth_year, created_at
	FROM children
	WHERE parent_id = $1
	ORDER BY created_at;
	`
	rows, err := r.DB.Query(query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %v", err)
	}
	defer rows.Close()

	var children []domain.Child
	for rows.Next() {
		var c domain.Child
		if err := rows.Scan(&c.ID, &c.ParentID, &c.FirstName, &c.LastName, &c.BirthYear, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan child row: %v", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate child rows: %v", err)
	}
	return children, nil
}

// UpdateChild updates a child's display fields
func (r *ChildRepo) UpdateChild(id int64, firstName, lastName string, birthYear int) error {
	query := `UPDATE children SET first_name = $2, last_name = $3, birth_year = $4 WHERE id = $1;`
	_, err := r.DB.Exec(query, id, firstName, lastName, birthYear)
	if err != nil {
		return fmt.Errorf("failed to update child: %v", err)
	}
	return nil
}

// DeleteChild removes a child and, via cascade, its logs
func (r *ChildRepo) DeleteChild(id int64) error {
	query := `DELETE FROM children WHERE id = $1;`
	_, err := r.DB.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete child: %v", err)
	}
	return nil
}

// CreateSkillLog records one practice entry
func (r *ChildRepo) CreateSkillLog(childID int64, skill, note string, minutes int, loggedAt time.Time) (int64, error) {
	query := `
	INSERT INTO skill_logs (child_id, skill, note, minutes, logged_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id;
	`
	var id int64
	err := r.DB.QueryRow(query, childID, skill, note, minutes, loggedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create skill log: %v", err)
	}
	return id, nil
}

// ListSkillLogs returns recent skill logs for a child
func (r *ChildRepo) ListSkillLogs(childID int64, limit int) ([]domain.SkillLog, error) {
	query := `
	SELECT id, child_id, skill, note, minutes, logged_at, created_at
	FROM skill_logs
	WHERE child_id = $1
	ORDER BY logged_at DESC
	LIMIT $2;
	`
	rows, err := r.DB.Query(query, childID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list skill logs: %v", err)
	}
	defer rows.Close()

	var logs []domain.SkillLog
	for rows.Next() {
		var l domain.SkillLog
		if err := rows.Scan(&l.ID, &l.ChildID, &l.Skill, &l.Note, &l.Minutes, &l.LoggedAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan skill log row: %v", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate skill log rows: %v", err)
	}
	return logs, nil
}

// DeleteSkillLog removes a single practice entry. Scoped to the child so a
// log id from another child's history cannot be deleted through it.
func (r *ChildRepo) DeleteSkillLog(childID, logID int64) error {
	query := `DELETE FROM skill_logs WHERE child_id = $1 AND id = $2;`
	_, err := r.DB.Exec(query, childID, logID)
	if err != nil {
		return fmt.Errorf("failed to delete skill log: %v", err)
	}
	return nil
}

// CreateEvaluation records a tutor evaluation
func (r *ChildRepo) CreateEvaluation(childID int64, subject string, score int, summary string) (int64, error) {
	query := `
	INSERT INTO evaluation_logs (child_id, subject, score, summary)
	VALUES ($1, $2, $3, $4)
	RETURNING id;
	`
	var id int64
	err := r.DB.QueryRow(query, childID, subject, score, summary).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create evaluation: %v", err)
	}
	return id, nil
}

// ListEvaluations returns recent evaluations for a child
func (r *ChildRepo) ListEvaluations(childID int64, limit int) ([]domain.EvaluationLog, error) {
	query := `
	SELECT id, child_id, subject, score, summary, created_at
	FROM evaluation_logs
	WHERE child_id = $1
	ORDER BY created_at DESC
	LIMIT $2;
	`
	rows, err := r.DB.Query(query, childID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %v", err)
	}
	defer rows.Close()

	var evals []domain.EvaluationLog
	for rows.Next() {
		var e domain.EvaluationLog
		if err := rows.Scan(&e.ID, &e.ChildID, &e.Subject, &e.Score, &e.Summary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation row: %v", err)
		}
		evals = append(evals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evaluation rows: %v", err)
	}
	return evals, nil
}
