package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/landmark"
)

// Template is a recorded reference pose for a gesture label.
type Template struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Label     gesture.Label      `json:"label"`
	Tolerance float64            `json:"tolerance"`
	Landmarks []landmark.Point3D `json:"landmarks,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Gesture converts the stored template into a classifier template.
func (t *Template) Gesture() *gesture.Template {
	points := make([]landmark.Point3D, len(t.Landmarks))
	copy(points, t.Landmarks)
	return &gesture.Template{
		ID:        t.ID,
		Name:      t.Name,
		Label:     t.Label,
		Landmarks: points,
		Tolerance: t.Tolerance,
	}
}

// TemplateRepository provides CRUD operations for templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

// Create inserts t and its landmarks. An empty ID is filled with a new UUID.
func (r *TemplateRepository) Create(t *Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO templates (id, name, label, tolerance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Label.String(), t.Tolerance, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if err := writeLandmarks(tx, t.ID, t.Landmarks); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a template with its landmarks.
func (r *TemplateRepository) GetByID(id string) (*Template, error) {
	t := &Template{}
	var label string

	err := r.db.QueryRow(
		`SELECT id, name, label, tolerance, created_at, updated_at
		 FROM templates WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.Name, &label, &t.Tolerance, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if t.Label, err = gesture.ParseLabel(label); err != nil {
		return nil, fmt.Errorf("template %s: %w", id, err)
	}
	if t.Landmarks, err = r.landmarks(id); err != nil {
		return nil, err
	}
	return t, nil
}

// List retrieves every template, newest first. Landmarks are included only
// when withLandmarks is set.
func (r *TemplateRepository) List(withLandmarks bool) ([]*Template, error) {
	rows, err := r.db.Query(
		`SELECT id, name, label, tolerance, created_at, updated_at
		 FROM templates ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		var label string
		if err := rows.Scan(&t.ID, &t.Name, &label, &t.Tolerance, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if t.Label, err = gesture.ParseLabel(label); err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if withLandmarks {
		for _, t := range templates {
			if t.Landmarks, err = r.landmarks(t.ID); err != nil {
				return nil, err
			}
		}
	}
	return templates, nil
}

// Update rewrites the template row. Landmarks are replaced when t carries
// any, otherwise the stored ones are kept.
func (r *TemplateRepository) Update(t *Template) error {
	t.UpdatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE templates SET name = ?, label = ?, tolerance = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.Label.String(), t.Tolerance, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}

	if len(t.Landmarks) > 0 {
		if _, err := tx.Exec(`DELETE FROM template_landmarks WHERE template_id = ?`, t.ID); err != nil {
			return err
		}
		if err := writeLandmarks(tx, t.ID, t.Landmarks); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a template and its landmarks.
func (r *TemplateRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// Classifier returns every stored template converted for matching.
func (r *TemplateRepository) Classifier() ([]*gesture.Template, error) {
	stored, err := r.List(true)
	if err != nil {
		return nil, err
	}
	out := make([]*gesture.Template, 0, len(stored))
	for _, t := range stored {
		out = append(out, t.Gesture())
	}
	return out, nil
}

func (r *TemplateRepository) landmarks(id string) ([]landmark.Point3D, error) {
	rows, err := r.db.Query(
		`SELECT x, y, z FROM template_landmarks
		 WHERE template_id = ? ORDER BY landmark_index`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []landmark.Point3D
	for rows.Next() {
		var p landmark.Point3D
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func writeLandmarks(tx *sql.Tx, id string, points []landmark.Point3D) error {
	if len(points) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(
		`INSERT INTO template_landmarks (template_id, landmark_index, x, y, z)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range points {
		if _, err := stmt.Exec(id, i, p.X, p.Y, p.Z); err != nil {
			return err
		}
	}
	return nil
}
