package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ump-quiz/quiz-backend/internal/model"
)

const studentColumns = `id, full_name, class, school, student_number, phone, email, created_at, updated_at`

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func scanStudent(row interface{ Scan(dest ...any) error }) (*model.Student, error) {
	s := &model.Student{}
	err := row.Scan(&s.ID, &s.FullName, &s.Class, &s.School, &s.StudentNumber, &s.Phone, &s.Email, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
}

// FindLatest returns the most recently created student with exactly this identity.
func (r *StudentRepository) FindLatest(ctx context.Context, fullName, class, school string) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+`
		 FROM students
		 WHERE full_name = $1 AND class = $2 AND school = $3
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, fullName, class, school))
}

// Create inserts a new student and fills in the generated fields.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO students (full_name, class, school, student_number, phone, email)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		s.FullName, s.Class, s.School, s.StudentNumber, s.Phone, s.Email,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}
