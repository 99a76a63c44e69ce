package database

import (
	"github.com/carebook/routesheet/internal/services/tasks"
)

// Repositories bundles all database repositories.
type Repositories struct {
	Tasks           *TaskRepository
	Templates       *TemplateRepository
	Patients        *PatientRepository
	Users           *UserRepository
	Diaries         *DiaryRepository
	CorsConfig      *CorsConfigRepository
	RatelimitConfig *RatelimitConfigRepository
}

// NewRepositories creates all repositories from a database connection.
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Tasks:           NewTaskRepository(db),
		Templates:       NewTemplateRepository(db),
		Patients:        NewPatientRepository(db),
		Users:           NewUserRepository(db),
		Diaries:         NewDiaryRepository(db),
		CorsConfig:      NewCorsConfigRepository(db),
		RatelimitConfig: NewRatelimitConfigRepository(db),
	}
}

// Compile-time interface checks against the task engine.
var (
	_ tasks.TaskStore        = (*TaskRepository)(nil)
	_ tasks.TemplateStore    = (*TemplateRepository)(nil)
	_ tasks.PatientDirectory = (*PatientRepository)(nil)
	_ tasks.DiaryStore       = (*DiaryRepository)(nil)
)
