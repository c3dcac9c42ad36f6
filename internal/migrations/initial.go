package migrations

import (
	"context"
	"database/sql"
)

// GetInitialMigrations returns all initial migrations
func GetInitialMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_course_tables",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx, []string{
					`CREATE TABLE courses (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL UNIQUE,
						acronym TEXT NOT NULL DEFAULT '',
						enabled INTEGER NOT NULL DEFAULT 0,
						min_members INTEGER NOT NULL,
						max_members INTEGER NOT NULL,
						vcpu_max INTEGER NOT NULL,
						memory_max REAL NOT NULL,
						disk_max REAL NOT NULL,
						max_instances INTEGER NOT NULL,
						max_running_instances INTEGER NOT NULL,
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						CHECK (min_members >= 1 AND max_members >= min_members)
					)`,
					`CREATE TABLE students (
						id TEXT PRIMARY KEY,
						first_name TEXT NOT NULL DEFAULT '',
						last_name TEXT NOT NULL DEFAULT '',
						email TEXT NOT NULL DEFAULT '',
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE TABLE enrollments (
						course_id INTEGER NOT NULL,
						student_id TEXT NOT NULL,
						PRIMARY KEY (course_id, student_id),
						FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE,
						FOREIGN KEY (student_id) REFERENCES students(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE vm_models (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						course_id INTEGER NOT NULL UNIQUE,
						name TEXT NOT NULL,
						configuration TEXT NOT NULL DEFAULT '',
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
					)`,
				})
			},
			Down: func(ctx context.Context, tx *sql.Tx) error {
				// Drop tables in reverse order due to foreign key constraints
				return execAll(ctx, tx, []string{
					`DROP TABLE IF EXISTS vm_models`,
					`DROP TABLE IF EXISTS enrollments`,
					`DROP TABLE IF EXISTS students`,
					`DROP TABLE IF EXISTS courses`,
				})
			},
		},
		{
			Version: 2,
			Name:    "create_team_tables",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx, []string{
					`CREATE TABLE teams (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						course_id INTEGER NOT NULL,
						name TEXT NOT NULL,
						status TEXT NOT NULL,
						vcpu_max INTEGER NOT NULL,
						memory_max REAL NOT NULL,
						disk_max REAL NOT NULL,
						max_instances INTEGER NOT NULL,
						max_running_instances INTEGER NOT NULL,
						version INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						UNIQUE (course_id, name),
						FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE team_members (
						team_id INTEGER NOT NULL,
						student_id TEXT NOT NULL,
						position INTEGER NOT NULL,
						PRIMARY KEY (team_id, student_id),
						FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE,
						FOREIGN KEY (student_id) REFERENCES students(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE vm_instances (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						team_id INTEGER NOT NULL,
						vm_model_id INTEGER NOT NULL,
						vcpu INTEGER NOT NULL,
						memory REAL NOT NULL,
						disk REAL NOT NULL,
						status TEXT NOT NULL,
						creator_id TEXT NOT NULL,
						created_at DATETIME NOT NULL,
						FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE,
						FOREIGN KEY (vm_model_id) REFERENCES vm_models(id),
						FOREIGN KEY (creator_id) REFERENCES students(id)
					)`,
					`CREATE TABLE vm_owners (
						vm_id INTEGER NOT NULL,
						student_id TEXT NOT NULL,
						position INTEGER NOT NULL,
						PRIMARY KEY (vm_id, student_id),
						FOREIGN KEY (vm_id) REFERENCES vm_instances(id) ON DELETE CASCADE,
						FOREIGN KEY (student_id) REFERENCES students(id) ON DELETE CASCADE
					)`,
				})
			},
			Down: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx, []string{
					`DROP TABLE IF EXISTS vm_owners`,
					`DROP TABLE IF EXISTS vm_instances`,
					`DROP TABLE IF EXISTS team_members`,
					`DROP TABLE IF EXISTS teams`,
				})
			},
		},
		{
			Version: 3,
			Name:    "create_proposal_tables",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx, []string{
					`CREATE TABLE proposals (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						token TEXT NOT NULL UNIQUE,
						course_id INTEGER NOT NULL,
						team_name TEXT NOT NULL,
						requester_id TEXT NOT NULL,
						deadline DATETIME NOT NULL,
						created_at DATETIME NOT NULL,
						FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE,
						FOREIGN KEY (requester_id) REFERENCES students(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE proposal_invitees (
						proposal_id INTEGER NOT NULL,
						student_id TEXT NOT NULL,
						response TEXT NOT NULL,
						position INTEGER NOT NULL,
						PRIMARY KEY (proposal_id, student_id),
						FOREIGN KEY (proposal_id) REFERENCES proposals(id) ON DELETE CASCADE,
						FOREIGN KEY (student_id) REFERENCES students(id) ON DELETE CASCADE
					)`,
				})
			},
			Down: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx, []string{
					`DROP TABLE IF EXISTS proposal_invitees`,
					`DROP TABLE IF EXISTS proposals`,
				})
			},
		},
	}
}
