package migrations

import (
	"context"
	"database/sql"
)

// GetIndexMigrations returns lookup index migrations
func GetIndexMigrations() []Migration {
	return []Migration{
		{
			Version: 10,
			Name:    "add_lookup_indices",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx, []string{
					"CREATE INDEX IF NOT EXISTS idx_enrollments_student_id ON enrollments(student_id)",
					"CREATE INDEX IF NOT EXISTS idx_teams_course_id ON teams(course_id)",
					"CREATE INDEX IF NOT EXISTS idx_team_members_student_id ON team_members(student_id)",
					"CREATE INDEX IF NOT EXISTS idx_vm_instances_team_id ON vm_instances(team_id)",
					"CREATE INDEX IF NOT EXISTS idx_vm_owners_student_id ON vm_owners(student_id)",
					"CREATE INDEX IF NOT EXISTS idx_proposals_course_id ON proposals(course_id)",
				})
			},
			Down: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx, []string{
					"DROP INDEX IF EXISTS idx_enrollments_student_id",
					"DROP INDEX IF EXISTS idx_teams_course_id",
					"DROP INDEX IF EXISTS idx_team_members_student_id",
					"DROP INDEX IF EXISTS idx_vm_instances_team_id",
					"DROP INDEX IF EXISTS idx_vm_owners_student_id",
					"DROP INDEX IF EXISTS idx_proposals_course_id",
				})
			},
		},
	}
}
