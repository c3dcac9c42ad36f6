package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jbweber/homelab/labpool/internal/aggregate"
	"github.com/jbweber/homelab/labpool/internal/domain"
)

// TeamRepository loads and stores whole team aggregates: the team row, its
// members, its VM instances and their owners.
type TeamRepository interface {
	Repository[*aggregate.Team, int64]
	FindByCourse(ctx context.Context, courseID int64) ([]*aggregate.Team, error)
	FindByCourseAndName(ctx context.Context, courseID int64, name string) (*aggregate.Team, error)
}

// teamRepositoryImpl implements TeamRepository
type teamRepositoryImpl struct {
	sqlRepository
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(q Querier) TeamRepository {
	return &teamRepositoryImpl{sqlRepository: newSQLRepository(q, "teams", "team")}
}

const selectTeam = `
	SELECT id, course_id, name, status, vcpu_max, memory_max, disk_max,
		max_instances, max_running_instances, version
	FROM teams`

// Save creates a new team or writes back a loaded one. Updates only succeed
// if the stored version still matches the aggregate's, otherwise
// ErrStaleVersion is returned. New VM instances get their ids assigned.
func (r *teamRepositoryImpl) Save(ctx context.Context, team *aggregate.Team) (*aggregate.Team, error) {
	if team == nil || team.Name == "" || team.CourseID == 0 {
		return nil, fmt.Errorf("team name and course are required: %w", ErrInvalidEntity)
	}

	if team.ID == 0 {
		if err := r.insertTeam(ctx, team); err != nil {
			return nil, err
		}
	} else if err := r.updateTeam(ctx, team); err != nil {
		return nil, err
	}

	cache := NewPreparedStatementCache(r.q)
	defer cache.Close()

	if err := r.saveMembers(ctx, cache, team); err != nil {
		return nil, err
	}
	if err := r.saveVms(ctx, cache, team); err != nil {
		return nil, err
	}
	return team, nil
}

func (r *teamRepositoryImpl) insertTeam(ctx context.Context, team *aggregate.Team) error {
	caps := team.Caps
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO teams (course_id, name, status, vcpu_max, memory_max, disk_max,
			max_instances, max_running_instances, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		team.CourseID, team.Name, team.Status, caps.VcpuMax, caps.MemoryMax, caps.DiskMax,
		caps.MaxInstances, caps.MaxRunningInstances)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("team with name '%s' in course %d: %w", team.Name, team.CourseID, ErrDuplicate)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("course with ID %d: %w", team.CourseID, ErrNotFound)
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get team ID: %w", err)
	}
	team.ID = id
	team.Version = 1
	return nil
}

func (r *teamRepositoryImpl) updateTeam(ctx context.Context, team *aggregate.Team) error {
	caps := team.Caps
	result, err := r.q.ExecContext(ctx, `
		UPDATE teams
		SET name = ?, status = ?, vcpu_max = ?, memory_max = ?, disk_max = ?,
			max_instances = ?, max_running_instances = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`,
		team.Name, team.Status, caps.VcpuMax, caps.MemoryMax, caps.DiskMax,
		caps.MaxInstances, caps.MaxRunningInstances, team.ID, team.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("team with name '%s' in course %d: %w", team.Name, team.CourseID, ErrDuplicate)
		}
		return fmt.Errorf("failed to update team: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		exists, err := r.existsByID(ctx, team.ID)
		if err != nil {
			return err
		}
		if !exists {
			return r.notFound(team.ID)
		}
		return fmt.Errorf("team %d at version %d: %w", team.ID, team.Version, ErrStaleVersion)
	}
	team.Version++
	return nil
}

func (r *teamRepositoryImpl) saveMembers(ctx context.Context, cache *PreparedStatementCache, team *aggregate.Team) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM team_members WHERE team_id = ?", team.ID); err != nil {
		return fmt.Errorf("failed to clear team members: %w", err)
	}
	for i, member := range team.Members {
		_, err := cache.Exec(ctx, "INSERT INTO team_members (team_id, student_id, position) VALUES (?, ?, ?)", team.ID, member, i)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("student with ID %s: %w", member, ErrNotFound)
			}
			return fmt.Errorf("failed to add team member %s: %w", member, err)
		}
	}
	return nil
}

func (r *teamRepositoryImpl) saveVms(ctx context.Context, cache *PreparedStatementCache, team *aggregate.Team) error {
	stored, err := r.vmIDs(ctx, team.ID)
	if err != nil {
		return err
	}

	kept := make(map[int64]bool, len(team.Vms))
	for _, vm := range team.Vms {
		if vm.ID != 0 {
			kept[vm.ID] = true
		}
	}
	for _, id := range stored {
		if kept[id] {
			continue
		}
		if _, err := cache.Exec(ctx, "DELETE FROM vm_instances WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete vm %d: %w", id, err)
		}
	}

	for i := range team.Vms {
		vm := &team.Vms[i]
		vm.TeamID = team.ID
		if vm.ID == 0 {
			if vm.CreatedAt.IsZero() {
				vm.CreatedAt = time.Now().UTC()
			}
			result, err := cache.Exec(ctx, `
				INSERT INTO vm_instances (team_id, vm_model_id, vcpu, memory, disk, status, creator_id, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				vm.TeamID, vm.VmModelID, vm.Size.Vcpu, vm.Size.Memory, vm.Size.Disk, vm.Status, vm.CreatorID, vm.CreatedAt)
			if err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("vm model %d or creator %s: %w", vm.VmModelID, vm.CreatorID, ErrNotFound)
				}
				return fmt.Errorf("failed to create vm: %w", err)
			}
			if vm.ID, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get vm ID: %w", err)
			}
		} else {
			_, err := cache.Exec(ctx, "UPDATE vm_instances SET vcpu = ?, memory = ?, disk = ?, status = ? WHERE id = ?",
				vm.Size.Vcpu, vm.Size.Memory, vm.Size.Disk, vm.Status, vm.ID)
			if err != nil {
				return fmt.Errorf("failed to update vm %d: %w", vm.ID, err)
			}
			if _, err := cache.Exec(ctx, "DELETE FROM vm_owners WHERE vm_id = ?", vm.ID); err != nil {
				return fmt.Errorf("failed to clear owners of vm %d: %w", vm.ID, err)
			}
		}

		for pos, owner := range vm.Owners {
			_, err := cache.Exec(ctx, "INSERT INTO vm_owners (vm_id, student_id, position) VALUES (?, ?, ?)", vm.ID, owner, pos)
			if err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("student with ID %s: %w", owner, ErrNotFound)
				}
				return fmt.Errorf("failed to add owner %s to vm %d: %w", owner, vm.ID, err)
			}
		}
	}
	return nil
}

func (r *teamRepositoryImpl) vmIDs(ctx context.Context, teamID int64) (ids []int64, err error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id FROM vm_instances WHERE team_id = ?", teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vm ids: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vm id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindByID loads a full team aggregate
func (r *teamRepositoryImpl) FindByID(ctx context.Context, id int64) (*aggregate.Team, error) {
	teams, err := r.load(ctx, selectTeam+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, r.notFound(id)
	}
	return teams[0], nil
}

// FindByCourseAndName loads the team with the given name in a course
func (r *teamRepositoryImpl) FindByCourseAndName(ctx context.Context, courseID int64, name string) (*aggregate.Team, error) {
	teams, err := r.load(ctx, selectTeam+" WHERE course_id = ? AND name = ?", courseID, name)
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("team with name '%s' in course %d: %w", name, courseID, ErrNotFound)
	}
	return teams[0], nil
}

// FindByCourse loads every team of a course
func (r *teamRepositoryImpl) FindByCourse(ctx context.Context, courseID int64) ([]*aggregate.Team, error) {
	return r.load(ctx, selectTeam+" WHERE course_id = ? ORDER BY name", courseID)
}

// FindAll loads every team
func (r *teamRepositoryImpl) FindAll(ctx context.Context) ([]*aggregate.Team, error) {
	return r.load(ctx, selectTeam+" ORDER BY id")
}

// DeleteByID removes a team; members, VMs and owners cascade
func (r *teamRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, id)
}

// ExistsByID checks if a team exists by its ID
func (r *teamRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.existsByID(ctx, id)
}

// load reads the matching team rows, then fills in members and VMs. Each
// result set is drained before the next query runs.
func (r *teamRepositoryImpl) load(ctx context.Context, query string, args ...any) ([]*aggregate.Team, error) {
	teams, err := r.headers(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, team := range teams {
		if team.Members, err = r.members(ctx, team.ID); err != nil {
			return nil, err
		}
		if team.Vms, err = r.vms(ctx, team.ID); err != nil {
			return nil, err
		}
	}
	return teams, nil
}

func (r *teamRepositoryImpl) headers(ctx context.Context, query string, args ...any) (teams []*aggregate.Team, err error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find teams: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		t := &aggregate.Team{}
		err := rows.Scan(&t.ID, &t.CourseID, &t.Name, &t.Status,
			&t.Caps.VcpuMax, &t.Caps.MemoryMax, &t.Caps.DiskMax,
			&t.Caps.MaxInstances, &t.Caps.MaxRunningInstances, &t.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}
	return teams, nil
}

func (r *teamRepositoryImpl) members(ctx context.Context, teamID int64) (members []string, err error) {
	rows, err := r.q.QueryContext(ctx, "SELECT student_id FROM team_members WHERE team_id = ? ORDER BY position", teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to find team members: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (r *teamRepositoryImpl) vms(ctx context.Context, teamID int64) ([]domain.VmInstance, error) {
	vms, err := r.vmRows(ctx, teamID)
	if err != nil {
		return nil, err
	}
	owners, err := r.owners(ctx, teamID)
	if err != nil {
		return nil, err
	}
	for i := range vms {
		vms[i].Owners = owners[vms[i].ID]
	}
	return vms, nil
}

func (r *teamRepositoryImpl) vmRows(ctx context.Context, teamID int64) (vms []domain.VmInstance, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, team_id, vm_model_id, vcpu, memory, disk, status, creator_id, created_at
		FROM vm_instances WHERE team_id = ? ORDER BY id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to find vms: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		var vm domain.VmInstance
		err := rows.Scan(&vm.ID, &vm.TeamID, &vm.VmModelID, &vm.Size.Vcpu, &vm.Size.Memory, &vm.Size.Disk,
			&vm.Status, &vm.CreatorID, &vm.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vm: %w", err)
		}
		vms = append(vms, vm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vms: %w", err)
	}
	return vms, nil
}

func (r *teamRepositoryImpl) owners(ctx context.Context, teamID int64) (owners map[int64][]string, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT o.vm_id, o.student_id
		FROM vm_owners o JOIN vm_instances v ON v.id = o.vm_id
		WHERE v.team_id = ? ORDER BY o.vm_id, o.position`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to find vm owners: %w", err)
	}
	defer closeRows(rows, &err)

	owners = make(map[int64][]string)
	for rows.Next() {
		var vmID int64
		var studentID string
		if err := rows.Scan(&vmID, &studentID); err != nil {
			return nil, fmt.Errorf("failed to scan vm owner: %w", err)
		}
		owners[vmID] = append(owners[vmID], studentID)
	}
	return owners, rows.Err()
}
