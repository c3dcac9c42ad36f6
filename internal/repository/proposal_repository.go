package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jbweber/homelab/labpool/internal/domain"
)

// ProposalRepository defines domain-specific operations for team proposals
type ProposalRepository interface {
	Repository[domain.Proposal, int64]
	FindByToken(ctx context.Context, token string) (domain.Proposal, error)
	FindByCourse(ctx context.Context, courseID int64) ([]domain.Proposal, error)
}

// proposalRepositoryImpl implements ProposalRepository
type proposalRepositoryImpl struct {
	sqlRepository
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(q Querier) ProposalRepository {
	return &proposalRepositoryImpl{sqlRepository: newSQLRepository(q, "proposals", "proposal")}
}

const selectProposal = "SELECT id, token, course_id, team_name, requester_id, deadline, created_at FROM proposals"

// Save stores a new proposal, or replaces the invitee responses of an existing one
func (r *proposalRepositoryImpl) Save(ctx context.Context, p domain.Proposal) (domain.Proposal, error) {
	if p.Token == "" || p.TeamName == "" || p.RequesterID == "" {
		return domain.Proposal{}, fmt.Errorf("proposal token, team name and requester are required: %w", ErrInvalidEntity)
	}

	if p.ID == 0 {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		result, err := r.q.ExecContext(ctx, `
			INSERT INTO proposals (token, course_id, team_name, requester_id, deadline, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.Token, p.CourseID, p.TeamName, p.RequesterID, p.Deadline, p.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.Proposal{}, fmt.Errorf("proposal with token %s: %w", p.Token, ErrDuplicate)
			}
			if isForeignKeyViolation(err) {
				return domain.Proposal{}, fmt.Errorf("course %d or requester %s: %w", p.CourseID, p.RequesterID, ErrNotFound)
			}
			return domain.Proposal{}, fmt.Errorf("failed to create proposal: %w", err)
		}
		if p.ID, err = result.LastInsertId(); err != nil {
			return domain.Proposal{}, fmt.Errorf("failed to get proposal ID: %w", err)
		}
	} else {
		exists, err := r.existsByID(ctx, p.ID)
		if err != nil {
			return domain.Proposal{}, err
		}
		if !exists {
			return domain.Proposal{}, r.notFound(p.ID)
		}
		if _, err := r.q.ExecContext(ctx, "DELETE FROM proposal_invitees WHERE proposal_id = ?", p.ID); err != nil {
			return domain.Proposal{}, fmt.Errorf("failed to clear invitees: %w", err)
		}
	}

	cache := NewPreparedStatementCache(r.q)
	defer cache.Close()
	for i, inv := range p.Invitees {
		if inv.Response == "" {
			p.Invitees[i].Response = domain.ResponseNotReplied
		}
		_, err := cache.Exec(ctx, "INSERT INTO proposal_invitees (proposal_id, student_id, response, position) VALUES (?, ?, ?, ?)",
			p.ID, inv.StudentID, p.Invitees[i].Response, i)
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.Proposal{}, fmt.Errorf("student with ID %s: %w", inv.StudentID, ErrNotFound)
			}
			return domain.Proposal{}, fmt.Errorf("failed to add invitee %s: %w", inv.StudentID, err)
		}
	}
	return p, nil
}

// FindByID retrieves a proposal by its ID
func (r *proposalRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.Proposal, error) {
	proposals, err := r.load(ctx, selectProposal+" WHERE id = ?", id)
	if err != nil {
		return domain.Proposal{}, err
	}
	if len(proposals) == 0 {
		return domain.Proposal{}, r.notFound(id)
	}
	return proposals[0], nil
}

// FindByToken retrieves a proposal by its correlation token
func (r *proposalRepositoryImpl) FindByToken(ctx context.Context, token string) (domain.Proposal, error) {
	proposals, err := r.load(ctx, selectProposal+" WHERE token = ?", token)
	if err != nil {
		return domain.Proposal{}, err
	}
	if len(proposals) == 0 {
		return domain.Proposal{}, fmt.Errorf("proposal with token %s: %w", token, ErrNotFound)
	}
	return proposals[0], nil
}

// FindByCourse lists the proposals of a course, oldest first
func (r *proposalRepositoryImpl) FindByCourse(ctx context.Context, courseID int64) ([]domain.Proposal, error) {
	return r.load(ctx, selectProposal+" WHERE course_id = ? ORDER BY id", courseID)
}

// FindAll retrieves all proposals
func (r *proposalRepositoryImpl) FindAll(ctx context.Context) ([]domain.Proposal, error) {
	return r.load(ctx, selectProposal+" ORDER BY id")
}

// DeleteByID removes a proposal and its invitees
func (r *proposalRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, id)
}

// ExistsByID checks if a proposal exists by its ID
func (r *proposalRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.existsByID(ctx, id)
}

func (r *proposalRepositoryImpl) load(ctx context.Context, query string, args ...any) ([]domain.Proposal, error) {
	proposals, err := r.headers(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range proposals {
		if proposals[i].Invitees, err = r.invitees(ctx, proposals[i].ID); err != nil {
			return nil, err
		}
	}
	return proposals, nil
}

func (r *proposalRepositoryImpl) headers(ctx context.Context, query string, args ...any) (proposals []domain.Proposal, err error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find proposals: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		var p domain.Proposal
		if err := rows.Scan(&p.ID, &p.Token, &p.CourseID, &p.TeamName, &p.RequesterID, &p.Deadline, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposals: %w", err)
	}
	return proposals, nil
}

func (r *proposalRepositoryImpl) invitees(ctx context.Context, proposalID int64) (invitees []domain.Invitee, err error) {
	rows, err := r.q.QueryContext(ctx, "SELECT student_id, response FROM proposal_invitees WHERE proposal_id = ? ORDER BY position", proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to find invitees: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		var inv domain.Invitee
		if err := rows.Scan(&inv.StudentID, &inv.Response); err != nil {
			return nil, fmt.Errorf("failed to scan invitee: %w", err)
		}
		invitees = append(invitees, inv)
	}
	return invitees, rows.Err()
}
