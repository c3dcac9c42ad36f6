package teams

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/homelab/labpool/internal/aggregate"
	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/formation"
	"github.com/jbweber/homelab/labpool/internal/logger"
	"github.com/jbweber/homelab/labpool/internal/repository"
)

// loadRoster collects what the formation rules need to know about a course
// and the proposed members.
func loadRoster(ctx context.Context, r repos, courseID int64, memberIDs []string) (formation.Roster, error) {
	known, err := r.students.FindByIDs(ctx, lo.Uniq(memberIDs))
	if err != nil {
		return formation.Roster{}, err
	}
	enrolled, err := r.courses.EnrolledStudentIDs(ctx, courseID)
	if err != nil {
		return formation.Roster{}, err
	}
	teams, err := r.teams.FindByCourse(ctx, courseID)
	if err != nil {
		return formation.Roster{}, err
	}

	return formation.Roster{
		Known:    lo.SliceToMap(known, func(s domain.Student) (string, bool) { return s.ID, true }),
		Enrolled: lo.SliceToMap(enrolled, func(id string) (string, bool) { return id, true }),
		Teams: lo.Map(teams, func(t *aggregate.Team, _ int) formation.TeamMembership {
			return formation.TeamMembership{Name: t.Name, Members: t.Members}
		}),
	}, nil
}

// ProposeTeam validates a formation request and stores it as a pending
// proposal. No team exists until the proposal is registered.
func (m *manager) ProposeTeam(ctx context.Context, courseID int64, req formation.Request) (*formation.Formation, error) {
	unlock, err := m.courseLocks.lock(ctx, courseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var f *formation.Formation
	err = m.inTx(ctx, func(r repos) error {
		course, err := r.courses.FindByID(ctx, courseID)
		if err != nil {
			return courseErr(err, courseID)
		}
		roster, err := loadRoster(ctx, r, courseID, req.ProposedMemberIDs)
		if err != nil {
			return err
		}
		if f, err = m.validator.Validate(req, course, roster); err != nil {
			return err
		}

		_, err = r.proposals.Save(ctx, domain.Proposal{
			Token:       f.Token,
			CourseID:    f.CourseID,
			TeamName:    f.TeamName,
			RequesterID: f.RequesterID,
			Invitees: lo.Map(f.InviteeIDs, func(id string, _ int) domain.Invitee {
				return domain.Invitee{StudentID: id, Response: domain.ResponseNotReplied}
			}),
			Deadline:  f.Deadline,
			CreatedAt: m.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to store proposal: %w", err)
		}
		return nil
	})
	m.observe(ctx, "propose_team", 0, err)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"course_id": courseID,
		"team_name": f.TeamName,
		"invitees":  len(f.InviteeIDs),
	}).Info("team proposed")
	return f, nil
}

// RegisterTeam turns an accepted proposal into a pending team. The formation
// rules are checked again since members may have joined other teams in the
// meantime, and caps are copied from the course as it is now.
func (m *manager) RegisterTeam(ctx context.Context, token string) (*aggregate.Team, error) {
	proposal, err := repository.NewProposalRepository(m.ds.DB).FindByToken(ctx, token)
	if err != nil {
		return nil, proposalErr(err, token)
	}

	unlock, err := m.courseLocks.lock(ctx, proposal.CourseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var team *aggregate.Team
	err = m.inTx(ctx, func(r repos) error {
		// Re-read under the course lock; a concurrent registration removes it.
		p, err := r.proposals.FindByToken(ctx, token)
		if err != nil {
			return proposalErr(err, token)
		}
		course, err := r.courses.FindByID(ctx, p.CourseID)
		if err != nil {
			return courseErr(err, p.CourseID)
		}
		members := p.Members()
		roster, err := loadRoster(ctx, r, p.CourseID, members)
		if err != nil {
			return err
		}
		req := formation.Request{
			TeamName:          p.TeamName,
			ProposedMemberIDs: members,
			RequesterID:       p.RequesterID,
			Deadline:          p.Deadline,
		}
		if _, err := m.validator.Validate(req, course, roster); err != nil {
			return err
		}

		if team, err = r.teams.Save(ctx, aggregate.New(course, p.TeamName, members)); err != nil {
			return saveErr(err, 0)
		}
		return r.proposals.DeleteByID(ctx, p.ID)
	})
	m.observe(ctx, "register_team", 0, err)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"course_id": team.CourseID,
		"team_id":   team.ID,
		"team_name": team.Name,
	}).Info("team registered")
	return team, nil
}

func proposalErr(err error, token string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: token %s", domain.ErrProposalNotFound, token)
	}
	return err
}

// EnableTeam activates a pending team
func (m *manager) EnableTeam(ctx context.Context, teamID int64) (*aggregate.Team, error) {
	team, err := m.withTeam(ctx, teamID, func(_ repos, team *aggregate.Team) error {
		return team.Activate()
	})
	m.observe(ctx, "enable_team", teamID, err)
	return team, err
}

// EvictTeam deletes a team together with its members, VMs and ownerships
func (m *manager) EvictTeam(ctx context.Context, teamID int64) error {
	unlock, err := m.teamLocks.lock(ctx, teamID)
	if err != nil {
		return err
	}
	defer unlock()

	err = m.inTx(ctx, func(r repos) error {
		return teamErr(r.teams.DeleteByID(ctx, teamID), teamID)
	})
	m.observe(ctx, "evict_team", teamID, err)
	return err
}

// UpdateTeamCaps replaces a team's caps if its current usage fits under them
func (m *manager) UpdateTeamCaps(ctx context.Context, teamID int64, caps domain.Caps) (*aggregate.Team, error) {
	team, err := m.withTeam(ctx, teamID, func(_ repos, team *aggregate.Team) error {
		return team.UpdateCaps(caps)
	})
	m.observe(ctx, "update_caps", teamID, err)
	return team, err
}
