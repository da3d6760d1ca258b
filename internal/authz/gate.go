// Package authz implements the role check consulted before every
// organization-scoped mutation. Denials are values, not errors, so callers
// can surface the specific reason; errors are reserved for store failures.
package authz

import (
	"errors"
	"fmt"

	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/repository"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Reason explains a denial.
type Reason string

const (
	ReasonAllowed          Reason = "allowed"
	ReasonNotAuthenticated Reason = "not_authenticated"
	ReasonNotAMember       Reason = "not_a_member"
	ReasonInsufficientRole Reason = "insufficient_role"
)

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
	// Role is the caller's effective role in the organization, when any.
	Role models.OrganizationRole
	// PlatformOverride marks decisions granted through the platform-admin
	// flag rather than an organization role. Audit trails must be able to
	// tell the two apart.
	PlatformOverride bool
}

func allowed(role models.OrganizationRole) Decision {
	return Decision{Allowed: true, Reason: ReasonAllowed, Role: role}
}

func denied(reason Reason, role models.OrganizationRole) Decision {
	return Decision{Allowed: false, Reason: reason, Role: role}
}

// Gate resolves a caller's effective role for an organization and compares
// it to a required threshold using the order member < admin < owner.
type Gate struct {
	userRepo repository.UserRepository
	orgRepo  repository.OrganizationRepository
	logger   zerolog.Logger
}

// NewGate creates a new Gate.
func NewGate(userRepo repository.UserRepository, orgRepo repository.OrganizationRepository, logger zerolog.Logger) *Gate {
	return &Gate{
		userRepo: userRepo,
		orgRepo:  orgRepo,
		logger:   logger,
	}
}

// Authorize checks whether callerID holds at least required in the
// organization. Pure read; no state is touched.
func (g *Gate) Authorize(callerID, organizationID uint64, required models.OrganizationRole) (Decision, error) {
	if callerID == 0 {
		return denied(ReasonNotAuthenticated, ""), nil
	}

	user, err := g.userRepo.FindByID(callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return denied(ReasonNotAuthenticated, ""), nil
		}
		return Decision{}, fmt.Errorf("failed to load caller: %w", err)
	}
	if user.Banned {
		return denied(ReasonNotAuthenticated, ""), nil
	}

	if user.IsPlatformAdmin() {
		g.logger.Info().
			Uint64("user_id", callerID).
			Uint64("organization_id", organizationID).
			Str("required_role", string(required)).
			Msg("platform admin override")
		d := allowed("")
		d.PlatformOverride = true
		return d, nil
	}

	member, err := g.orgRepo.FindMember(organizationID, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return denied(ReasonNotAMember, ""), nil
		}
		return Decision{}, fmt.Errorf("failed to load membership: %w", err)
	}

	if !member.Role.AtLeast(required) {
		return denied(ReasonInsufficientRole, member.Role), nil
	}

	return allowed(member.Role), nil
}
