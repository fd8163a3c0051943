package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

const (
	RoleAdmin = "admin"
	RoleCoach = "coach"
)

var (
	ErrUnauthorized  = errors.New("coach: unauthorized")
	ErrForbidden     = errors.New("coach: admin access required")
	ErrMissingFields = errors.New("coach: missing required fields")
)

// ProvisionRequest is the create-coach payload.
type ProvisionRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	BrandName string `json:"brand_name"`
	Plan      string `json:"plan"`
}

// Service provisions coach accounts on behalf of admins.
type Service struct {
	identity IdentityProvider
	repo     Repository
	logger   *logging.Logger
}

func NewService(identity IdentityProvider, repo Repository, logger *logging.Logger) *Service {
	if identity == nil {
		panic("coach: identity provider cannot be nil")
	}
	if repo == nil {
		panic("coach: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{identity: identity, repo: repo, logger: logger}
}

// Authorize resolves the caller from a bearer token and requires the admin role.
func (s *Service) Authorize(ctx context.Context, accessToken string) (*User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.identity.GetUser(ctx, accessToken)
	if err != nil {
		s.logger.Warn("caller lookup failed", "error", err)
		return nil, ErrUnauthorized
	}
	isAdmin, err := s.repo.HasRole(ctx, user.ID, RoleAdmin)
	if err != nil {
		s.logger.Error("role lookup failed", "user_id", user.ID, "error", err)
		return nil, ErrForbidden
	}
	if !isAdmin {
		return nil, ErrForbidden
	}
	return user, nil
}

// Provision creates the auth account, the coach row and the coach role. The
// returned id is the auth user id. A failed coach insert removes the auth
// account again; a failed role insert is only logged.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return "", ErrMissingFields
	}

	user, err := s.identity.CreateUser(ctx, req.Email, req.Password, map[string]any{"name": req.Name})
	if err != nil {
		return "", fmt.Errorf("coach: create auth user: %w", err)
	}

	plan := PlanBasic
	if strings.TrimSpace(req.Plan) != "" {
		plan = ParsePlan(req.Plan)
	}
	coachID, err := s.repo.Insert(ctx, NewCoach{
		UserID:    user.ID,
		Name:      req.Name,
		Email:     req.Email,
		BrandName: req.BrandName,
		Plan:      plan,
	})
	if err != nil {
		if delErr := s.identity.DeleteUser(ctx, user.ID); delErr != nil {
			s.logger.Error("failed to remove auth user after coach insert failure", "user_id", user.ID, "error", delErr)
		}
		return "", err
	}

	if err := s.repo.AddRole(ctx, user.ID, RoleCoach); err != nil {
		s.logger.Error("failed to assign coach role", "user_id", user.ID, "error", err)
	}

	s.logger.Info("coach provisioned", "user_id", user.ID, "coach_id", coachID, "plan", string(plan))
	return user.ID, nil
}
