package main

import (
	"context"
	"sync"
	"time"

	"github.com/meta-closure/zerot/pkg/audit"
	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/conditions"
	"github.com/meta-closure/zerot/pkg/config"
	"github.com/meta-closure/zerot/pkg/contract"
	"github.com/meta-closure/zerot/pkg/ratelimit"
	"github.com/meta-closure/zerot/pkg/rules"
)

const codeProfileNotFound = "PROFILE_NOT_FOUND"

// Profile is a user's public profile.
type Profile struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpdateProfileInput replaces a profile's editable fields.
type UpdateProfileInput struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Bio    string `json:"bio"`
}

// GetProfileInput selects a profile.
type GetProfileInput struct {
	UserID string `json:"userId"`
}

const updateProfileSchema = `{
	"type": "object",
	"properties": {
		"userId": {"type": "string", "minLength": 1, "maxLength": 64},
		"name": {"type": "string", "minLength": 1, "maxLength": 50},
		"bio": {"type": "string", "maxLength": 280}
	},
	"required": ["userId", "name"]
}`

// Only admins may take reserved display names.
const reservedNameRule = `!(input.name in ["admin", "root", "system"]) || "admin" in user.roles`

type profileDeps struct {
	engine    *contract.Engine
	presets   config.Presets
	limiter   ratelimit.Store
	limit     ratelimit.Policy
	auditLog  audit.Logger
	evaluator *rules.Evaluator
	now       func() time.Time
}

// ProfileService stores profiles in memory behind contract-guarded methods.
type ProfileService struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	now      func() time.Time

	Update contract.Method[UpdateProfileInput, Profile]
	Get    contract.Method[GetProfileInput, Profile]
}

func newProfileService(deps profileDeps) (*ProfileService, error) {
	if deps.now == nil {
		deps.now = time.Now
	}
	s := &ProfileService{profiles: make(map[string]Profile), now: deps.now}

	businessPolicy, err := deps.presets.Policy("business")
	if err != nil {
		return nil, err
	}
	dataPolicy, err := deps.presets.Policy("data")
	if err != nil {
		return nil, err
	}

	validate, err := conditions.Schema[UpdateProfileInput](updateProfileSchema)
	if err != nil {
		return nil, err
	}
	reservedName, err := conditions.Rule[UpdateProfileInput](deps.evaluator, reservedNameRule)
	if err != nil {
		return nil, err
	}
	storedAsRequested, err := conditions.OutputRule[UpdateProfileInput, Profile](deps.evaluator,
		`output.userId == input.userId && output.name == input.name && output.bio == input.bio`)
	if err != nil {
		return nil, err
	}

	ownsProfile := conditions.Owns(func(_ context.Context, in UpdateProfileInput) (string, error) {
		return in.UserID, nil
	})
	s.Update = contract.Wrap(deps.engine, contract.Options[UpdateProfileInput, Profile]{
		Name: "ProfileService.Update",
		Requires: []contract.Requirement[UpdateProfileInput]{
			contract.Require(conditions.Authenticated[UpdateProfileInput]()),
			contract.Require(conditions.ValidSession[UpdateProfileInput](deps.now)),
			contract.Require(conditions.RateLimited(deps.limiter, deps.limit, conditions.ByUser[UpdateProfileInput]("profile.update"))),
			contract.Validate(conditions.NormalizeText(
				func(in *UpdateProfileInput) *string { return &in.Name },
				func(in *UpdateProfileInput) *string { return &in.Bio },
			)),
			contract.Validate(validate),
			contract.Require(contract.AnyOf(conditions.HasRole[UpdateProfileInput]("admin"), ownsProfile)),
			contract.Require(reservedName),
			contract.Require(conditions.Audit[UpdateProfileInput](deps.auditLog, audit.EventMutation, "profile.update")),
		},
		Ensures: []contract.Ensures[UpdateProfileInput, Profile]{storedAsRequested},
		Invariants: []contract.Invariant[UpdateProfileInput, Profile]{
			contract.CheckPair(func(_ UpdateProfileInput, out Profile) bool { return !out.UpdatedAt.IsZero() }),
		},
		Policy: businessPolicy,
	}, s.update)

	ownsRead := conditions.Owns(func(_ context.Context, in GetProfileInput) (string, error) {
		return in.UserID, nil
	})
	s.Get = contract.Wrap(deps.engine, contract.Options[GetProfileInput, Profile]{
		Name: "ProfileService.Get",
		Requires: []contract.Requirement[GetProfileInput]{
			contract.Require(conditions.Authenticated[GetProfileInput]()),
			contract.Require(conditions.RateLimited(deps.limiter, deps.limit, conditions.ByUser[GetProfileInput]("profile.get"))),
			contract.Require(contract.AnyOf(conditions.HasRole[GetProfileInput]("admin", "support"), ownsRead)),
		},
		Ensures: []contract.Ensures[GetProfileInput, Profile]{
			contract.CheckOutput(func(out Profile, in GetProfileInput) bool { return out.UserID == in.UserID }),
		},
		Policy: dataPolicy,
	}, s.get)

	return s, nil
}

func (s *ProfileService) update(_ context.Context, in UpdateProfileInput, _ *authctx.AuthContext) (Profile, error) {
	p := Profile{UserID: in.UserID, Name: in.Name, Bio: in.Bio, UpdatedAt: s.now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[in.UserID] = p
	return p, nil
}

func (s *ProfileService) get(_ context.Context, in GetProfileInput, _ *authctx.AuthContext) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[in.UserID]
	if !ok {
		return Profile{}, contract.NewError("profile not found",
			contract.WithCode(codeProfileNotFound),
			contract.WithCategory(contract.CategoryBusinessLogic),
			contract.WithDetails(map[string]any{"userId": in.UserID}))
	}
	return p, nil
}
