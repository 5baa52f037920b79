package mediation

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/authz"
	"beatspace/database"
	"beatspace/models"
	"beatspace/store"
	"beatspace/utils"
)

const minPasswordLength = 6

const (
	// EventUserRegistered tells admins an account is waiting for approval.
	EventUserRegistered = "user_registered"
	// EventUserStatusChanged tells a user their account status changed.
	EventUserStatusChanged = "user_status_changed"
)

type RegisterInput struct {
	Email       string      `json:"email"`
	Password    string      `json:"password"`
	Role        models.Role `json:"role"`
	CompanyName string      `json:"company_name"`
	ContactName string      `json:"contact_name"`
	Phone       string      `json:"phone"`
	Website     string      `json:"website"`
	Address     string      `json:"address"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        models.User `json:"user"`
}

type UserStatusInput struct {
	Status models.UserStatus `json:"status"`
}

// Register creates a buyer or seller account awaiting admin approval.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Role != models.RoleBuyer && in.Role != models.RoleSeller {
		return nil, apperr.New(apperr.KindValidation, "role must be buyer or seller")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, apperr.New(apperr.KindValidation, "email is not valid")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.New(apperr.KindValidation, "password must be at least 6 characters")
	}
	if strings.TrimSpace(in.CompanyName) == "" || strings.TrimSpace(in.ContactName) == "" {
		return nil, apperr.New(apperr.KindValidation, "company_name and contact_name are required")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	user := &models.User{
		ID:           s.newID(),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Status:       models.UserPending,
		CompanyName:  strings.TrimSpace(in.CompanyName),
		ContactName:  strings.TrimSpace(in.ContactName),
		Phone:        in.Phone,
		Website:      in.Website,
		Address:      in.Address,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users.Insert(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "event", "user_registered", "user_id", user.ID, "role", user.Role)
	s.toAdmins(EventUserRegistered, map[string]interface{}{
		"user_id":      user.ID,
		"email":        user.Email,
		"role":         user.Role,
		"company_name": user.CompanyName,
	})
	return user, nil
}

var errBadLogin = apperr.New(apperr.KindUnauthorized, "incorrect email or password")

// Login checks the password of an approved user and issues a bearer token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.store.Users.GetByEmail(ctx, in.Email)
	if errors.Is(err, apperr.ErrUserNotFound) {
		utils.CheckMissingAccount(in.Password)
		return nil, errBadLogin
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPasswordHash(in.Password, user.PasswordHash) {
		return nil, errBadLogin
	}
	if user.Status != models.UserApproved {
		return nil, apperr.New(apperr.KindUnauthorized, "account is not approved")
	}
	token, err := utils.GenerateJWT(user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	if err := s.store.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("last login refresh failed", "event", "last_login_failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}
	return &LoginResult{AccessToken: token, TokenType: "bearer", User: *user}, nil
}

func (s *Service) CurrentUser(ctx context.Context, p models.Principal) (*models.User, error) {
	return s.store.Users.Get(ctx, p.ID)
}

func (s *Service) ListUsers(ctx context.Context, p models.Principal, role models.Role, status models.UserStatus) ([]models.User, error) {
	if err := authz.Allow(p, authz.ManageUsers, authz.Target{}); err != nil {
		return nil, err
	}
	return s.store.Users.List(ctx, store.UserFilter{Role: role, Status: status})
}

// SetUserStatus approves, rejects or suspends an account. Admins cannot
// change their own status.
func (s *Service) SetUserStatus(ctx context.Context, p models.Principal, id string, status models.UserStatus) (*models.User, error) {
	if err := authz.Allow(p, authz.ManageUsers, authz.Target{}); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.New(apperr.KindValidation, "unknown user status")
	}
	if id == p.ID {
		return nil, apperr.New(apperr.KindInvalidTransition, "admins cannot change their own status")
	}
	before, err := s.store.Users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users.Update(ctx, id, database.Update{Set: bson.M{"status": string(status), "updated_at": s.timestamp()}})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, p, "user_status_set", "user", id, string(before.Status), string(status), nil)
	s.toPrincipal(user.Email, EventUserStatusChanged, map[string]interface{}{
		"user_id": user.ID,
		"status":  user.Status,
	})
	return user, nil
}

// EnsureAdmin creates the bootstrap admin when no user holds its email. An
// existing account is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		s.logger.Warn("admin bootstrap skipped, credentials not configured", "event", "admin_seed_skipped")
		return nil
	}
	existing, err := s.store.Users.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			s.logger.Warn("admin email belongs to a non-admin account", "event", "admin_seed_conflict", "user_id", existing.ID, "role", existing.Role)
		}
		return nil
	}
	if !errors.Is(err, apperr.ErrUserNotFound) {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	now := s.timestamp()
	admin := &models.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Status:       models.UserApproved,
		CompanyName:  "BeatSpace",
		ContactName:  "Administrator",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.Users.Insert(ctx, admin)
	if errors.Is(err, apperr.ErrEmailTaken) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("admin user created", "event", "admin_seeded", "user_id", admin.ID)
	return nil
}
