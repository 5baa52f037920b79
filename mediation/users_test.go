package mediation

import (
	"errors"
	"testing"

	"beatspace/apperr"
	"beatspace/models"
	"beatspace/utils"
)

func registration(email string, role models.Role) RegisterInput {
	return RegisterInput{
		Email:       email,
		Password:    "secret123",
		Role:        role,
		CompanyName: "Dhaka Ads Ltd",
		ContactName: "Rahim",
	}
}

func TestRegisterAndLoginAfterApproval(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.Register(f.ctx, registration("New.Buyer@Example.com", models.RoleBuyer))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Status != models.UserPending || user.Email != "new.buyer@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	if _, ok := f.events.find("admin", EventUserRegistered); !ok {
		t.Fatal("expected user_registered for admins")
	}

	if _, err := f.svc.Login(f.ctx, LoginInput{Email: "new.buyer@example.com", Password: "secret123"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized while pending, got %v", err)
	}
	if _, err := f.svc.SetUserStatus(f.ctx, f.admin, user.ID, models.UserApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	result, err := f.svc.Login(f.ctx, LoginInput{Email: "NEW.BUYER@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.TokenType != "bearer" || result.User.ID != user.ID || result.User.LastLogin == nil {
		t.Fatalf("unexpected login result %+v", result)
	}
	claims, err := utils.ValidateJWT(result.AccessToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != user.Email || claims.Role != string(models.RoleBuyer) {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := f.svc.Login(f.ctx, LoginInput{Email: user.Email, Password: "wrong"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized for a bad password, got %v", err)
	}
}

func TestLoginUnknownEmailMatchesBadPassword(t *testing.T) {
	f := newFixture(t)
	_, missing := f.svc.Login(f.ctx, LoginInput{Email: "nobody@example.com", Password: "secret123"})
	_, wrong := f.svc.Login(f.ctx, LoginInput{Email: f.buyer.Email, Password: "secret123"})
	if !errors.Is(missing, apperr.ErrUnauthorized) || !errors.Is(wrong, apperr.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized for both, got %v and %v", missing, wrong)
	}
	if missing.Error() != wrong.Error() {
		t.Fatalf("unknown email is distinguishable: %q vs %q", missing, wrong)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"admin role", registration("a@example.com", models.RoleAdmin), apperr.ErrValidation},
		{"bad email", registration("not-an-email", models.RoleBuyer), apperr.ErrValidation},
		{"short password", func() RegisterInput {
			in := registration("b@example.com", models.RoleSeller)
			in.Password = "123"
			return in
		}(), apperr.ErrValidation},
		{"duplicate email", registration("buyer1@example.com", models.RoleBuyer), apperr.ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Register(f.ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSetUserStatusIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.SetUserStatus(f.ctx, f.buyer, f.buyer2.ID, models.UserSuspended); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if _, err := f.svc.SetUserStatus(f.ctx, f.admin, f.admin.ID, models.UserSuspended); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition on self, got %v", err)
	}
	if _, err := f.svc.SetUserStatus(f.ctx, f.admin, f.buyer2.ID, "banned"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected Validation for an unknown status, got %v", err)
	}
	suspended, err := f.svc.SetUserStatus(f.ctx, f.admin, f.buyer2.ID, models.UserSuspended)
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if suspended.Status != models.UserSuspended {
		t.Fatalf("expected suspended, got %s", suspended.Status)
	}

	sellers, err := f.svc.ListUsers(f.ctx, f.admin, models.RoleSeller, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sellers) != 1 || sellers[0].ID != f.seller.ID {
		t.Fatalf("unexpected sellers %+v", sellers)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.EnsureAdmin(f.ctx, "root@beatspace.test", "bootstrap"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := f.svc.EnsureAdmin(f.ctx, "root@beatspace.test", "other"); err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	admins, err := f.svc.ListUsers(f.ctx, f.admin, models.RoleAdmin, models.UserApproved)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(admins) != 2 {
		t.Fatalf("expected the seeded and bootstrapped admins, got %d", len(admins))
	}
	if _, err := f.svc.Login(f.ctx, LoginInput{Email: "root@beatspace.test", Password: "bootstrap"}); err != nil {
		t.Fatalf("login as bootstrap admin: %v", err)
	}
}
