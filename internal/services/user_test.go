package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"fiduciaire/internal/models"
	"fiduciaire/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerInput(email, role string) RegisterInput {
	return RegisterInput{
		Email:    email,
		Password: testPassword,
		Nom:      "Idrissi",
		Prenom:   "Nadia",
		Role:     role,
	}
}

func TestRegistrationToLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)

	u, err := f.users.Register(ctx, registerInput("  Nadia@Cabinet.MA ", models.RoleComptable))
	require.NoError(t, err)
	assert.Equal(t, "nadia@cabinet.ma", u.Email)
	assert.Equal(t, models.UserStatusPendingEmailVerification, u.Status)
	require.NotNil(t, u.EmailVerificationToken)

	mail := f.mail.last()
	assert.Equal(t, "verify_email", mail.Template)
	assert.Equal(t, "nadia@cabinet.ma", mail.To)
	assert.Equal(t, "https://app.fiduciaire.ma/verify-email?token="+*u.EmailVerificationToken, mail.Data["link"])

	_, err = f.users.Authenticate(ctx, "nadia@cabinet.ma", testPassword)
	assert.True(t, stderrors.Is(err, errors.ErrForbidden))

	verified, err := f.users.VerifyEmail(ctx, *u.EmailVerificationToken)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusPendingApproval, verified.Status)
	assert.NotNil(t, verified.EmailVerifiedAt)
	assert.Equal(t, int64(1), f.unread(t, admin.ID))

	_, err = f.users.VerifyEmail(ctx, *u.EmailVerificationToken)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound), "token is single use")

	approved, err := f.users.Approve(ctx, admin, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, admin.ID, *approved.ReviewedBy)
	assert.Equal(t, "account_approved", f.mail.last().Template)

	logged, err := f.users.Authenticate(ctx, "NADIA@cabinet.ma", testPassword)
	require.NoError(t, err)
	assert.NotNil(t, logged.LastLoginAt)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]RegisterInput{
		"admin role":     registerInput("a@b.ma", models.RoleAdmin),
		"bad email":      registerInput("pas-un-email", models.RoleComptable),
		"short password": {Email: "a@b.ma", Password: "court", Nom: "A", Prenom: "B", Role: models.RoleAssistant},
		"missing name":   {Email: "a@b.ma", Password: testPassword, Role: models.RoleAssistant},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.users.Register(ctx, in)
			assert.True(t, stderrors.Is(err, errors.ErrValidation), "got %v", err)
		})
	}

	_, err := f.users.Register(ctx, registerInput("dup@b.ma", models.RoleAssistant))
	require.NoError(t, err)
	_, err = f.users.Register(ctx, registerInput("DUP@b.ma", models.RoleComptable))
	assert.True(t, stderrors.Is(err, errors.ErrConflict))
}

func TestVerifyEmailExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Register(ctx, registerInput("late@b.ma", models.RoleAssistant))
	require.NoError(t, err)

	f.now = f.now.Add(72 * time.Hour)
	_, err = f.users.VerifyEmail(ctx, *u.EmailVerificationToken)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	require.NoError(t, f.users.ResendVerification(ctx, "late@b.ma"))
	refreshed, err := f.users.GetByID(u.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.EmailVerificationToken)
	assert.NotEqual(t, *u.EmailVerificationToken, *refreshed.EmailVerificationToken)

	_, err = f.users.VerifyEmail(ctx, *refreshed.EmailVerificationToken)
	require.NoError(t, err)

	assert.NoError(t, f.users.ResendVerification(ctx, "inconnu@b.ma"))
}

func TestReviewPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	comptable := f.comptable(t, "c@b.ma")
	assistant := f.user(t, "assist@b.ma", models.RoleAssistant, models.UserStatusPendingApproval)
	otherComptable := f.user(t, "c2@b.ma", models.RoleComptable, models.UserStatusPendingApproval)

	pending, err := f.users.PendingFor(comptable)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, assistant.ID, pending[0].ID)

	pending, err = f.users.PendingFor(admin)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = f.users.Approve(ctx, comptable, otherComptable.ID)
	assert.True(t, stderrors.Is(err, errors.ErrForbidden))

	_, err = f.users.Reject(ctx, comptable, assistant.ID, "  ")
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	rejected, err := f.users.Reject(ctx, comptable, assistant.ID, "dossier incomplet")
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusRejected, rejected.Status)
	assert.Equal(t, "dossier incomplet", rejected.RejectionReason)

	_, err = f.users.Approve(ctx, admin, assistant.ID)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidTransition))

	_, err = f.users.Authenticate(ctx, "assist@b.ma", testPassword)
	assert.True(t, stderrors.Is(err, errors.ErrForbidden))
}

func TestSuspendAndReactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	comptable := f.comptable(t, "c@b.ma")

	_, err := f.users.Suspend(ctx, comptable, admin.ID)
	assert.True(t, stderrors.Is(err, errors.ErrForbidden))
	_, err = f.users.Suspend(ctx, admin, admin.ID)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	suspended, err := f.users.Suspend(ctx, admin, comptable.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusSuspended, suspended.Status)

	_, err = f.users.Authenticate(ctx, "c@b.ma", testPassword)
	assert.True(t, stderrors.Is(err, errors.ErrForbidden))

	back, err := f.users.Reactivate(ctx, admin, comptable.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusApproved, back.Status)
	assert.Nil(t, back.SuspendedAt)
	assert.Equal(t, int64(2), f.unread(t, comptable.ID))
}

func TestAuthenticateWrongCredentials(t *testing.T) {
	f := newFixture(t)
	f.comptable(t, "c@b.ma")

	_, err := f.users.Authenticate(context.Background(), "c@b.ma", "mauvais")
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))
	_, err = f.users.Authenticate(context.Background(), "personne@b.ma", testPassword)
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))
}

func TestProfileAndPassword(t *testing.T) {
	f := newFixture(t)
	u := f.comptable(t, "c@b.ma")

	updated, err := f.users.UpdateProfile(u.ID, " Tazi ", "Omar", "0600000000")
	require.NoError(t, err)
	assert.Equal(t, "Tazi", updated.Nom)

	assert.True(t, stderrors.Is(f.users.ChangePassword(u.ID, "faux", "nouveaumdp"), errors.ErrValidation))
	assert.True(t, stderrors.Is(f.users.ChangePassword(u.ID, testPassword, "court"), errors.ErrValidation))
	require.NoError(t, f.users.ChangePassword(u.ID, testPassword, "nouveaumdp"))

	_, err = f.users.Authenticate(context.Background(), "c@b.ma", "nouveaumdp")
	assert.NoError(t, err)
}

func TestDeleteUserDropsLinks(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	owner := f.comptable(t, "owner@b.ma")
	so := f.societe(t, owner)

	assert.True(t, stderrors.Is(f.users.Delete(owner, admin.ID), errors.ErrForbidden))
	assert.True(t, stderrors.Is(f.users.Delete(admin, admin.ID), errors.ErrValidation))
	require.NoError(t, f.users.Delete(admin, owner.ID))

	var links int64
	require.NoError(t, f.db.Model(&models.SocieteUser{}).Where("societe_id = ?", so.ID).Count(&links).Error)
	assert.Zero(t, links)

	_, err := f.users.GetByID(owner.ID)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestUserListAndStats(t *testing.T) {
	f := newFixture(t)
	f.admin(t)
	f.comptable(t, "c1@b.ma")
	f.comptable(t, "c2@b.ma")
	f.user(t, "a1@b.ma", models.RoleAssistant, models.UserStatusPendingApproval)
	f.user(t, "a2@b.ma", models.RoleAssistant, models.UserStatusPendingEmailVerification)

	users, total, err := f.users.GetWithFiltersAndPage(UserFilter{Role: models.RoleComptable}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 1)

	_, total, err = f.users.GetWithFiltersAndPage(UserFilter{Keyword: "A1"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	stats, err := f.users.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(3), stats.Approved)
	assert.Equal(t, int64(1), stats.PendingApproval)
	assert.Equal(t, int64(1), stats.PendingEmailVerification)
	assert.Equal(t, int64(2), stats.ByRole[models.RoleAssistant])
}

func TestEnsureAdminOnlyOnce(t *testing.T) {
	f := newFixture(t)

	admin, created, err := f.users.EnsureAdmin("Root@Fiduciaire.ma", "secret123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "root@fiduciaire.ma", admin.Email)
	assert.True(t, admin.IsApproved())

	again, created, err := f.users.EnsureAdmin("other@fiduciaire.ma", "secret123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)
}

func TestPurgeUnverified(t *testing.T) {
	f := newFixture(t)
	for email, age := range map[string]time.Duration{"old@b.ma": 10 * 24 * time.Hour, "fresh@b.ma": time.Hour} {
		u := &models.User{
			Email: email, Nom: "O", Prenom: "O", Role: models.RoleAssistant,
			Status: models.UserStatusPendingEmailVerification,
		}
		u.CreatedAt = f.now.Add(-age)
		require.NoError(t, u.SetPassword(testPassword))
		require.NoError(t, f.db.Create(u).Error)
	}

	n, err := f.users.PurgeUnverified(f.now.Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left []string
	require.NoError(t, f.db.Model(&models.User{}).Pluck("email", &left).Error)
	assert.Equal(t, []string{"fresh@b.ma"}, left)
}
