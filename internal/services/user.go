package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"fiduciaire/internal/models"
	"fiduciaire/pkg/config"
	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/logger"
	"fiduciaire/pkg/pagination"
	"fiduciaire/pkg/queue"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// UserService accounts and the approval workflow
type UserService struct {
	db            *gorm.DB
	mail          MailQueue
	notifications *NotificationService
	cfg           config.AccountConfig
	now           func() time.Time
}

// RegisterInput self-registration form
type RegisterInput struct {
	Email     string
	Password  string
	Nom       string
	Prenom    string
	Telephone string
	Role      string
}

// UserFilter list filters
type UserFilter struct {
	Status  string
	Role    string
	Keyword string
}

// UserStats account counts by status and role
type UserStats struct {
	Total                    int64            `json:"total"`
	PendingEmailVerification int64            `json:"pending_email_verification"`
	PendingApproval          int64            `json:"pending_approval"`
	Approved                 int64            `json:"approved"`
	Rejected                 int64            `json:"rejected"`
	Suspended                int64            `json:"suspended"`
	ByRole                   map[string]int64 `json:"by_role"`
}

// NewUserService mail may be nil (no outgoing mail).
func NewUserService(db *gorm.DB, mail MailQueue, notifications *NotificationService, cfg config.AccountConfig) *UserService {
	return &UserService{
		db:            db,
		mail:          mail,
		notifications: notifications,
		cfg:           cfg,
		now:           time.Now,
	}
}

// ========== Registration ==========

// Register creates an account waiting for e-mail verification and queues
// the verification mail. ADMIN accounts cannot self-register.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Nom = strings.TrimSpace(in.Nom)
	in.Prenom = strings.TrimSpace(in.Prenom)
	if err := s.ValidateRegister(in); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(in.Email); err != nil {
		return nil, err
	}

	token := uuid.NewString()
	expires := s.now().Add(s.cfg.VerificationTTL)
	user := &models.User{
		Email:                    in.Email,
		Nom:                      in.Nom,
		Prenom:                   in.Prenom,
		Telephone:                strings.TrimSpace(in.Telephone),
		Role:                     in.Role,
		Status:                   models.UserStatusPendingEmailVerification,
		EmailVerificationToken:   &token,
		EmailVerificationExpires: &expires,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}

	s.sendVerificationMail(ctx, user)
	logger.GetLogger().WithField("user_id", user.ID).Infof("inscription de %s (%s)", user.Email, user.Role)
	return user, nil
}

// ValidateRegister checks the registration form.
func (s *UserService) ValidateRegister(in RegisterInput) error {
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return errors.New(errors.ErrValidation, "adresse e-mail invalide")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return errors.Newf(errors.ErrValidation, "le mot de passe doit contenir au moins %d caractères", minPasswordLength)
	}
	if in.Nom == "" || in.Prenom == "" {
		return errors.New(errors.ErrValidation, "le nom et le prénom sont obligatoires")
	}
	if in.Role != models.RoleComptable && in.Role != models.RoleAssistant {
		return errors.Newf(errors.ErrValidation, "rôle %q non autorisé à l'inscription", in.Role)
	}
	return nil
}

// VerifyEmail consumes a verification token and hands the account over to
// the reviewers.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New(errors.ErrValidation, "jeton de vérification manquant")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email_verification_token = ?", token).First(&user).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrNotFound, "lien de vérification invalide")
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if user.EmailVerificationExpires != nil && now.After(*user.EmailVerificationExpires) {
		return nil, errors.New(errors.ErrValidation, "lien de vérification expiré, demandez un nouvel envoi")
	}
	if err := user.Transition(models.TransitionVerifyEmail, nil, "", now); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}

	reviewers, err := s.reviewersFor(user.Role)
	if err != nil {
		logger.GetLogger().Errorf("recherche des validateurs échouée: %v", err)
	}
	s.notifications.NotifyMany(ctx, reviewers, models.NotificationAccountPending,
		"Nouveau compte à valider",
		fmt.Sprintf("%s (%s) a confirmé son adresse e-mail et attend votre validation.", user.FullName(), user.Role),
		fmt.Sprintf("/users/%d", user.ID))

	return &user, nil
}

// ResendVerification issues a fresh token. Unknown or already verified
// addresses are silently ignored.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND status = ?", normalizeEmail(email), models.UserStatusPendingEmailVerification).
		First(&user).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	expires := s.now().Add(s.cfg.VerificationTTL)
	user.EmailVerificationToken = &token
	user.EmailVerificationExpires = &expires
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return err
	}
	s.sendVerificationMail(ctx, &user)
	return nil
}

// ========== Authentication ==========

// Authenticate checks credentials; only APPROVED accounts may log in.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil || !user.CheckPassword(password) {
		if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, errors.New(errors.ErrUnauthorized, "e-mail ou mot de passe incorrect")
	}

	switch user.Status {
	case models.UserStatusApproved:
	case models.UserStatusPendingEmailVerification:
		return nil, errors.New(errors.ErrForbidden, "veuillez d'abord confirmer votre adresse e-mail")
	case models.UserStatusPendingApproval:
		return nil, errors.New(errors.ErrForbidden, "votre compte est en attente de validation")
	case models.UserStatusRejected:
		return nil, errors.New(errors.ErrForbidden, "votre demande de compte a été refusée")
	case models.UserStatusSuspended:
		return nil, errors.New(errors.ErrForbidden, "votre compte est suspendu")
	default:
		return nil, errors.New(errors.ErrForbidden, "compte inactif")
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		logger.GetLogger().WithField("user_id", user.ID).Warnf("mise à jour de la dernière connexion échouée: %v", err)
	}
	return &user, nil
}

// ========== Review workflow ==========

// Approve activates a verified account.
func (s *UserService) Approve(ctx context.Context, actor *models.User, id uint) (*models.User, error) {
	return s.review(ctx, actor, id, models.TransitionApprove, "")
}

// Reject refuses a verified account; reason is mandatory.
func (s *UserService) Reject(ctx context.Context, actor *models.User, id uint, reason string) (*models.User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.New(errors.ErrValidation, "le motif du refus est obligatoire")
	}
	return s.review(ctx, actor, id, models.TransitionReject, reason)
}

func (s *UserService) review(ctx context.Context, actor *models.User, id uint, t models.UserTransition, reason string) (*models.User, error) {
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !models.CanReview(actor.Role, user.Role) {
		return nil, errors.Newf(errors.ErrForbidden, "un %s ne peut pas valider un compte %s", actor.Role, user.Role)
	}
	if err := user.Transition(t, &actor.ID, reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}

	if t == models.TransitionApprove {
		s.notifyAccount(ctx, user, models.NotificationAccountApproved, "account_approved",
			"Compte validé", "Votre compte a été validé, vous pouvez vous connecter.")
	} else {
		s.notifyAccount(ctx, user, models.NotificationAccountRejected, "account_rejected",
			"Compte refusé", "Votre demande de compte a été refusée : "+reason)
	}
	logger.GetLogger().WithField("user_id", user.ID).Infof("compte %s par %d: %s", t, actor.ID, user.Status)
	return user, nil
}

// Suspend blocks an approved account. ADMIN only, never oneself.
func (s *UserService) Suspend(ctx context.Context, actor *models.User, id uint) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, errors.New(errors.ErrForbidden, "seul un administrateur peut suspendre un compte")
	}
	if actor.ID == id {
		return nil, errors.New(errors.ErrValidation, "vous ne pouvez pas suspendre votre propre compte")
	}
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := user.Transition(models.TransitionSuspend, nil, "", s.now()); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	s.notifyAccount(ctx, user, models.NotificationAccountSuspended, "account_suspended",
		"Compte suspendu", "Votre compte a été suspendu par un administrateur.")
	return user, nil
}

// Reactivate lifts a suspension. ADMIN only.
func (s *UserService) Reactivate(ctx context.Context, actor *models.User, id uint) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, errors.New(errors.ErrForbidden, "seul un administrateur peut réactiver un compte")
	}
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := user.Transition(models.TransitionReactivate, nil, "", s.now()); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	s.notifyAccount(ctx, user, models.NotificationAccountApproved, "account_reactivated",
		"Compte réactivé", "Votre compte a été réactivé.")
	return user, nil
}

// PendingFor accounts waiting for a decision that actor may take.
func (s *UserService) PendingFor(actor *models.User) ([]*models.User, error) {
	var users []*models.User
	query := s.db.Where("status = ?", models.UserStatusPendingApproval)
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleComptable:
		query = query.Where("role = ?", models.RoleAssistant)
	default:
		return []*models.User{}, nil
	}
	err := query.Order("created_at ASC").Find(&users).Error
	return users, err
}

// ========== CRUD ==========

// GetByID loads a user
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrNotFound, "utilisateur introuvable")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetWithFiltersAndPage filtered, paginated list
func (s *UserService) GetWithFiltersAndPage(filter UserFilter, page, pageSize int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := s.db.Model(&models.User{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Keyword != "" {
		pattern := "%" + strings.ToLower(filter.Keyword) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(nom) LIKE ? OR LOWER(prenom) LIKE ?",
			pattern, pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Scopes(pagination.Paginate(page, pageSize)).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// UpdateProfile changes the user's own contact details.
func (s *UserService) UpdateProfile(id uint, nom, prenom, telephone string) (*models.User, error) {
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	nom, prenom = strings.TrimSpace(nom), strings.TrimSpace(prenom)
	if nom == "" || prenom == "" {
		return nil, errors.New(errors.ErrValidation, "le nom et le prénom sont obligatoires")
	}
	user.Nom = nom
	user.Prenom = prenom
	user.Telephone = strings.TrimSpace(telephone)
	if err := s.db.Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword requires the current password.
func (s *UserService) ChangePassword(id uint, current, next string) error {
	user, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if !user.CheckPassword(current) {
		return errors.New(errors.ErrValidation, "mot de passe actuel incorrect")
	}
	if utf8.RuneCountInString(next) < minPasswordLength {
		return errors.Newf(errors.ErrValidation, "le mot de passe doit contenir au moins %d caractères", minPasswordLength)
	}
	if err := user.SetPassword(next); err != nil {
		return err
	}
	return s.db.Model(user).Update("password_hash", user.PasswordHash).Error
}

// Delete soft-deletes an account. ADMIN only, never oneself.
func (s *UserService) Delete(actor *models.User, id uint) error {
	if !actor.IsAdmin() {
		return errors.New(errors.ErrForbidden, "seul un administrateur peut supprimer un compte")
	}
	if actor.ID == id {
		return errors.New(errors.ErrValidation, "vous ne pouvez pas supprimer votre propre compte")
	}
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.SocieteUser{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
}

// GetStats counts accounts by status and role.
func (s *UserService) GetStats() (*UserStats, error) {
	stats := &UserStats{ByRole: map[string]int64{}}

	var rows []struct {
		Status string
		Role   string
		Count  int64
	}
	err := s.db.Model(&models.User{}).
		Select("status, role, COUNT(*) as count").
		Group("status, role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		stats.Total += r.Count
		stats.ByRole[r.Role] += r.Count
		switch r.Status {
		case models.UserStatusPendingEmailVerification:
			stats.PendingEmailVerification += r.Count
		case models.UserStatusPendingApproval:
			stats.PendingApproval += r.Count
		case models.UserStatusApproved:
			stats.Approved += r.Count
		case models.UserStatusRejected:
			stats.Rejected += r.Count
		case models.UserStatusSuspended:
			stats.Suspended += r.Count
		}
	}
	return stats, nil
}

// PurgeUnverified removes accounts that never confirmed their e-mail
// before cutoff.
func (s *UserService) PurgeUnverified(cutoff time.Time) (int64, error) {
	result := s.db.
		Where("status = ? AND created_at < ?", models.UserStatusPendingEmailVerification, cutoff).
		Delete(&models.User{})
	return result.RowsAffected, result.Error
}

// EnsureAdmin creates the bootstrap administrator when no ADMIN exists.
func (s *UserService) EnsureAdmin(email, password string) (*models.User, bool, error) {
	var existing models.User
	err := s.db.Where("role = ?", models.RoleAdmin).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	now := s.now()
	admin := &models.User{
		Email:           normalizeEmail(email),
		Nom:             "Administrateur",
		Prenom:          "Système",
		Role:            models.RoleAdmin,
		Status:          models.UserStatusApproved,
		EmailVerifiedAt: &now,
		ReviewedAt:      &now,
	}
	if err := admin.SetPassword(password); err != nil {
		return nil, false, err
	}
	if err := s.db.Create(admin).Error; err != nil {
		return nil, false, err
	}
	return admin, true, nil
}

// ========== helpers ==========

func (s *UserService) ensureEmailFree(email string) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New(errors.ErrConflict, "un compte existe déjà avec cette adresse e-mail")
	}
	return nil
}

// reviewersFor approved users allowed to review an account with role.
func (s *UserService) reviewersFor(role string) ([]uint, error) {
	roles := []string{models.RoleAdmin}
	if role == models.RoleAssistant {
		roles = append(roles, models.RoleComptable)
	}
	var ids []uint
	err := s.db.Model(&models.User{}).
		Where("status = ? AND role IN ?", models.UserStatusApproved, roles).
		Pluck("id", &ids).Error
	return ids, err
}

func (s *UserService) sendVerificationMail(ctx context.Context, user *models.User) {
	if s.mail == nil || user.EmailVerificationToken == nil {
		return
	}
	link := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/verify-email?token=" + *user.EmailVerificationToken
	msg := queue.MailMessage{
		ID:       uuid.NewString(),
		To:       user.Email,
		Template: "verify_email",
		Subject:  "Confirmez votre adresse e-mail",
		Data: map[string]string{
			"name":    user.FullName(),
			"link":    link,
			"expires": user.EmailVerificationExpires.Format(time.RFC3339),
		},
	}
	if err := s.mail.EnqueueMail(ctx, msg); err != nil {
		logger.GetLogger().WithField("user_id", user.ID).Errorf("mise en file du mail de vérification échouée: %v", err)
	}
}

func (s *UserService) notifyAccount(ctx context.Context, user *models.User, kind, mailTemplate, title, message string) {
	if _, err := s.notifications.Notify(ctx, user.ID, kind, title, message, "/profile"); err != nil {
		logger.GetLogger().WithField("user_id", user.ID).Errorf("notification échouée: %v", err)
	}
	if s.mail == nil {
		return
	}
	msg := queue.MailMessage{
		ID:       uuid.NewString(),
		To:       user.Email,
		Template: mailTemplate,
		Subject:  title,
		Data: map[string]string{
			"name":    user.FullName(),
			"message": message,
		},
	}
	if err := s.mail.EnqueueMail(ctx, msg); err != nil {
		logger.GetLogger().WithField("user_id", user.ID).Errorf("mise en file du mail échouée: %v", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
