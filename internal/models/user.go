package models

import (
	"fiduciaire/pkg/errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User account of an accounting firm member
type User struct {
	SoftDeleteModel
	Email        string `json:"email" gorm:"not null;size:100;uniqueIndex:idx_users_email,where:deleted_at IS NULL"`
	PasswordHash string `json:"-" gorm:"not null;size:255"`
	Nom          string `json:"nom" gorm:"not null;size:100"`
	Prenom       string `json:"prenom" gorm:"not null;size:100"`
	Telephone    string `json:"telephone" gorm:"size:20"`
	Role         string `json:"role" gorm:"not null;size:20;index"`
	Status       string `json:"status" gorm:"not null;size:40;index"`

	EmailVerificationToken   *string    `json:"-" gorm:"size:64;index"`
	EmailVerificationExpires *time.Time `json:"-"`
	EmailVerifiedAt          *time.Time `json:"email_verified_at,omitempty"`
	ReviewedBy               *uint      `json:"reviewed_by,omitempty"`
	ReviewedAt               *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason          string     `json:"rejection_reason,omitempty" gorm:"size:500"`
	SuspendedAt              *time.Time `json:"suspended_at,omitempty"`
	LastLoginAt              *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) TableName() string {
	return "users"
}

// Roles
const (
	RoleAdmin     = "ADMIN"
	RoleComptable = "COMPTABLE"
	RoleAssistant = "ASSISTANT"
)

// Account statuses
const (
	UserStatusPendingEmailVerification = "PENDING_EMAIL_VERIFICATION"
	UserStatusPendingApproval          = "PENDING_APPROVAL"
	UserStatusApproved                 = "APPROVED"
	UserStatusRejected                 = "REJECTED"
	UserStatusSuspended                = "SUSPENDED"
)

// IsValidRole reports whether role is known
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleComptable, RoleAssistant:
		return true
	}
	return false
}

// IsValidUserStatus reports whether status is known
func IsValidUserStatus(status string) bool {
	switch status {
	case UserStatusPendingEmailVerification, UserStatusPendingApproval,
		UserStatusApproved, UserStatusRejected, UserStatusSuspended:
		return true
	}
	return false
}

// FullName "Prenom Nom"
func (u *User) FullName() string {
	return u.Prenom + " " + u.Nom
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u *User) IsApproved() bool { return u.Status == UserStatusApproved }

// SetPassword hashes and stores password
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword compares password with the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// ========== Approval state machine ==========

// UserTransition is an edge of the account lifecycle.
type UserTransition string

const (
	TransitionVerifyEmail UserTransition = "verify_email"
	TransitionApprove     UserTransition = "approve"
	TransitionReject      UserTransition = "reject"
	TransitionSuspend     UserTransition = "suspend"
	TransitionReactivate  UserTransition = "reactivate"
)

type statusEdge struct {
	from string
	to   string
}

var userTransitions = map[UserTransition]statusEdge{
	TransitionVerifyEmail: {UserStatusPendingEmailVerification, UserStatusPendingApproval},
	TransitionApprove:     {UserStatusPendingApproval, UserStatusApproved},
	TransitionReject:      {UserStatusPendingApproval, UserStatusRejected},
	TransitionSuspend:     {UserStatusApproved, UserStatusSuspended},
	TransitionReactivate:  {UserStatusSuspended, UserStatusApproved},
}

// CanTransition reports whether t applies to the current status.
func (u *User) CanTransition(t UserTransition) bool {
	edge, ok := userTransitions[t]
	return ok && edge.from == u.Status
}

// Transition moves the account along t. reviewerID is recorded for
// approve and reject; reason only for reject.
func (u *User) Transition(t UserTransition, reviewerID *uint, reason string, now time.Time) error {
	edge, ok := userTransitions[t]
	if !ok {
		return errors.Newf(errors.ErrInvalidTransition, "transition inconnue: %s", t)
	}
	if edge.from != u.Status {
		return errors.Newf(errors.ErrInvalidTransition,
			"transition %s impossible depuis le statut %s", t, u.Status)
	}

	switch t {
	case TransitionVerifyEmail:
		u.EmailVerifiedAt = &now
		u.EmailVerificationToken = nil
		u.EmailVerificationExpires = nil
	case TransitionApprove:
		u.ReviewedBy = reviewerID
		u.ReviewedAt = &now
		u.RejectionReason = ""
	case TransitionReject:
		u.ReviewedBy = reviewerID
		u.ReviewedAt = &now
		u.RejectionReason = reason
	case TransitionSuspend:
		u.SuspendedAt = &now
	case TransitionReactivate:
		u.SuspendedAt = nil
	}
	u.Status = edge.to
	return nil
}

// CanReview reports whether an actor with actorRole may approve or reject
// an account requesting targetRole. Only ADMIN reviews COMPTABLE and ADMIN
// accounts; COMPTABLE may also review ASSISTANT accounts.
func CanReview(actorRole, targetRole string) bool {
	switch actorRole {
	case RoleAdmin:
		return true
	case RoleComptable:
		return targetRole == RoleAssistant
	default:
		return false
	}
}
