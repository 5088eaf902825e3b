package authstub

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// CodePendingStatus is a code that can still be redeemed
	CodePendingStatus = "pending"
	// CodeUsedStatus is a redeemed code
	CodeUsedStatus = "used"
	// CodeSupersededStatus is a code replaced by a resend
	CodeSupersededStatus = "superseded"
)

const (
	// ResetRequestedStatus is the requested status
	ResetRequestedStatus = "requested"
)

// Account is a registered email address awaiting or past activation
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Active        bool       `bun:"is_active,notnull" json:"is_active"`
	ActivatedAt   *time.Time `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// ActivationCode stores the hash of a mailed activation code
type ActivationCode struct {
	bun.BaseModel `bun:"table:activation_codes,alias:actc"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	CodeHash      string     `bun:"code_hash,notnull" json:"-"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UsedAt        *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
}

// PasswordReset is a reset request handed to the confirmation step
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Email         string    `bun:"email,notnull" json:"email,omitempty"`
	CodeHash      string    `bun:"code_hash,notnull" json:"-"`
	Status        string    `bun:"status,notnull" json:"status,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}
