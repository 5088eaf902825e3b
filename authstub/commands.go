package authstub

import (
	"context"
	"strings"
	"time"

	recovery "github.com/goliatone/go-auth-recovery"
	goerrors "github.com/goliatone/go-errors"
)

const (
	msgAccountRegistered = "account created, check your email for the activation code"
	msgAccountActivated  = "account activated"
	msgCodeResent        = "a new activation code was sent"
	msgResetRequested    = "if the account exists, a reset code was sent"
)

// Result is the outcome of a command.
type Result struct {
	Message string
	Code    string
}

type deps struct {
	store    *Store
	notifier Notifier
	logger   recovery.Logger
	cfg      Config
	now      func() time.Time
}

func (d deps) issueCode(ctx context.Context, account *Account) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate activation code")
	}
	hash, err := hashCode(code, d.cfg.BcryptCost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash activation code")
	}
	if _, err := d.store.ReplaceActivationCode(ctx, account.ID, hash, d.now()); err != nil {
		return "", err
	}
	if err := d.notifier.Send(ctx, Mail{Kind: MailActivation, To: account.Email, Code: code}); err != nil {
		d.logger.Error("failed to deliver activation code to %s: %v", account.Email, err)
	}
	return code, nil
}

func cancelled(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during "+op)
	default:
		return nil
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := recovery.ValidateField(recovery.FieldEmail, email); err != nil {
		return "", withMeta(ErrInvalidEmail, map[string]any{"email": email})
	}
	return email, nil
}

// RegisterAccountMessage creates an inactive account and mails its code.
type RegisterAccountMessage struct {
	Email string `json:"email"`
}

func (m RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountHandler struct{ deps }

func (h *RegisterAccountHandler) Execute(ctx context.Context, msg RegisterAccountMessage) (*Result, error) {
	if err := cancelled(ctx, "account registration"); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(msg.Email)
	if err != nil {
		return nil, err
	}

	account, err := h.store.CreateAccount(ctx, email, h.now())
	if err != nil {
		return nil, err
	}

	code, err := h.issueCode(ctx, account)
	if err != nil {
		return nil, err
	}

	h.logger.Info("registered account %s", account.ID)
	return &Result{Message: msgAccountRegistered, Code: code}, nil
}

// ActivateAccountMessage redeems a mailed activation code.
type ActivateAccountMessage struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (m ActivateAccountMessage) Type() string { return "account.activate" }

type ActivateAccountHandler struct{ deps }

func (h *ActivateAccountHandler) Execute(ctx context.Context, msg ActivateAccountMessage) (*Result, error) {
	if err := cancelled(ctx, "account activation"); err != nil {
		return nil, err
	}

	if err := recovery.ValidateActivationCode(msg.Code); err != nil {
		return nil, ErrInvalidCode
	}

	account, err := h.store.AccountByEmail(ctx, strings.TrimSpace(msg.Email))
	if err != nil {
		return nil, err
	}
	if account.Active {
		return nil, ErrAlreadyActive
	}

	code, err := h.store.PendingActivationCode(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	now := h.now()
	if isOutsideWindow(code.CreatedAt, now, h.cfg.CodeTTL) {
		return nil, withMeta(ErrCodeExpired, map[string]any{
			"issued_at": code.CreatedAt,
		})
	}

	if err := compareCode(msg.Code, code.CodeHash); err != nil {
		if err == errCodeMismatch {
			return nil, ErrInvalidCode
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify activation code")
	}

	if err := h.store.Activate(ctx, account, code, now); err != nil {
		return nil, err
	}

	h.logger.Info("activated account %s", account.ID)
	return &Result{Message: msgAccountActivated}, nil
}

// ResendActivationMessage supersedes the pending code with a new one.
type ResendActivationMessage struct {
	Email string `json:"email"`
}

func (m ResendActivationMessage) Type() string { return "account.activation_resend" }

type ResendActivationHandler struct{ deps }

func (h *ResendActivationHandler) Execute(ctx context.Context, msg ResendActivationMessage) (*Result, error) {
	if err := cancelled(ctx, "activation code resend"); err != nil {
		return nil, err
	}

	account, err := h.store.AccountByEmail(ctx, strings.TrimSpace(msg.Email))
	if err != nil {
		return nil, err
	}
	if account.Active {
		return nil, ErrAlreadyActive
	}

	code, err := h.issueCode(ctx, account)
	if err != nil {
		return nil, err
	}
	return &Result{Message: msgCodeResent, Code: code}, nil
}

// RequestPasswordResetMessage starts a password reset for an email.
type RequestPasswordResetMessage struct {
	Email string `json:"email"`
}

func (m RequestPasswordResetMessage) Type() string { return "account.password_reset" }

type RequestPasswordResetHandler struct{ deps }

// Execute answers the same way for known and unknown emails.
func (h *RequestPasswordResetHandler) Execute(ctx context.Context, msg RequestPasswordResetMessage) (*Result, error) {
	if err := cancelled(ctx, "password reset request"); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(msg.Email)
	if err != nil {
		return nil, err
	}

	account, err := h.store.AccountByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			h.logger.Debug("password reset requested for unknown email")
			return &Result{Message: msgResetRequested}, nil
		}
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset code")
	}
	hash, err := hashCode(code, h.cfg.BcryptCost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash reset code")
	}

	reset := &PasswordReset{
		AccountID: account.ID,
		Email:     account.Email,
		CodeHash:  hash,
		CreatedAt: h.now(),
	}
	if err := h.store.CreatePasswordReset(ctx, reset); err != nil {
		return nil, err
	}

	if err := h.notifier.Send(ctx, Mail{Kind: MailPasswordReset, To: account.Email, Code: code}); err != nil {
		h.logger.Error("failed to deliver reset code to %s: %v", account.Email, err)
	}
	return &Result{Message: msgResetRequested, Code: code}, nil
}
