package recovery

import (
	"context"
)

// ActivationFlow verifies a mailed activation code against an email address
// and can ask the service to resend the code.
type ActivationFlow struct {
	*flow
}

// NewActivationFlow builds an activation flow. An email carried over from a
// registration step should be passed through WithPrefill and is locked.
func NewActivationFlow(service Service, opts ...FlowOption) (*ActivationFlow, error) {
	f, err := newFlow(FlowActivation, service, []string{FieldEmail, FieldCode}, func(cfg Config) *ActionSet {
		return NewActionSet(
			NewActionState(SlotSubmit, cfg.Activation.Success),
			NewActionState(SlotResend, cfg.Resend.Success),
		)
	}, opts)
	if err != nil {
		return nil, err
	}
	return &ActivationFlow{flow: f}, nil
}

// SubmitActivation validates email and code, then calls the remote
// activation. On success the login handoff is scheduled.
func (a *ActivationFlow) SubmitActivation() error {
	var email, code string
	return a.start(SlotSubmit,
		func(u *update) error {
			email = a.form.Get(FieldEmail)
			code = a.form.Get(FieldCode)
			if err := validateRequired(email); err != nil {
				return a.reject(u, SlotSubmit, FieldEmail, a.cfg.Activation.MissingEmail, err)
			}
			if err := ValidateActivationCode(code); err != nil {
				return a.reject(u, SlotSubmit, FieldCode, a.cfg.Activation.InvalidCode, err)
			}
			return nil
		},
		func(ctx context.Context) (*Response, error) {
			return a.service.ActivateAccount(ctx, email, code)
		},
		func(u *update, _ *Response) {
			a.scheduleHandoff(u, a.cfg.ActivationHandoffDelay, Handoff{Route: RouteLogin})
		},
	)
}

// ResendCode asks the service to mail a new code. An empty email fails
// locally and leaves the submit slot untouched.
func (a *ActivationFlow) ResendCode() error {
	var email string
	return a.start(SlotResend,
		func(u *update) error {
			email = a.form.Get(FieldEmail)
			if err := validateRequired(email); err != nil {
				return a.reject(u, SlotResend, FieldEmail, a.cfg.Resend.MissingEmail, err)
			}
			return nil
		},
		func(ctx context.Context) (*Response, error) {
			return a.service.ResendActivationCode(ctx, email)
		},
		nil,
	)
}

// OnSubmit is the presentation binding for SubmitActivation.
func (a *ActivationFlow) OnSubmit() error { return a.SubmitActivation() }

// OnResend is the presentation binding for ResendCode.
func (a *ActivationFlow) OnResend() error { return a.ResendCode() }
