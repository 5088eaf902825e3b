package recovery

import (
	"context"
)

// ResetRequestFlow asks the service to mail a password reset code and hands
// the email over to the confirmation step.
type ResetRequestFlow struct {
	*flow
}

// NewResetRequestFlow builds a reset request flow with a single submit slot.
func NewResetRequestFlow(service Service, opts ...FlowOption) (*ResetRequestFlow, error) {
	f, err := newFlow(FlowResetRequest, service, []string{FieldEmail}, func(cfg Config) *ActionSet {
		return NewActionSet(NewActionState(SlotSubmit, cfg.Reset.Success))
	}, opts)
	if err != nil {
		return nil, err
	}
	return &ResetRequestFlow{flow: f}, nil
}

// RequestReset requires a non-empty email; its format is left to the input
// constraints of the presentation layer.
func (r *ResetRequestFlow) RequestReset() error {
	var email string
	return r.start(SlotSubmit,
		func(u *update) error {
			email = r.form.Get(FieldEmail)
			if err := validateRequired(email); err != nil {
				return r.reject(u, SlotSubmit, FieldEmail, r.cfg.Reset.MissingEmail, err)
			}
			return nil
		},
		func(ctx context.Context) (*Response, error) {
			return r.service.RequestPasswordReset(ctx, email)
		},
		func(u *update, _ *Response) {
			r.scheduleHandoff(u, r.cfg.ResetHandoffDelay, Handoff{
				Route:   RouteResetConfirmation,
				Context: map[string]string{FieldEmail: email},
			})
		},
	)
}

// OnSubmit is the presentation binding for RequestReset.
func (r *ResetRequestFlow) OnSubmit() error { return r.RequestReset() }
