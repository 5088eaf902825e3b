package main

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const api = "http://auth.test"

func setup(t *testing.T) {
	t.Helper()
	t.Setenv("RECOVERY_API_URL", api)
	t.Setenv("RECOVERY_API_MAX_RETRIES", "0")
	t.Setenv("RECOVERY_ACTIVATION_HANDOFF_DELAY", "1ms")
	t.Setenv("RECOVERY_RESET_HANDOFF_DELAY", "1ms")
	t.Cleanup(gock.Off)
}

func TestActivateHandsOffToLogin(t *testing.T) {
	setup(t)
	gock.New(api).
		Post("/auth/activate").
		JSON(map[string]string{"email": "a@b.com", "code": "0123456789abcdef"}).
		Reply(http.StatusOK).
		JSON(map[string]string{"message": "welcome"})

	var out, errOut bytes.Buffer
	err := run(context.Background(),
		[]string{"activate", "-email", "a@b.com", "-code", "0123456789abcdef"},
		&out, &errOut)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "submit=pending")
	assert.Contains(t, out.String(), `submit=succeeded ("welcome")`)
	assert.Contains(t, out.String(), "handoff -> login")
	assert.True(t, gock.IsDone())
}

func TestActivateRejectedByServer(t *testing.T) {
	setup(t)
	gock.New(api).
		Post("/auth/activate").
		Reply(http.StatusBadRequest).
		JSON(map[string]string{"error": "invalid activation code"})

	var out, errOut bytes.Buffer
	err := run(context.Background(),
		[]string{"activate", "-email", "a@b.com", "-code", "0123456789abcdef"},
		&out, &errOut)
	require.ErrorIs(t, err, errActionFailed)
	assert.Contains(t, err.Error(), "invalid activation code")
	assert.NotContains(t, out.String(), "handoff")
}

func TestActivateRejectsMalformedCodeLocally(t *testing.T) {
	setup(t)

	var out, errOut bytes.Buffer
	err := run(context.Background(),
		[]string{"activate", "-email", "a@b.com", "-code", "xyz"},
		&out, &errOut)
	require.ErrorIs(t, err, errActionFailed)
	assert.Contains(t, err.Error(), "16 hexadecimal characters")
	assert.False(t, gock.HasUnmatchedRequest())
}

func TestResendDoesNotHandOff(t *testing.T) {
	setup(t)
	gock.New(api).
		Post("/auth/resend-activation").
		Reply(http.StatusOK).
		JSON(map[string]string{"message": "sent"})

	var out, errOut bytes.Buffer
	err := run(context.Background(), []string{"resend", "-email", "a@b.com"}, &out, &errOut)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `resend=succeeded ("sent")`)
	assert.NotContains(t, out.String(), "handoff")
}

func TestResetPrintsJSONAndMetrics(t *testing.T) {
	setup(t)
	gock.New(api).
		Post("/auth/request-password-reset").
		Reply(http.StatusOK).
		JSON(map[string]string{"message": "check your inbox"})

	var out, errOut bytes.Buffer
	err := run(context.Background(),
		[]string{"-json", "-metrics", "reset", "-email", "a@b.com"},
		&out, &errOut)
	require.NoError(t, err)

	assert.Contains(t, out.String(), `"flow":"reset_request"`)
	assert.Contains(t, out.String(), `"handoff":"reset-confirmation"`)
	assert.Contains(t, out.String(), `"email":"a@b.com"`)
	assert.Contains(t, out.String(), "recovery_flow_handoffs_total")
}

func TestUsageErrors(t *testing.T) {
	var out, errOut bytes.Buffer

	assert.ErrorIs(t, run(context.Background(), nil, &out, &errOut), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"unlock"}, &out, &errOut), errUsage)
	assert.Contains(t, errOut.String(), "usage: recoveryctl")
}

func TestActivityFlagPrintsNormalizedEvents(t *testing.T) {
	setup(t)
	gock.New(api).
		Post("/auth/resend-activation").
		Reply(http.StatusOK).
		JSON(map[string]string{"message": "sent"})

	var out, errOut bytes.Buffer
	err := run(context.Background(), []string{"-activity", "resend", "-email", "a@b.com"}, &out, &errOut)
	require.NoError(t, err)

	assert.Contains(t, errOut.String(), `"verb":"recovery.action.started"`)
	assert.Contains(t, errOut.String(), `"verb":"recovery.action.succeeded"`)
	assert.Contains(t, errOut.String(), `"slot":"resend"`)
}

func TestHandoffWaitHonorsCancellation(t *testing.T) {
	setup(t)
	t.Setenv("RECOVERY_ACTIVATION_HANDOFF_DELAY", "1h")
	gock.New(api).
		Post("/auth/activate").
		Reply(http.StatusOK).
		JSON(map[string]string{"message": "welcome"})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out, errOut bytes.Buffer
	started := time.Now()
	err := run(ctx, []string{"activate", "-email", "a@b.com", "-code", "0123456789abcdef"}, &out, &errOut)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 5*time.Second)
	assert.Contains(t, out.String(), "submit=succeeded")
	assert.NotContains(t, out.String(), "handoff ->")
}
