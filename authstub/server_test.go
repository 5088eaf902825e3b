package authstub_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-auth-recovery/authstub"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var hexCode = regexp.MustCompile(`^[0-9a-f]{16}$`)

type mailbox struct {
	mu    sync.Mutex
	mails []authstub.Mail
}

func (m *mailbox) Send(_ context.Context, mail authstub.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mails = append(m.mails, mail)
	return nil
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mails)
}

func (m *mailbox) last(t *testing.T, kind authstub.MailKind) authstub.Mail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.mails) - 1; i >= 0; i-- {
		if m.mails[i].Kind == kind {
			return m.mails[i]
		}
	}
	t.Fatalf("no %s mail sent", kind)
	return authstub.Mail{}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stub struct {
	srv   *authstub.Server
	store *authstub.Store
	mail  *mailbox
	clock *clock
}

func newStub(t *testing.T) *stub {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	store, err := authstub.OpenStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	s := &stub{
		store: store,
		mail:  &mailbox{},
		clock: &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	cfg := authstub.Config{CodeTTL: time.Hour, BcryptCost: bcrypt.MinCost}
	s.srv = authstub.NewServer(cfg, store,
		authstub.WithNotifier(s.mail),
		authstub.WithClock(s.clock.Now),
	)
	return s
}

func (s *stub) post(t *testing.T, path, body string) (int, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := s.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]string{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func (s *stub) register(t *testing.T, email string) string {
	t.Helper()
	status, _ := s.post(t, "/auth/register", `{"email":"`+email+`"}`)
	require.Equal(t, http.StatusCreated, status)
	return s.mail.last(t, authstub.MailActivation).Code
}

func TestRegisterMailsActivationCode(t *testing.T) {
	s := newStub(t)

	status, body := s.post(t, "/auth/register", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["message"])

	mail := s.mail.last(t, authstub.MailActivation)
	assert.Equal(t, "ana@example.com", mail.To)
	assert.Regexp(t, hexCode, mail.Code)

	status, body = s.post(t, "/auth/register", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "an account with this email already exists", body["error"])
}

func TestActivateWithMailedCode(t *testing.T) {
	s := newStub(t)
	code := s.register(t, "ana@example.com")

	status, body := s.post(t, "/auth/activate", `{"email":"ana@example.com","code":"`+strings.ToUpper(code)+`"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "account activated", body["message"])

	account, err := s.store.AccountByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.True(t, account.Active)
	require.NotNil(t, account.ActivatedAt)

	status, body = s.post(t, "/auth/activate", `{"email":"ana@example.com","code":"`+code+`"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "account is already active", body["error"])
}

func TestActivateRejections(t *testing.T) {
	s := newStub(t)
	s.register(t, "ana@example.com")

	tests := []struct {
		name   string
		body   string
		status int
		err    string
	}{
		{
			name:   "wrong code",
			body:   `{"email":"ana@example.com","code":"0000000000000000"}`,
			status: http.StatusBadRequest,
			err:    "invalid activation code",
		},
		{
			name:   "malformed code",
			body:   `{"email":"ana@example.com","code":"xyz"}`,
			status: http.StatusBadRequest,
			err:    "invalid activation code",
		},
		{
			name:   "unknown account",
			body:   `{"email":"bob@example.com","code":"0000000000000000"}`,
			status: http.StatusNotFound,
			err:    "account not found",
		},
		{
			name:   "malformed body",
			body:   `{"email":`,
			status: http.StatusBadRequest,
			err:    "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.post(t, "/auth/activate", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.err, body["error"])
		})
	}
}

func TestResendSupersedesPendingCode(t *testing.T) {
	s := newStub(t)
	first := s.register(t, "ana@example.com")

	status, body := s.post(t, "/auth/resend-activation", `{"email":"ana@example.com"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a new activation code was sent", body["message"])

	second := s.mail.last(t, authstub.MailActivation).Code
	require.NotEqual(t, first, second)

	status, body = s.post(t, "/auth/activate", `{"email":"ana@example.com","code":"`+first+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid activation code", body["error"])

	status, _ = s.post(t, "/auth/activate", `{"email":"ana@example.com","code":"`+second+`"}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestResendUnknownAccount(t *testing.T) {
	s := newStub(t)

	status, body := s.post(t, "/auth/resend-activation", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "account not found", body["error"])
	assert.Zero(t, s.mail.count())
}

func TestActivateExpiredCode(t *testing.T) {
	s := newStub(t)
	code := s.register(t, "ana@example.com")

	s.clock.Advance(time.Hour)

	status, body := s.post(t, "/auth/activate", `{"email":"ana@example.com","code":"`+code+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "activation code expired, request a new one", body["error"])
}

func TestRequestPasswordReset(t *testing.T) {
	s := newStub(t)
	s.register(t, "ana@example.com")
	sent := s.mail.count()

	status, unknown := s.post(t, "/auth/request-password-reset", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, sent, s.mail.count(), "unknown emails receive no mail")

	status, known := s.post(t, "/auth/request-password-reset", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, unknown["message"], known["message"])

	mail := s.mail.last(t, authstub.MailPasswordReset)
	assert.Equal(t, "ana@example.com", mail.To)
	assert.Regexp(t, hexCode, mail.Code)

	resets, err := s.store.PasswordResets(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.Len(t, resets, 1)
	assert.Equal(t, authstub.ResetRequestedStatus, resets[0].Status)
}

func TestRequestPasswordResetInvalidEmail(t *testing.T) {
	s := newStub(t)

	status, body := s.post(t, "/auth/request-password-reset", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid email address", body["error"])
}

func TestServerRegistersRecoveryRoutes(t *testing.T) {
	s := newStub(t)

	routes := map[string]string{}
	for _, rt := range s.srv.Routes() {
		routes[rt.Name] = string(rt.Method) + " " + rt.Path
	}

	assert.Equal(t, map[string]string{
		"register":               "POST /auth/register",
		"activate":               "POST /auth/activate",
		"resend-activation":      "POST /auth/resend-activation",
		"request-password-reset": "POST /auth/request-password-reset",
	}, routes)
}

func TestUnknownRouteRendersErrorBody(t *testing.T) {
	s := newStub(t)

	status, body := s.post(t, "/auth/unlock", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, body["error"])
}
