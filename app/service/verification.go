package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"html/template"
	"net/url"
	"strings"

	"github.com/breviobot/breviobot-service/app/entity"
	"github.com/breviobot/breviobot-service/app/mailer"
	"github.com/breviobot/breviobot-service/app/metrics"
	"github.com/breviobot/breviobot-service/config"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	verificationTokenBytes = 32
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72

	VerificationEmailSubject = "Verify your email for BrevioBot"
	SignupMessage            = "Registration successful. Please check your email to verify your account."
	VerifiedMessage          = "Email verified successfully. You can now log in."
	ResendMessage            = "If the account exists and is awaiting verification, a new email has been sent."
)

var verificationEmailTemplate = template.Must(template.New("verification").Parse(
	`<html><body>
<p>Hello {{.Username}},</p>
<p>Thanks for signing up for BrevioBot. Please confirm your email address by following the link below:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>If you did not create this account you can ignore this message.</p>
</body></html>`))

type SignupInput struct {
	Username string
	Email    string
	Password string
}

type SignupResult struct {
	User    *entity.User
	Message string
}

type VerificationWorkflowOption func(*VerificationWorkflow)

// WithTokenGenerator replaces the random verification token source.
func WithTokenGenerator(generate func() (string, error)) VerificationWorkflowOption {
	return func(w *VerificationWorkflow) {
		if generate != nil {
			w.generateToken = generate
		}
	}
}

type VerificationWorkflow struct {
	store         *CredentialStore
	mailer        mailer.Mailer
	policy        config.PasswordPolicy
	baseURL       string
	validate      *validator.Validate
	generateToken func() (string, error)
}

func NewVerificationWorkflow(store *CredentialStore, m mailer.Mailer, cfg *config.Config, opts ...VerificationWorkflowOption) *VerificationWorkflow {
	w := &VerificationWorkflow{
		store:         store,
		mailer:        m,
		policy:        cfg.Password.Policy,
		baseURL:       strings.TrimRight(cfg.Auth.PublicBaseURL, "/"),
		validate:      validator.New(),
		generateToken: NewVerificationToken,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NewVerificationToken returns 32 random bytes as unpadded base64url.
func NewVerificationToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (w *VerificationWorkflow) RequestSignup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	result, err := w.requestSignup(ctx, in)
	metrics.SignupsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	return result, err
}

func (w *VerificationWorkflow) requestSignup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return nil, &ValidationError{Message: "Username and email are required fields"}
	}
	if in.Password == "" {
		return nil, &ValidationError{Message: "Password is required"}
	}
	if err := w.validate.Var(email, "email"); err != nil {
		return nil, &ValidationError{Message: "Invalid email address"}
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, &ValidationError{Message: "Password must be at most 72 bytes long"}
	}
	if err := w.policy.Validate(in.Password); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	token, err := w.generateToken()
	if err != nil {
		return nil, err
	}

	user, err := w.store.Create(ctx, CandidateUser{Username: username, Email: email, Password: in.Password}, token)
	if err != nil {
		var dupErr *DuplicateUserError
		if errors.As(err, &dupErr) {
			return nil, &ValidationError{Message: dupErr.Error()}
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("Pending account created")

	if err = w.sendVerificationEmail(ctx, user, token); err != nil {
		return nil, err
	}

	return &SignupResult{User: user, Message: SignupMessage}, nil
}

func (w *VerificationWorkflow) CompleteVerification(ctx context.Context, token string) error {
	err := w.completeVerification(ctx, token)
	metrics.VerificationsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	return err
}

func (w *VerificationWorkflow) completeVerification(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return &AuthenticationError{Message: "Verification token is required", Err: ErrInvalidToken}
	}

	invalid := &AuthenticationError{Message: "Invalid or expired verification token", Err: ErrInvalidToken}

	user, err := w.store.GetByVerificationToken(ctx, token)
	if errors.Is(err, ErrUserNotFound) {
		return invalid
	}
	if err != nil {
		return err
	}

	if err = w.store.Verify(ctx, user); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return invalid
		}
		return err
	}

	logrus.WithField("user_id", user.ID).Info("Email verified")
	return nil
}

// ResendVerification issues a fresh token for a pending account. Unknown and
// already verified usernames succeed silently.
func (w *VerificationWorkflow) ResendVerification(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return &ValidationError{Message: "Username is required"}
	}

	user, err := w.store.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.IsVerified || !user.IsActive {
		return nil
	}

	token, err := w.generateToken()
	if err != nil {
		return err
	}
	if err = w.store.RotateVerificationToken(ctx, user, token); err != nil {
		return err
	}
	return w.sendVerificationEmail(ctx, user, token)
}

// VerificationLink is the URL embedded in the verification email.
func (w *VerificationWorkflow) VerificationLink(token string) string {
	return w.baseURL + "/verify?token=" + url.QueryEscape(token)
}

func (w *VerificationWorkflow) sendVerificationEmail(ctx context.Context, user *entity.User, token string) error {
	var body bytes.Buffer
	err := verificationEmailTemplate.Execute(&body, struct {
		Username string
		Link     string
	}{Username: user.Username, Link: w.VerificationLink(token)})
	if err != nil {
		return err
	}

	if err = w.mailer.Send(ctx, user.Email, VerificationEmailSubject, body.String()); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to send verification email")
		return ErrVerificationEmail
	}
	return nil
}
