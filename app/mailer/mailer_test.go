package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/breviobot/breviobot-service/config"

	"github.com/stretchr/testify/require"
)

func TestNewWithoutHostLogsOnly(t *testing.T) {
	m := New(config.EmailConfig{})
	_, ok := m.(*LogMailer)
	require.True(t, ok)
	require.NoError(t, m.Send(context.Background(), "a@x.com", "subject", "<p>body</p>"))
}

func TestNewWithHostUsesSMTP(t *testing.T) {
	m := New(config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587})
	_, ok := m.(*SMTPMailer)
	require.True(t, ok)
}

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("no-reply@breviobot.local", "BrevioBot", "a@x.com", "Verify your email for BrevioBot", "<a href=\"x\">x</a>")
	require.NoError(t, err)

	text := string(msg)
	require.Contains(t, text, "From: \"BrevioBot\" <no-reply@breviobot.local>\r\n")
	require.Contains(t, text, "To: a@x.com\r\n")
	require.Contains(t, text, "Subject: Verify your email for BrevioBot\r\n")
	require.Contains(t, text, "Content-Type: text/html; charset=UTF-8\r\n")
	require.True(t, strings.HasSuffix(text, "\r\n\r\n<a href=\"x\">x</a>"))
}

func TestBuildMessageRejectsBadRecipient(t *testing.T) {
	_, err := buildMessage("no-reply@breviobot.local", "BrevioBot", "not an address", "s", "b")
	require.Error(t, err)
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	m := NewSMTPMailer(config.EmailConfig{SMTPHost: "127.0.0.1", SMTPPort: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Send(ctx, "a@x.com", "s", "b"), context.Canceled)
}
