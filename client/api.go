package client

import (
	"context"
	"net/http"
	"net/url"

	httpdto "github.com/breviobot/breviobot-service/app/dto/http"
)

// Signup, Verify and ResendVerification need no tokens.

func (s *Session) Signup(ctx context.Context, username, email, password string) (*httpdto.SignupResponse, error) {
	var out httpdto.SignupResponse
	req := httpdto.SignupRequest{Username: username, Email: email, Password: password}
	if err := s.send(ctx, http.MethodPost, "/signup", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) Verify(ctx context.Context, token string) (*httpdto.MessageResponse, error) {
	var out httpdto.MessageResponse
	if err := s.send(ctx, http.MethodGet, "/verify?token="+url.QueryEscape(token), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ResendVerification(ctx context.Context, username string) (*httpdto.MessageResponse, error) {
	var out httpdto.MessageResponse
	req := httpdto.ResendVerificationRequest{Username: username}
	if err := s.send(ctx, http.MethodPost, "/verify/resend", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) Me(ctx context.Context) (*httpdto.MeResponse, error) {
	var out httpdto.MeResponse
	if err := s.Do(ctx, http.MethodGet, "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) Summarize(ctx context.Context, text, language, model string) (string, error) {
	var out httpdto.SummarizeResponse
	req := httpdto.SummarizeRequest{Text: text, Language: language, Model: model}
	if err := s.Do(ctx, http.MethodPost, "/api/summarize", req, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}
