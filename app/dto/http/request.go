package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.New("Username and password are required")
	}
	return nil
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ResendVerificationRequest struct {
	Username string `json:"username" validate:"required"`
}

func (r *ResendVerificationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.New("Username is required")
	}
	return nil
}

type SummarizeRequest struct {
	Text     string `json:"text" validate:"required"`
	Language string `json:"language" validate:"omitempty,max=64"`
	Model    string `json:"model" validate:"omitempty,max=128"`
}

func (r *SummarizeRequest) Validate(maxInputLength int) error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Text" {
			return errors.New("Text is required")
		}
		return errors.New("Invalid language or model")
	}
	if maxInputLength > 0 && len([]rune(r.Text)) > maxInputLength {
		return errors.New("Text exceeds the maximum input length")
	}
	return nil
}
