package dto

import "github.com/breviobot/breviobot-service/app/entity"

const TokenTypeBearer = "bearer"

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	User         *entity.User
}

type RefreshResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}
