package request

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RecoverRequest struct {
	Email string `json:"email"`
}

type UpdateUserRequest struct {
	Password string `json:"password"`
}
