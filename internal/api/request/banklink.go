package request

type ExchangePublicTokenRequest struct {
	PublicToken string `json:"public_token"`
}

type TransactionsRequest struct {
	AccessToken string `json:"access_token"`
}
