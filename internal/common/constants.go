package common

const (
	AppCartService = "cart-service"
	AppUserService = "user-service"
	AudienceUser   = "user"
)
