package service

// Fixed cache keys and tags
const (
	// KeyCurrentUser is the cache key of the logged in user's profile
	KeyCurrentUser = "currentDirectusUser"

	// TagCustomRequest tags every response of SendRequest
	TagCustomRequest = "customRequest"
)

