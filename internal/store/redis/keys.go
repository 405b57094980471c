package redis

const (
	// KeyPrefixProfile is the prefix for cached profile rows
	KeyPrefixProfile = "linkhub:profile:"

	// KeyPrefixProfileGen is the prefix for per-profile write generations
	KeyPrefixProfileGen = "linkhub:profile-gen:"
)

// ProfileKey returns the Redis key for a cached profile row
func ProfileKey(username string) string {
	return KeyPrefixProfile + username
}

// ProfileGenKey returns the Redis key counting writes to a profile
func ProfileGenKey(username string) string {
	return KeyPrefixProfileGen + username
}
