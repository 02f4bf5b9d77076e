package acquire

// Outcome is the result of one acquisition attempt. Exactly one is
// produced per attempt.
type Outcome int

const (
	// NewUserFetched: the calendar was downloaded and cached.
	NewUserFetched Outcome = iota
	// WrongCredentials: the portal or the stored hash rejected the password.
	WrongCredentials
	// NoConnection: offline and nothing cached.
	NoConnection
	// LocalCacheServed: the cached calendar was used. Callers may start a
	// background refresh.
	LocalCacheServed
)

func (o Outcome) String() string {
	switch o {
	case NewUserFetched:
		return "new_user_fetched"
	case WrongCredentials:
		return "wrong_credentials"
	case NoConnection:
		return "no_connection"
	case LocalCacheServed:
		return "local_cache_served"
	default:
		return "unknown"
	}
}
