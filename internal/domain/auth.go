package domain

// Identity is the caller as reported by the identity provider.
// The zero value is an anonymous caller whose session state is not known yet.
type Identity struct {
	ID       string
	SignedIn bool
	Loaded   bool
}

// Anonymous is a resolved identity with no signed-in user.
var Anonymous = Identity{Loaded: true}

// CanMutate reports whether id may change p. Only the signed-in owner may.
//
// This is a convenience gate for callers. Backends scope every write to the
// owner id as well, so a client that skips the gate still cannot write.
func CanMutate(p Profile, id Identity) bool {
	return id.SignedIn && id.ID != "" && id.ID == p.OwnerID
}
