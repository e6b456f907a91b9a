package bot

// Access holds the allow-list and admin sets from configuration
type Access struct {
	allowed map[int64]bool
	admins  map[int64]bool
}

// NewAccess builds the access checker. An empty admin list means every
// allowed user is an admin.
func NewAccess(allowed, admins []int64) *Access {
	a := &Access{
		allowed: make(map[int64]bool, len(allowed)),
		admins:  make(map[int64]bool, len(admins)),
	}
	for _, id := range allowed {
		a.allowed[id] = true
	}
	if len(admins) == 0 {
		admins = allowed
	}
	for _, id := range admins {
		a.admins[id] = true
	}
	return a
}

func (a *Access) IsAllowed(userID int64) bool {
	return a.allowed[userID]
}

func (a *Access) IsAdmin(userID int64) bool {
	return a.admins[userID]
}
