package domain

// Principal is an authenticated user as seen by the live layer. Superusers
// may observe any event; everyone else is limited to events they created or
// are assigned to as staff.
type Principal struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
}
