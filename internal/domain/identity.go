package domain

// Identity is the authenticated user's profile summary held by the session
// store. It is created on login, partially overwritten by profile updates and
// cleared on logout.
type Identity struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Image     string `json:"image,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Profile is the full editable profile. Only the summary portion round-trips
// through the currentUser key; the rest persists under userProfile_{id}.
type Profile struct {
	Identity
	Phone       string `json:"phone,omitempty"`
	BirthDate   string `json:"birthDate,omitempty"`
	Gender      string `json:"gender,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}
