package models

// StorageState is the session credential artifact written after login.
// The layout follows the storage state JSON used by Playwright so artifacts
// are interchangeable between tools.
type StorageState struct {
	Cookies []StateCookie `json:"cookies"`
	Origins []StateOrigin `json:"origins"`
}

// StateCookie is one browser cookie. Expires is seconds since the epoch, -1 for session cookies.
type StateCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"` // "Strict", "Lax" or "None"
}

// StateOrigin holds the localStorage entries of one origin
type StateOrigin struct {
	Origin       string          `json:"origin"`
	LocalStorage []StateKeyValue `json:"localStorage"`
}

// StateKeyValue is one localStorage entry
type StateKeyValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
