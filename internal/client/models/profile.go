package models

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Profile is the application-side account record keyed by the user id.
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// ProfileUpdate lists the user-editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Username  *string
	FullName  *string
	AvatarURL *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.FullName == nil && u.AvatarURL == nil
}
