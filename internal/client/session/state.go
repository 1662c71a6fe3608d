package session

import "github.com/dmitrijs2005/cofind/internal/client/models"

// State is a read-only snapshot of the coordinator. Pointers in a snapshot
// are private copies.
type State struct {
	User        *models.User
	Profile     *models.Profile
	Loading     bool
	Initialized bool
}

func (s State) IsAuthenticated() bool { return s.User != nil }

func (s State) IsAdmin() bool { return s.Profile.IsAdmin() }

func cloneProfile(p *models.Profile) *models.Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
