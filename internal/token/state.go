package token

import "time"

// Status is the lifecycle state of a token
type Status int

const (
	// StatusEmpty means nothing has been obtained yet
	StatusEmpty Status = iota
	// StatusValid means the access value may be attached to requests
	StatusValid
	// StatusStale means the expiry has passed
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusStale:
		return "stale"
	}
	return "empty"
}

// State is the persisted form of a token.
type State struct {
	Access        string    `json:"access"`
	Refresh       string    `json:"refresh,omitempty"`
	Expires       time.Time `json:"expires"`
	Authenticated bool      `json:"authenticated"`
}

// Valid reports whether the token can still be used at now
func (s *State) Valid(now time.Time) bool {
	return s != nil && s.Access != "" && now.Before(s.Expires)
}

// Status returns the lifecycle state at now
func (s *State) Status(now time.Time) Status {
	switch {
	case s == nil || s.Access == "":
		return StatusEmpty
	case now.Before(s.Expires):
		return StatusValid
	}
	return StatusStale
}

func (s *State) clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
