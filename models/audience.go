package models

// Audience is the targeting rule that determines which users receive a
// published notification. Resolution to concrete user ids happens in the
// dispatch worker via a directory lookup.
type Audience struct {
	// Kind is one of "all", "role", "company".
	Kind string `bson:"kind" json:"kind"`
	// Value carries the role name or company id for the narrower kinds.
	Value string `bson:"value,omitempty" json:"value,omitempty"`
}

const (
	AudienceAll     = "all"
	AudienceRole    = "role"
	AudienceCompany = "company"
)

// Valid reports whether the audience is well formed.
func (a Audience) Valid() bool {
	switch a.Kind {
	case AudienceAll:
		return a.Value == ""
	case AudienceRole, AudienceCompany:
		return a.Value != ""
	}
	return false
}
