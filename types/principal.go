package types

// Principal is the authenticated identity and entitlement snapshot attached
// to a request. It is rebuilt from a credential on every request and is never
// persisted as-is, so it may lag behind the stored user until the credential
// is refreshed or expires.
type Principal struct {
	ID                string   `json:"_id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Role              Role     `json:"role"`
	Profile           string   `json:"profile"`
	EnrolledCourseIDs []string `json:"enrolledCourseIds"`
}

// Anonymous returns the principal used when a request carries no credential.
func Anonymous() Principal {
	return Principal{EnrolledCourseIDs: []string{}}
}

// IsAnonymous reports whether p carries no identity.
func (p Principal) IsAnonymous() bool {
	return p.ID == ""
}

// HasRole reports whether p holds the given role.
func (p Principal) HasRole(role Role) bool {
	return !p.IsAnonymous() && p.Role == role
}

// IsEnrolled reports whether courseID is part of the snapshot's enrolled set.
func (p Principal) IsEnrolled(courseID string) bool {
	for _, id := range p.EnrolledCourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// NewPrincipal builds the credential snapshot for a user. Only course ids
// are taken from the enrollments; completion detail stays in the ledger.
func NewPrincipal(user User, enrollments []EnrollmentRecord) Principal {
	ids := make([]string, 0, len(enrollments))
	for _, rec := range enrollments {
		ids = append(ids, rec.CourseID)
	}
	return Principal{
		ID:                user.ID,
		Name:              user.Name,
		Email:             user.Email,
		Role:              user.Role,
		Profile:           user.Profile,
		EnrolledCourseIDs: ids,
	}
}
