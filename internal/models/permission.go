package models

// RoleAdmin is the administrative role; admins see every document.
const RoleAdmin = "admin"

// Permission is the per-request access context derived from the caller's
// identity. A zero Permission (no user, no role) is an anonymous request
// that sees only global documents.
type Permission struct {
	UserID string
	Role   string
}

// Anonymous returns the permission context of an unauthenticated caller.
func Anonymous() Permission {
	return Permission{}
}

// Admin reports whether the context carries the administrative role.
func (p Permission) Admin() bool {
	return p.Role == RoleAdmin
}

// Visible reports whether doc may be shown to this caller. The same
// predicate is applied in search and in every listing path: a document is
// visible iff it is global, owned by the caller, or the caller is an admin.
func (p Permission) Visible(doc *Document) bool {
	if doc.IsGlobal {
		return true
	}
	if p.Admin() {
		return true
	}
	return p.UserID != "" && doc.OwnerID == p.UserID
}
