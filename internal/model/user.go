package model

// Role names carried in the access token's "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
)

// Actor is the authenticated caller of a service operation. Accounts are
// managed outside this service; the access token only provides the
// account ID and its role.
//
// Fields:
//  UserID – account identifier (token "sub").
//  Role   – CUSTOMER or STAFF.
type Actor struct {
	UserID uint64 `json:"user_id"`
	Role   string `json:"role"`
}

// IsStaff reports whether the actor may perform back-office operations.
func (a Actor) IsStaff() bool { return a.Role == RoleStaff }
