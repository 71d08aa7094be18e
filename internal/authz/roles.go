package authz

// Site roles, stored in users.role_id and carried in the JWT.
const (
	RoleBasic  = 10
	RoleAgency = 20
	RoleStaff  = 50
)

func IsStaff(roleID int) bool {
	return roleID == RoleStaff
}

func IsAgency(roleID int) bool {
	return roleID == RoleAgency
}

func ValidRole(roleID int) bool {
	return roleID == RoleBasic || roleID == RoleAgency || roleID == RoleStaff
}

// Actor is whoever triggers an action: a logged-in account or an anonymous
// visitor (UserID == 0) who may present an access key.
type Actor struct {
	UserID         int64
	RoleID         int
	AgencyID       int64
	CanEmbargo     bool
	CanEmbargoPerm bool
	AccessKey      string
}

func (a Actor) Anonymous() bool { return a.UserID == 0 }

func (a Actor) IsStaff() bool { return IsStaff(a.RoleID) }
