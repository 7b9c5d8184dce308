package constants

const (
	Buyer  = "buyer"
	Seller = "seller"
	Farmer = "farmer"
	Admin  = "admin"
)

// ValidRoles is the set of allowed values for user role.
var ValidRoles = []string{Buyer, Seller, Farmer, Admin}

// SelfAssignableRoles may be chosen at registration; admin is provisioned out of band.
var SelfAssignableRoles = []string{Buyer, Seller, Farmer}

// IsValidRole returns true if role is one of the allowed enum values.
func IsValidRole(role string) bool {
	return contains(ValidRoles, role)
}

func IsSelfAssignableRole(role string) bool {
	return contains(SelfAssignableRoles, role)
}

func contains(list []string, v string) bool {
	for _, r := range list {
		if r == v {
			return true
		}
	}
	return false
}
