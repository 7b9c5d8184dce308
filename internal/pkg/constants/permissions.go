package constants

const (
	ManageProducts     = "manage_products"
	ManageCropListings = "manage_crop_listings"
	PlaceOrders        = "place_orders"
	Negotiate          = "negotiate"
	FulfillOrders      = "fulfill_orders"
	AssignRole         = "assign_role"
)

// PermissionRoles maps each permission to roles allowed to perform it.
// Sellers and farmers can also buy; a farmer is a seller of crop lots and catalog produce.
var PermissionRoles = map[string][]string{
	ManageProducts:     {Seller, Farmer, Admin},
	ManageCropListings: {Farmer, Admin},
	PlaceOrders:        {Buyer, Seller, Farmer, Admin},
	Negotiate:          {Buyer, Seller, Farmer, Admin},
	FulfillOrders:      {Seller, Farmer, Admin},
	AssignRole:         {Admin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	return contains(roles, role)
}
