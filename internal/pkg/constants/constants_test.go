package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedRole(t *testing.T) {
	assert.True(t, AllowedRole(ManageCropListings, Farmer))
	assert.False(t, AllowedRole(ManageCropListings, Seller))
	assert.True(t, AllowedRole(PlaceOrders, Buyer))
	assert.False(t, AllowedRole(FulfillOrders, Buyer))
	assert.False(t, AllowedRole("unknown", Admin))
}

func TestSelfAssignableRoles(t *testing.T) {
	assert.True(t, IsSelfAssignableRole(Farmer))
	assert.False(t, IsSelfAssignableRole(Admin))
	assert.True(t, IsValidRole(Admin))
}
