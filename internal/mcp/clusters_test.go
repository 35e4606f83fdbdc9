package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedInFullAdmitsEverything(t *testing.T) {
	assert.True(t, allowedIn(ProfileFull, ClusterProductBus))
	assert.True(t, allowedIn(ProfileFull, ClusterBuildSlots))
}

func TestAllowedInMinimalExcludesMessaging(t *testing.T) {
	assert.True(t, allowedIn(ProfileMinimal, ClusterInfrastructure))
	assert.False(t, allowedIn(ProfileMinimal, ClusterMessaging))
}

func TestAllowedInMessagingProfile(t *testing.T) {
	assert.True(t, allowedIn(ProfileMessaging, ClusterContact))
	assert.False(t, allowedIn(ProfileMessaging, ClusterFileReservations))
}

func TestAllowedInCoreIncludesFileReservations(t *testing.T) {
	assert.True(t, allowedIn(ProfileCore, ClusterFileReservations))
	assert.False(t, allowedIn(ProfileCore, ClusterProductBus))
}
