package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	require.True(t, HasPermission(RoleClient, PermissionCreateProject))
	require.False(t, HasPermission(RoleClient, PermissionPlaceBid))
	require.True(t, HasPermission(RoleContributor, PermissionPlaceBid))
	require.False(t, HasPermission(RoleContributor, PermissionDecideBid))
	require.True(t, HasPermission(RoleAdmin, PermissionReplayOutbox))
	// admins moderate; bidding and reviewing need a real party
	require.False(t, HasPermission(RoleAdmin, PermissionReview))
	require.False(t, HasPermission(RoleAdmin, PermissionPlaceBid))
	require.False(t, HasPermission("guest", PermissionReadEngagement))
}

func TestCheckPermission(t *testing.T) {
	require.NoError(t, CheckPermission(RoleContributor, PermissionSubmitMilestone))

	err := CheckPermission(RoleContributor, PermissionReplayOutbox)
	var denied *PermissionDeniedError
	require.True(t, errors.As(err, &denied))
	require.Equal(t, PermissionReplayOutbox, denied.Permission)
}

func TestValidRole(t *testing.T) {
	require.True(t, ValidRole(RoleAdmin))
	require.False(t, ValidRole(""))
}
