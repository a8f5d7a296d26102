package session

import "github.com/MrEthical07/goSession/permission"

const (
	// AuthKey names the {user, isAuthenticated} projection.
	AuthKey = "auth-storage"
	// PermissionsKey names the {permissions, fetchedAt} projection.
	PermissionsKey = "permissions-storage"
)

// PermissionsRecord is the persisted permission projection.
type PermissionsRecord struct {
	Permissions *permission.Payload `json:"permissions"`
	FetchedAt   int64               `json:"fetchedAt"`
	Origin      permission.Origin   `json:"origin,omitempty"`
}
