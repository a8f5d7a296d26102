package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/permission"
)

// permissionsEnvelope accepts both a bare payload and one wrapped in "data".
type permissionsEnvelope struct {
	permission.Payload
	Data *permission.Payload `json:"data"`
}

// GetMyPermissions fetches the caller's firm permissions. A 404 means the
// user has no firm and is reported as permission.ErrNoFirm.
func (c *Client) GetMyPermissions(ctx context.Context) (*permission.Payload, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/permissions/my", nil)
	if err != nil {
		return nil, err
	}
	var env permissionsEnvelope
	if err := parseResponse(resp, &env); err != nil {
		if errors.Is(err, goSession.ErrNotFound) {
			return nil, permission.ErrNoFirm
		}
		return nil, fmt.Errorf("permissions: %w", err)
	}
	if env.Data != nil {
		return env.Data, nil
	}
	p := env.Payload
	return &p, nil
}
