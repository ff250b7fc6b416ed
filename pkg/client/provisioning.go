package client

import (
	"context"
	"net/http"

	"github.com/dukex/onboarding/pkg/models"
)

// ProvisioningClient submits bundles to the provisioning API and reads back
// the tenant's status. Submissions rely on ctx only; no client timeout.
type ProvisioningClient struct {
	*base
}

func NewProvisioningClient(baseURL string, session *Session, opts ...Option) (*ProvisioningClient, error) {
	b, err := newBase("provisioning_client", baseURL, session, 0, opts)
	if err != nil {
		return nil, err
	}

	return &ProvisioningClient{base: b}, nil
}

func (c *ProvisioningClient) Start(ctx context.Context, bundle models.SavedData) error {
	if bundle == nil {
		bundle = models.SavedData{}
	}

	return c.do(ctx, http.MethodPost, "/provisioning/start", bundle, nil)
}

func (c *ProvisioningClient) Status(ctx context.Context) (*models.ProvisioningStatus, error) {
	var status models.ProvisioningStatus

	err := c.do(ctx, http.MethodGet, "/provisioning/status", nil, &status)
	if err != nil {
		return nil, err
	}

	return &status, nil
}
