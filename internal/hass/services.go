package hass

import (
	"context"
	"encoding/json"

	"github.com/juju/errors"
)

// Services maps domain -> service name -> service description.
type Services map[string]map[string]json.RawMessage

// Has reports whether domain.service is registered.
func (s Services) Has(domain, service string) bool {
	_, ok := s[domain][service]
	return ok
}

// GetServices returns every registered service.
func (c *Client) GetServices(ctx context.Context) (Services, error) {
	var services Services
	if err := c.Call(ctx, "get_services", nil, &services); err != nil {
		return nil, errors.Annotate(err, "getting services")
	}
	return services, nil
}

// HasService reports whether domain.service is registered.
func (c *Client) HasService(ctx context.Context, domain, service string) (bool, error) {
	services, err := c.GetServices(ctx)
	if err != nil {
		return false, errors.Trace(err)
	}
	return services.Has(domain, service), nil
}

// CallService invokes domain.service with data and waits until the host
// reports the call finished.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	params := map[string]any{
		"domain":  domain,
		"service": service,
	}
	if len(data) > 0 {
		params["service_data"] = data
	}
	if err := c.Call(ctx, "call_service", params, nil); err != nil {
		// Host errors are surfaced unannotated; their text is shown to users.
		var herr *Error
		if errors.As(err, &herr) {
			return herr
		}
		return errors.Annotatef(err, "calling %s.%s", domain, service)
	}
	return nil
}
