package remote

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rdmitry/taskvault/internal/config"
)

// Probe answers reachability questions with a lightweight HEAD against the
// store's base URL. Any HTTP response counts as reachable, including auth
// and server errors; only a transport failure means offline.
type Probe struct {
	client *resty.Client
}

func NewProbe(cfg config.Remote) *Probe {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout)

	return &Probe{client: cli}
}

func (p *Probe) Online(ctx context.Context) bool {
	_, err := p.client.R().SetContext(ctx).Head("/")
	return err == nil
}
