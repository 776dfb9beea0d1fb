package growl

import (
	"context"
	"fmt"

	"octogrowl/internal/gntp"
)

// Client is a registered connection to one receiver. Implementations must be
// safe for concurrent Notify calls.
type Client interface {
	Register(ctx context.Context) error
	Notify(ctx context.Context, rec NotificationRecord) error
	// Config returns the config the client was built from.
	Config() ReceiverConfig
}

// ClientFactory builds an unregistered client for cfg.
type ClientFactory func(cfg ReceiverConfig) (Client, error)

// GNTPFactory returns a ClientFactory producing GNTP clients.
func GNTPFactory(opts ...gntp.Option) ClientFactory {
	return func(cfg ReceiverConfig) (Client, error) {
		return NewGNTPClient(cfg, opts...)
	}
}

type gntpClient struct {
	cfg ReceiverConfig
	c   *gntp.Client
}

// NewGNTPClient builds a client that registers the full catalog with the
// receiver described by cfg.
func NewGNTPClient(cfg ReceiverConfig, opts ...gntp.Option) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	alg, err := gntp.ParseHashAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	types := make([]gntp.NotificationType, 0, len(catalog))
	for _, t := range AllTypes() {
		types = append(types, gntp.NotificationType{
			Name:        t.DisplayName(),
			DisplayName: t.DisplayName(),
			Enabled:     cfg.isEnabledByDefault(t),
		})
	}
	c := gntp.NewClient(gntp.Config{
		Host:          cfg.Hostname,
		Port:          cfg.Port,
		Password:      cfg.Password,
		Timeout:       cfg.Timeout,
		AppName:       cfg.AppName,
		IconURL:       cfg.IconURL,
		HashAlgorithm: alg,
		Types:         types,
	}, opts...)
	return &gntpClient{cfg: cfg, c: c}, nil
}

func (g *gntpClient) Register(ctx context.Context) error { return g.c.Register(ctx) }

func (g *gntpClient) Notify(ctx context.Context, rec NotificationRecord) error {
	if !rec.Type.valid() {
		return fmt.Errorf("growl: unknown notification type %d", int(rec.Type))
	}
	return g.c.Notify(ctx, gntp.Notification{
		Name:     rec.Type.DisplayName(),
		Title:    rec.Title,
		Text:     rec.Description,
		Sticky:   rec.Sticky,
		Priority: rec.Priority,
	})
}

func (g *gntpClient) Config() ReceiverConfig { return g.cfg.Clone() }
