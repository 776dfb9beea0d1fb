package growl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/bytedance/sonic"

	logx "octogrowl/pkg/logx"
)

const (
	testTitle = "This is a test message"
	testBody  = "If you can read this, %s successfully registered with this Growl instance"
)

// TestRequest is the payload of the "test" admin command.
type TestRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password,omitempty"`
}

// TestResult is what the "test" admin command answers. Message is empty on success.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"msg,omitempty"`
}

// ReceiverList answers the "list receivers" admin query. Instances is only
// encoded when browsing is enabled, and then always as an array.
type ReceiverList struct {
	BrowsingEnabled bool              `json:"browsing_enabled"`
	Instances       []DiscoveryRecord `json:"instances,omitempty"`
}

func (l ReceiverList) MarshalJSON() ([]byte, error) {
	if !l.BrowsingEnabled {
		return []byte(`{"browsing_enabled":false}`), nil
	}
	inst := l.Instances
	if inst == nil {
		inst = []DiscoveryRecord{}
	}
	return sonic.Marshal(struct {
		BrowsingEnabled bool              `json:"browsing_enabled"`
		Instances       []DiscoveryRecord `json:"instances"`
	}{true, inst})
}

// BaseConfigFunc returns the config whose app name, icon, timeout and hash
// algorithm a connectivity test borrows.
type BaseConfigFunc func() ReceiverConfig

type AdminOption func(*Admin)

func WithAdminLogger(log logx.Logger) AdminOption { return func(a *Admin) { a.log = log } }

func WithAdminAudit(s AuditSink) AdminOption { return func(a *Admin) { a.audit = s } }

// WithDiscovery wires a DiscoveryBridge; without one, browsing is reported disabled.
func WithDiscovery(b DiscoveryBridge) AdminOption { return func(a *Admin) { a.SetDiscovery(b) } }

// WithBaseConfig sets where test requests take their non-endpoint settings from.
func WithBaseConfig(fn BaseConfigFunc) AdminOption { return func(a *Admin) { a.base = fn } }

// Admin implements AdminCommandHandler.
type Admin struct {
	mgr       *Manager
	log       logx.Logger
	audit     AuditSink
	discovery atomic.Pointer[bridgeBox]
	base      BaseConfigFunc
}

type bridgeBox struct{ b DiscoveryBridge }

func NewAdmin(mgr *Manager, opts ...AdminOption) *Admin {
	a := &Admin{mgr: mgr, base: DefaultReceiverConfig}
	for _, o := range opts {
		o(a)
	}
	return a
}

// TestConnectivity registers with the requested receiver and sends one Test
// notification. The active client is never touched.
func (a *Admin) TestConnectivity(ctx context.Context, req TestRequest) TestResult {
	cfg := a.base().Clone()
	cfg.Hostname = strings.TrimSpace(req.Host)
	cfg.Port = req.Port
	cfg.Password = req.Password
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(cfg.AppName) == "" {
		cfg.AppName = DefaultAppName
	}

	res := a.runTest(ctx, cfg)
	log := a.log.With(logx.String("endpoint", cfg.Endpoint()))
	if res.Success {
		log.Info("growl connectivity test succeeded")
	} else {
		log.Warn("growl connectivity test failed", logx.String("msg", res.Message))
	}
	if a.audit != nil {
		a.audit.Audit(context.WithoutCancel(ctx), AuditRecord{
			At:     a.mgr.now(),
			Action: AuditTest,
			Target: cfg.Endpoint(),
			OK:     res.Success,
			Detail: res.Message,
		})
	}
	return res
}

func (a *Admin) runTest(ctx context.Context, cfg ReceiverConfig) TestResult {
	client, err := a.mgr.TestConfig(ctx, cfg)
	if err != nil {
		return TestResult{Message: describeFailure(err)}
	}
	err = client.Notify(ctx, NotificationRecord{
		Type:        TypeTest,
		Title:       testTitle,
		Description: fmt.Sprintf(testBody, cfg.AppName),
		Priority:    defaultPriority,
	})
	if err != nil {
		return TestResult{Message: "Registered, but sending the test notification failed (" + classify(err) + "): " + err.Error()}
	}
	return TestResult{Success: true}
}

// describeFailure renders err for a human reading the admin UI.
func describeFailure(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "Invalid settings: " + ve.Field + " " + ve.Reason
	}
	var re *RegistrationError
	if errors.As(err, &re) {
		switch re.Reason {
		case ReasonAuthRejected:
			return "The Growl instance rejected the password"
		case ReasonTimeout:
			return "Timed out while registering with the Growl instance"
		case ReasonUnreachable:
			return "Could not reach the Growl instance: " + re.Err.Error()
		}
		return "Registration failed (" + re.Reason + "): " + re.Err.Error()
	}
	return err.Error()
}

// SetDiscovery swaps the DiscoveryBridge; nil disables browsing.
func (a *Admin) SetDiscovery(b DiscoveryBridge) {
	if b == nil {
		a.discovery.Store(nil)
		return
	}
	a.discovery.Store(&bridgeBox{b})
}

// ListReceivers reports discovered receivers, or browsing_enabled=false when
// no DiscoveryBridge is wired. Browse errors yield an empty list.
func (a *Admin) ListReceivers(ctx context.Context) ReceiverList {
	box := a.discovery.Load()
	if box == nil {
		return ReceiverList{BrowsingEnabled: false}
	}
	recs, err := box.b.Browse(ctx)
	if err != nil {
		a.log.Warn("receiver discovery failed", logx.Err(err))
		recs = nil
	}
	if recs == nil {
		recs = []DiscoveryRecord{}
	}
	return ReceiverList{BrowsingEnabled: true, Instances: recs}
}
