package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"octogrowl/internal/config"
	"octogrowl/internal/growl"
	"octogrowl/internal/storage"
)

const maxBodyBytes = 1 << 20

// ErrInvalidSettings is wrapped by SettingsStore errors caused by bad input.
var ErrInvalidSettings = errors.New("invalid settings")

type handlers struct {
	deps Deps
}

// bind reads the request body and decodes it with sonic.
func bind(c *gin.Context, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody("request body too large"))
		return false
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, errorBody(what+" not available"))
}

type eventRequest struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// postEvent queues a host lifecycle event. It answers before any delivery.
func (h *handlers) postEvent(c *gin.Context) {
	if h.deps.Events == nil {
		unavailable(c, "event sink")
		return
	}
	var req eventRequest
	if !bind(c, &req) {
		return
	}
	req.Event = strings.TrimSpace(req.Event)
	if req.Event == "" {
		c.JSON(http.StatusBadRequest, errorBody("event is required"))
		return
	}
	queued := h.deps.Events.HandleAsync(req.Event, req.Payload)
	c.JSON(http.StatusAccepted, gin.H{"event": req.Event, "queued": queued})
}

type commandRequest struct {
	Command  string `json:"command"`
	Host     string `json:"host"`
	Port     any    `json:"port"`
	Password string `json:"password"`
}

// postCommand runs a plugin admin command. Only "test" exists.
func (h *handlers) postCommand(c *gin.Context) {
	if h.deps.Admin == nil {
		unavailable(c, "admin")
		return
	}
	var req commandRequest
	if !bind(c, &req) {
		return
	}
	if req.Command != "test" {
		c.String(http.StatusBadRequest, "Unknown command")
		return
	}
	if strings.TrimSpace(req.Host) == "" || req.Port == nil {
		c.JSON(http.StatusBadRequest, errorBody("test requires host and port"))
		return
	}
	port, ok := parsePort(req.Port)
	if !ok {
		c.JSON(http.StatusBadRequest, errorBody("port must be a number"))
		return
	}
	res := h.deps.Admin.TestConnectivity(c.Request.Context(), growl.TestRequest{Host: req.Host, Port: port, Password: req.Password})
	c.JSON(http.StatusOK, res)
}

// parsePort accepts a JSON number or a numeric string.
func parsePort(v any) (int, bool) {
	switch p := v.(type) {
	case float64:
		if p != float64(int(p)) {
			return 0, false
		}
		return int(p), true
	case json.Number:
		n, err := strconv.Atoi(p.String())
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(p))
		return n, err == nil
	default:
		return 0, false
	}
}

func (h *handlers) getReceivers(c *gin.Context) {
	if h.deps.Admin == nil {
		unavailable(c, "admin")
		return
	}
	c.JSON(http.StatusOK, h.deps.Admin.ListReceivers(c.Request.Context()))
}

// settingsView is the receiver section as shown to admins. The password is
// never echoed back.
type settingsView struct {
	Hostname         string   `json:"hostname"`
	Port             int      `json:"port"`
	PasswordSet      bool     `json:"password_set"`
	Timeout          string   `json:"timeout,omitempty"`
	AppName          string   `json:"app_name,omitempty"`
	IconURL          string   `json:"icon_url,omitempty"`
	HashAlgorithm    string   `json:"hash_algorithm,omitempty"`
	EnabledByDefault []string `json:"enabled_by_default,omitempty"`
}

func viewOf(rc config.ReceiverConfig) settingsView {
	return settingsView{
		Hostname:         rc.Hostname,
		Port:             rc.Port,
		PasswordSet:      rc.Password != "",
		Timeout:          rc.Timeout,
		AppName:          rc.AppName,
		IconURL:          rc.IconURL,
		HashAlgorithm:    rc.HashAlgorithm,
		EnabledByDefault: rc.EnabledByDefault,
	}
}

// settingsPatch updates only the fields present in the request.
type settingsPatch struct {
	Hostname         *string   `json:"hostname"`
	Port             *int      `json:"port"`
	Password         *string   `json:"password"`
	Timeout          *string   `json:"timeout"`
	AppName          *string   `json:"app_name"`
	IconURL          *string   `json:"icon_url"`
	HashAlgorithm    *string   `json:"hash_algorithm"`
	EnabledByDefault *[]string `json:"enabled_by_default"`
}

// check rejects an endpoint the request spells out but could never reach.
func (p settingsPatch) check() error {
	if p.Hostname != nil && strings.TrimSpace(*p.Hostname) == "" {
		return errors.New("hostname must not be empty")
	}
	if p.Port != nil && (*p.Port < 1 || *p.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

func (p settingsPatch) apply(rc config.ReceiverConfig) config.ReceiverConfig {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&rc.Hostname, p.Hostname)
	set(&rc.Timeout, p.Timeout)
	set(&rc.AppName, p.AppName)
	set(&rc.IconURL, p.IconURL)
	set(&rc.HashAlgorithm, p.HashAlgorithm)
	if p.Password != nil {
		rc.Password = *p.Password
	}
	if p.Port != nil {
		rc.Port = *p.Port
	}
	if p.EnabledByDefault != nil {
		rc.EnabledByDefault = slices.Clone(*p.EnabledByDefault)
	}
	return rc
}

func (h *handlers) getSettings(c *gin.Context) {
	if h.deps.Settings == nil {
		unavailable(c, "settings")
		return
	}
	c.JSON(http.StatusOK, viewOf(h.deps.Settings.Receiver()))
}

func (h *handlers) putSettings(c *gin.Context) {
	if h.deps.Settings == nil {
		unavailable(c, "settings")
		return
	}
	var patch settingsPatch
	if !bind(c, &patch) {
		return
	}
	if err := patch.check(); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	next := patch.apply(h.deps.Settings.Receiver())
	if err := h.deps.Settings.SaveReceiver(c.Request.Context(), next); err != nil {
		switch {
		case errors.Is(err, ErrInvalidSettings):
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, config.ErrNoPath):
			c.JSON(http.StatusConflict, errorBody("settings are not backed by a file"))
		default:
			c.JSON(http.StatusInternalServerError, errorBody("saving settings failed"))
		}
		return
	}
	c.JSON(http.StatusOK, viewOf(next))
}

func (h *handlers) getStatus(c *gin.Context) {
	if h.deps.Status == nil {
		unavailable(c, "status")
		return
	}
	c.JSON(http.StatusOK, h.deps.Status())
}

func (h *handlers) getAudit(c *gin.Context) {
	if h.deps.Audit == nil {
		unavailable(c, "audit storage")
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = min(n, 1000)
	}
	entries, err := h.deps.Audit.RecentAudit(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("reading audit failed"))
		return
	}
	if entries == nil {
		entries = []storage.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
