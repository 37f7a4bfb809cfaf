package notify

import (
	"github.com/nhle/patient-portal/internal/model"
)

// PermissionStore reads and records the user's alert permission answer.
// The terminal has no native permission registry, so the recorded answer
// lives in the config file; the store abstracts that away (and lets tests
// use an in-memory value).
type PermissionStore interface {
	Permission() model.Permission
	SetPermission(p model.Permission) error
}

// Prompter asks the user whether OS alerts may be shown. The shell
// provides the interactive implementation.
type Prompter interface {
	Ask() (granted bool, err error)
}

// ConfigPermissions persists the permission answer in the app config file.
type ConfigPermissions struct {
	path string
	cfg  *model.AppConfig
}

var _ PermissionStore = (*ConfigPermissions)(nil)

// NewConfigPermissions wraps the loaded config; SetPermission writes the
// whole config back to path.
func NewConfigPermissions(path string, cfg *model.AppConfig) *ConfigPermissions {
	return &ConfigPermissions{path: path, cfg: cfg}
}

// Permission returns the recorded answer, treating anything unrecognized
// as default.
func (c *ConfigPermissions) Permission() model.Permission {
	switch model.Permission(c.cfg.Notifications.Permission) {
	case model.PermissionGranted:
		return model.PermissionGranted
	case model.PermissionDenied:
		return model.PermissionDenied
	default:
		return model.PermissionDefault
	}
}

// SetPermission records the answer durably.
func (c *ConfigPermissions) SetPermission(p model.Permission) error {
	c.cfg.Notifications.Permission = string(p)
	return model.SaveConfig(c.path, c.cfg)
}
