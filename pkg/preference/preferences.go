package preference

import (
	"time"

	"github.com/poolfi/notifier/pkg/notification"
)

// DigestFrequency controls how often email notifications are batched.
type DigestFrequency string

const (
	DigestImmediate DigestFrequency = "immediate"
	DigestDaily     DigestFrequency = "daily"
	DigestWeekly    DigestFrequency = "weekly"
)

// Valid reports whether f is a known digest frequency.
func (f DigestFrequency) Valid() bool {
	switch f {
	case DigestImmediate, DigestDaily, DigestWeekly:
		return true
	}
	return false
}

// EmailPreferences configures the email channel for a user.
type EmailPreferences struct {
	Enabled         bool            `json:"enabled"`
	Address         string          `json:"address,omitempty"`
	DigestFrequency DigestFrequency `json:"digest_frequency"`
	DigestTime      string          `json:"digest_time"`            // time of day in "15:04" format
	DigestDays      []time.Weekday  `json:"digest_days,omitempty"`  // weekly digests only
}

// PushPreferences configures the push channel for a user.
type PushPreferences struct {
	Enabled      bool     `json:"enabled"`
	DeviceTokens []string `json:"device_tokens,omitempty"`
}

// InAppPreferences configures the in-app channel for a user.
type InAppPreferences struct {
	Enabled           bool          `json:"enabled"`
	ShowBadge         bool          `json:"show_badge"`
	PlaySound         bool          `json:"play_sound"`
	GroupSimilar      bool          `json:"group_similar"`
	AutoMarkReadAfter time.Duration `json:"auto_mark_read_after,omitempty"` // 0 disables
}

// QuietHours defines a daily window during which non-urgent push and in-app
// notifications are deferred. The window may wrap past midnight.
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // "22:00"
	End     string `json:"end"`   // "08:00"
}

// TypeOverride enables or disables specific channels for one notification
// type, taking precedence over the channel-level default. Nil means no
// override for that channel.
type TypeOverride struct {
	Email *bool `json:"email,omitempty"`
	Push  *bool `json:"push,omitempty"`
	InApp *bool `json:"in_app,omitempty"`
}

// Preferences is the per-user notification configuration. One record per user.
type Preferences struct {
	UserAddress string                                 `json:"user_address"`
	Email       EmailPreferences                       `json:"email"`
	Push        PushPreferences                        `json:"push"`
	InApp       InAppPreferences                       `json:"in_app"`
	Quiet       QuietHours                             `json:"quiet_hours"`
	Overrides   map[notification.Type]TypeOverride     `json:"overrides,omitempty"`
	UpdatedAt   time.Time                              `json:"updated_at"`
}

// Default returns the preferences applied to users who have never saved any:
// every channel enabled, email delivered immediately, no quiet hours.
func Default(userAddress string) Preferences {
	return Preferences{
		UserAddress: userAddress,
		Email: EmailPreferences{
			Enabled:         true,
			DigestFrequency: DigestImmediate,
			DigestTime:      "09:00",
		},
		Push:  PushPreferences{Enabled: true},
		InApp: InAppPreferences{Enabled: true, ShowBadge: true, GroupSimilar: true},
	}
}

// ChannelEnabled reports whether the channel is enabled for the given
// notification type, applying per-type overrides over the channel default.
func (p Preferences) ChannelEnabled(ch notification.Channel, t notification.Type) bool {
	enabled := false
	var override *bool

	ov, hasOverride := p.Overrides[t]
	switch ch {
	case notification.ChannelEmail:
		enabled = p.Email.Enabled
		if hasOverride {
			override = ov.Email
		}
	case notification.ChannelPush:
		enabled = p.Push.Enabled
		if hasOverride {
			override = ov.Push
		}
	case notification.ChannelInApp:
		enabled = p.InApp.Enabled
		if hasOverride {
			override = ov.InApp
		}
	}

	// An override cannot re-enable a disabled channel: channel-level enabled
	// is the hard switch, the override narrows it per type.
	if !enabled {
		return false
	}
	if override != nil {
		return *override
	}
	return enabled
}

// Update carries a partial preferences change. Nil fields are left untouched.
type Update struct {
	Email     *EmailPreferences                  `json:"email,omitempty"`
	Push      *PushPreferences                   `json:"push,omitempty"`
	InApp     *InAppPreferences                  `json:"in_app,omitempty"`
	Quiet     *QuietHours                        `json:"quiet_hours,omitempty"`
	Overrides map[notification.Type]TypeOverride `json:"overrides,omitempty"`
}

// Apply merges the update into the preferences and bumps UpdatedAt.
func (p *Preferences) Apply(u Update) {
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.Push != nil {
		p.Push = *u.Push
	}
	if u.InApp != nil {
		p.InApp = *u.InApp
	}
	if u.Quiet != nil {
		p.Quiet = *u.Quiet
	}
	if u.Overrides != nil {
		if p.Overrides == nil {
			p.Overrides = make(map[notification.Type]TypeOverride, len(u.Overrides))
		}
		for t, ov := range u.Overrides {
			p.Overrides[t] = ov
		}
	}
	p.UpdatedAt = time.Now()
}
