package health

import (
	"fmt"
	"slices"
	"time"

	apperrors "github.com/gmsas95/skysense/internal/errors"
)

// Medication is a scheduled medication on the user's health profile
type Medication struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Dosage    string   `json:"dosage" yaml:"dosage"`       // e.g., "2 puffs", "10mg"
	Frequency string   `json:"frequency" yaml:"frequency"` // free text, e.g. "twice daily"
	Times     []string `json:"times" yaml:"times"`         // daily firing times, "HH:MM"
	Condition string   `json:"condition" yaml:"condition"`
	IsActive  bool     `json:"isActive" yaml:"isActive"`
	Notes     string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// UserProfile is the user's health profile
type UserProfile struct {
	HasAsthma         bool         `json:"hasAsthma" yaml:"hasAsthma"`
	HasDustAllergy    bool         `json:"hasDustAllergy" yaml:"hasDustAllergy"`
	HasPollenAllergy  bool         `json:"hasPollenAllergy" yaml:"hasPollenAllergy"`
	HasHeartCondition bool         `json:"hasHeartCondition" yaml:"hasHeartCondition"`
	HasUVSensitivity  bool         `json:"hasUVSensitivity" yaml:"hasUVSensitivity"`
	Gender            string       `json:"gender" yaml:"gender"`
	AgeGroup          string       `json:"ageGroup" yaml:"ageGroup"`
	Medications       []Medication `json:"medications" yaml:"medications"`
}

// AppSettings is the flat set of feature toggles
type AppSettings struct {
	DarkMode            bool `json:"darkMode" yaml:"darkMode"`
	VoiceAssistant      bool `json:"voiceAssistant" yaml:"voiceAssistant"`
	PushNotifications   bool `json:"pushNotifications" yaml:"pushNotifications"`
	WeatherAlerts       bool `json:"weatherAlerts" yaml:"weatherAlerts"`
	AirQualityAlerts    bool `json:"airQualityAlerts" yaml:"airQualityAlerts"`
	HealthReminders     bool `json:"healthReminders" yaml:"healthReminders"`
	MedicationReminders bool `json:"medicationReminders" yaml:"medicationReminders"`
	CommunityUpdates    bool `json:"communityUpdates" yaml:"communityUpdates"`
	LocationSharing     bool `json:"locationSharing" yaml:"locationSharing"`
	AutoRefresh         bool `json:"autoRefresh" yaml:"autoRefresh"`
}

// SettingsPatch is a partial AppSettings; nil fields are left unchanged
type SettingsPatch struct {
	DarkMode            *bool `json:"darkMode,omitempty" yaml:"darkMode,omitempty"`
	VoiceAssistant      *bool `json:"voiceAssistant,omitempty" yaml:"voiceAssistant,omitempty"`
	PushNotifications   *bool `json:"pushNotifications,omitempty" yaml:"pushNotifications,omitempty"`
	WeatherAlerts       *bool `json:"weatherAlerts,omitempty" yaml:"weatherAlerts,omitempty"`
	AirQualityAlerts    *bool `json:"airQualityAlerts,omitempty" yaml:"airQualityAlerts,omitempty"`
	HealthReminders     *bool `json:"healthReminders,omitempty" yaml:"healthReminders,omitempty"`
	MedicationReminders *bool `json:"medicationReminders,omitempty" yaml:"medicationReminders,omitempty"`
	CommunityUpdates    *bool `json:"communityUpdates,omitempty" yaml:"communityUpdates,omitempty"`
	LocationSharing     *bool `json:"locationSharing,omitempty" yaml:"locationSharing,omitempty"`
	AutoRefresh         *bool `json:"autoRefresh,omitempty" yaml:"autoRefresh,omitempty"`
}

// DefaultProfile returns the blank profile used before onboarding
func DefaultProfile() UserProfile {
	return UserProfile{Medications: []Medication{}}
}

// DefaultSettings returns the settings a fresh install starts with
func DefaultSettings() AppSettings {
	return AppSettings{
		DarkMode:            false,
		VoiceAssistant:      true,
		PushNotifications:   true,
		WeatherAlerts:       true,
		AirQualityAlerts:    true,
		HealthReminders:     true,
		MedicationReminders: true,
		CommunityUpdates:    false,
		LocationSharing:     true,
		AutoRefresh:         true,
	}
}

// Bool returns a pointer to b, for building patches
func Bool(b bool) *bool {
	return &b
}

// Apply merges the non-nil fields of p over s and returns the result
func (s AppSettings) Apply(p SettingsPatch) AppSettings {
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&s.DarkMode, p.DarkMode)
	set(&s.VoiceAssistant, p.VoiceAssistant)
	set(&s.PushNotifications, p.PushNotifications)
	set(&s.WeatherAlerts, p.WeatherAlerts)
	set(&s.AirQualityAlerts, p.AirQualityAlerts)
	set(&s.HealthReminders, p.HealthReminders)
	set(&s.MedicationReminders, p.MedicationReminders)
	set(&s.CommunityUpdates, p.CommunityUpdates)
	set(&s.LocationSharing, p.LocationSharing)
	set(&s.AutoRefresh, p.AutoRefresh)
	return s
}

// Patch returns a patch that sets every field to the value in s
func (s AppSettings) Patch() SettingsPatch {
	return SettingsPatch{
		DarkMode:            Bool(s.DarkMode),
		VoiceAssistant:      Bool(s.VoiceAssistant),
		PushNotifications:   Bool(s.PushNotifications),
		WeatherAlerts:       Bool(s.WeatherAlerts),
		AirQualityAlerts:    Bool(s.AirQualityAlerts),
		HealthReminders:     Bool(s.HealthReminders),
		MedicationReminders: Bool(s.MedicationReminders),
		CommunityUpdates:    Bool(s.CommunityUpdates),
		LocationSharing:     Bool(s.LocationSharing),
		AutoRefresh:         Bool(s.AutoRefresh),
	}
}

// IsEmpty reports whether the patch changes nothing
func (p SettingsPatch) IsEmpty() bool {
	return p == SettingsPatch{}
}

// Clone returns a deep copy that shares no slices with p
func (p UserProfile) Clone() UserProfile {
	out := p
	out.Medications = make([]Medication, len(p.Medications))
	for i, m := range p.Medications {
		m.Times = slices.Clone(m.Times)
		out.Medications[i] = m
	}
	return out
}

// Normalize fills defaults for fields a remote payload may omit
func (p UserProfile) Normalize() UserProfile {
	out := p.Clone()
	for i := range out.Medications {
		if out.Medications[i].Times == nil {
			out.Medications[i].Times = []string{}
		}
	}
	return out
}

// Validate checks medication ids are unique and times are well-formed
func (p UserProfile) Validate() error {
	seen := make(map[string]struct{}, len(p.Medications))
	for _, m := range p.Medications {
		if m.ID == "" {
			return apperrors.Wrap(fmt.Errorf("medication %q has no id", m.Name), apperrors.ErrBadRequest.Code, "invalid medication")
		}
		if _, dup := seen[m.ID]; dup {
			return apperrors.WrapAs(apperrors.ErrDuplicateMedication, fmt.Errorf("id %s", m.ID))
		}
		seen[m.ID] = struct{}{}
		for _, t := range m.Times {
			if _, _, err := ParseClock(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// ActiveMedications returns the medications that can produce reminders
func (p UserProfile) ActiveMedications() []Medication {
	var out []Medication
	for _, m := range p.Medications {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

// FiresAt reports whether the medication is active and scheduled at clock
func (m Medication) FiresAt(clock string) bool {
	return m.IsActive && slices.Contains(m.Times, clock)
}

// Occurrence identifies one scheduled dose: a medication on a date at a minute
type Occurrence struct {
	MedicationID string `json:"medicationId"`
	Date         string `json:"date"` // YYYY-MM-DD, local
	Time         string `json:"time"` // HH:MM, local
}

// OccurrenceAt builds the occurrence of med at the minute containing t
func OccurrenceAt(med Medication, t time.Time) Occurrence {
	return Occurrence{
		MedicationID: med.ID,
		Date:         DateString(t),
		Time:         ClockString(t),
	}
}

func (o Occurrence) String() string {
	return o.MedicationID + "@" + o.Date + "T" + o.Time
}
