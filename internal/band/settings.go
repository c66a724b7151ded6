package band

import (
	"sort"

	"github.com/srg/bandctl/internal/codec"
)

// Settings is the snapshot of what was last written to a band
type Settings struct {
	Goal              int             `json:"goal,omitempty" yaml:"goal,omitempty"`
	GoalNotifications bool            `json:"goal_notifications" yaml:"goal_notifications"`
	IdleAlerts        *IdleAlerts     `json:"idle_alerts,omitempty" yaml:"idle_alerts,omitempty"`
	Alarms            []codec.Alarm   `json:"alarms,omitempty" yaml:"alarms,omitempty"`
	WristLift         *codec.Schedule `json:"wrist_lift,omitempty" yaml:"wrist_lift,omitempty"`
	NightMode         *codec.Schedule `json:"night_mode,omitempty" yaml:"night_mode,omitempty"`
	Lock              bool            `json:"lock" yaml:"lock"`
}

// PutAlarm records a, replacing the slot with the same id
func (s *Settings) PutAlarm(a codec.Alarm) {
	for i := range s.Alarms {
		if s.Alarms[i].ID == a.ID {
			s.Alarms[i] = a
			return
		}
	}
	s.Alarms = append(s.Alarms, a)
	sort.Slice(s.Alarms, func(i, j int) bool { return s.Alarms[i].ID < s.Alarms[j].ID })
}
