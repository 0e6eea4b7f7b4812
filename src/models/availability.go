package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DaySchedule is one weekday's working window.
type DaySchedule struct {
	Day     time.Weekday `json:"day"`
	Start   string       `json:"start"`
	End     string       `json:"end"`
	Enabled bool         `json:"enabled"`
}

// WeeklySchedule is an ordered set of seven day entries, Sunday first.
// It is validated on write rather than trusted as free-form JSON on read.
type WeeklySchedule [7]DaySchedule

const scheduleTimeFormat = "15:04"

func (s WeeklySchedule) Validate() error {
	for i, day := range s {
		if day.Day != time.Weekday(i) {
			return fmt.Errorf("entry %d: expected %s, got %s", i, time.Weekday(i), day.Day)
		}
		if !day.Enabled {
			continue
		}
		start, err := time.Parse(scheduleTimeFormat, day.Start)
		if err != nil {
			return fmt.Errorf("entry %d: invalid start time %q", i, day.Start)
		}
		end, err := time.Parse(scheduleTimeFormat, day.End)
		if err != nil {
			return fmt.Errorf("entry %d: invalid end time %q", i, day.End)
		}
		if !start.Before(end) {
			return fmt.Errorf("entry %d: start %q is not before end %q", i, day.Start, day.End)
		}
	}
	return nil
}

func (s WeeklySchedule) Value() (driver.Value, error) {
	valueString, err := json.Marshal(s)
	return string(valueString), err
}

func (s *WeeklySchedule) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, s); err != nil {
		return err
	}
	return nil
}
