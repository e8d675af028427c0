package service

import (
	"sort"
	"time"

	"github.com/mvdeventer/drive-alive-api/internal/models"
)

// SlotStride is the fixed grid slots are generated on, independent of
// the requested lesson duration.
const SlotStride = 15 * time.Minute

const dateLayout = "2006-01-02"

// workingWindow is a day's bookable range in minutes from midnight.
type workingWindow struct {
	start int
	end   int
}

// GenerateSlots derives candidate lesson slots from a weekly schedule and
// its date-scoped exceptions. It is a pure function of its inputs: no
// clock, no I/O. Dates are instructor-local; callers normalize timezones
// beforehand.
//
// Precedence per date: a TIME_OFF exception removes the date entirely, a
// CUSTOM exception replaces the weekly window, otherwise the weekly entry
// for that weekday applies (inactive or missing entries yield no slots).
// A slot starts on every 15-minute boundary t with t+duration <= window
// end; a window shorter than the duration simply yields nothing.
func GenerateSlots(instructorID string, schedule []models.WeeklySchedule, exceptions []models.AvailabilityException, from, to time.Time, duration time.Duration) []models.Slot {
	byWeekday := make(map[int]models.WeeklySchedule, len(schedule))
	for _, entry := range schedule {
		if entry.IsActive {
			byWeekday[entry.DayOfWeek] = entry
		}
	}

	timeOff := make(map[string]bool)
	custom := make(map[string]workingWindow)
	for _, exception := range exceptions {
		switch exception.Type {
		case models.ExceptionTimeOff:
			for d := dateOf(exception.StartDate); !d.After(dateOf(exception.EndDate)); d = d.AddDate(0, 0, 1) {
				timeOff[d.Format(dateLayout)] = true
			}
		case models.ExceptionCustom:
			if exception.StartMinute != nil && exception.EndMinute != nil {
				custom[dateOf(exception.StartDate).Format(dateLayout)] = workingWindow{start: *exception.StartMinute, end: *exception.EndMinute}
			}
		}
	}

	var slots []models.Slot
	for day := dateOf(from); !day.After(dateOf(to)); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		if timeOff[key] {
			continue
		}

		var window workingWindow
		if override, ok := custom[key]; ok {
			window = override
		} else if entry, ok := byWeekday[int(day.Weekday())]; ok {
			window = workingWindow{start: entry.StartMinute, end: entry.EndMinute}
		} else {
			continue
		}

		slots = append(slots, windowSlots(instructorID, day, window, duration)...)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartAt.Before(slots[j].StartAt) })
	return slots
}

func windowSlots(instructorID string, day time.Time, window workingWindow, duration time.Duration) []models.Slot {
	var slots []models.Slot
	durationMinutes := int(duration / time.Minute)
	stride := int(SlotStride / time.Minute)

	for start := window.start; start+durationMinutes <= window.end; start += stride {
		startAt := day.Add(time.Duration(start) * time.Minute)
		slots = append(slots, models.Slot{
			InstructorID: instructorID,
			StartAt:      startAt,
			EndAt:        startAt.Add(duration),
		})
	}
	return slots
}

// dateOf truncates to midnight preserving the location.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
