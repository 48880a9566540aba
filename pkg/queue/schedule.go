package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule determines when a periodic task should run
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// EveryInterval creates a schedule that runs at fixed intervals
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// EveryMinute creates a schedule that runs every minute
func EveryMinute() Schedule { return EveryInterval(time.Minute) }

// EveryMinutes creates a schedule that runs every n minutes
func EveryMinutes(n int) Schedule { return EveryInterval(time.Duration(n) * time.Minute) }

// EveryHours creates a schedule that runs every n hours
func EveryHours(n int) Schedule { return EveryInterval(time.Duration(n) * time.Hour) }

// Hourly creates a schedule that runs every hour at :00
func Hourly() Schedule { return HourlyAt(0) }

// HourlyAt creates a schedule that runs every hour at the given minute
func HourlyAt(minute int) Schedule {
	return wallClockSchedule{period: periodHour, minute: minute}
}

// Daily creates a schedule that runs daily at midnight
func Daily() Schedule { return DailyAt(0, 0) }

// DailyAt creates a schedule that runs daily at the given time
func DailyAt(hour, minute int) Schedule {
	return wallClockSchedule{period: periodDay, hour: hour, minute: minute}
}

// Weekly creates a schedule that runs on weekday at midnight
func Weekly(weekday time.Weekday) Schedule { return WeeklyOn(weekday, 0, 0) }

// WeeklyOn creates a schedule that runs weekly on the given day and time
func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return wallClockSchedule{period: periodWeek, weekday: weekday, hour: hour, minute: minute}
}

// Monthly creates a schedule that runs on the given day of month at midnight
func Monthly(day int) Schedule { return MonthlyOn(day, 0, 0) }

// MonthlyOn creates a schedule that runs monthly on the given day and time.
// Days past the end of a month clamp to its last day.
func MonthlyOn(day, hour, minute int) Schedule {
	return wallClockSchedule{period: periodMonth, day: day, hour: hour, minute: minute}
}

// Cron parses a standard five-field cron expression (or a descriptor such as
// "@hourly" or "@every 90s").
func Cron(expr string) (Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronExpression, err)
	}
	return cronSchedule{expr: expr, sched: sched}, nil
}

// MustCron is like Cron but panics on an invalid expression
func MustCron(expr string) Schedule {
	s, err := Cron(expr)
	if err != nil {
		panic(err)
	}
	return s
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type cronSchedule struct {
	expr  string
	sched cron.Schedule
}

func (s cronSchedule) Next(from time.Time) time.Time {
	return s.sched.Next(from)
}

func (s cronSchedule) String() string {
	return "cron " + s.expr
}

type period int

const (
	periodHour period = iota
	periodDay
	periodWeek
	periodMonth
)

// wallClockSchedule fires at a fixed wall-clock position within an hour,
// day, week or month, in the location of the reference time.
type wallClockSchedule struct {
	period  period
	weekday time.Weekday
	day     int
	hour    int
	minute  int
}

func (s wallClockSchedule) Next(from time.Time) time.Time {
	loc := from.Location()

	switch s.period {
	case periodHour:
		next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), s.minute, 0, 0, loc)
		if !next.After(from) {
			next = next.Add(time.Hour)
		}
		return next

	case periodDay:
		next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, loc)
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case periodWeek:
		ahead := (int(s.weekday) - int(from.Weekday()) + 7) % 7
		next := time.Date(from.Year(), from.Month(), from.Day()+ahead, s.hour, s.minute, 0, 0, loc)
		if !next.After(from) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	default:
		year, month := from.Year(), from.Month()
		next := time.Date(year, month, min(s.day, daysInMonth(year, month)), s.hour, s.minute, 0, 0, loc)
		if !next.After(from) {
			first := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
			year, month = first.Year(), first.Month()
			next = time.Date(year, month, min(s.day, daysInMonth(year, month)), s.hour, s.minute, 0, 0, loc)
		}
		return next
	}
}

func (s wallClockSchedule) String() string {
	switch s.period {
	case periodHour:
		return fmt.Sprintf("hourly at :%02d", s.minute)
	case periodDay:
		return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
	case periodWeek:
		return fmt.Sprintf("weekly on %s at %02d:%02d", s.weekday, s.hour, s.minute)
	default:
		return fmt.Sprintf("monthly on day %d at %02d:%02d", s.day, s.hour, s.minute)
	}
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
