// Package analytics turns booking rows into the owner dashboard and admin
// summaries.  Everything is computed in memory over rows the repository
// loads; nothing here touches storage.
package analytics

import (
	"sort"
	"time"

	"github.com/iliyamo/parkease/internal/model"
)

const (
	// TopN is how many slots each leaderboard holds.
	TopN = 5
	// LogLimit caps the owner booking log.
	LogLimit = 100
)

// Stats is the per-area headline block.
type Stats struct {
	TotalEarnings         model.Money `json:"totalEarnings"`
	TotalPending          model.Money `json:"totalPending"`
	TotalBookings         int         `json:"totalBookings"`
	ActiveBookings        int         `json:"activeBookings"`
	CompletedBookings     int         `json:"completedBookings"`
	CancelledBookings     int         `json:"cancelledBookings"`
	UniqueUsers           int         `json:"uniqueUsers"`
	UniqueVehicles        int         `json:"uniqueVehicles"`
	TotalReservationHours float64     `json:"totalReservationHours"`
	TotalParkingHours     float64     `json:"totalParkingHours"`
}

// SlotStat is one leaderboard row.  Value is rupees for revenue boards and
// hours for time boards.
type SlotStat struct {
	SlotID       uint64  `json:"slotId"`
	SlotNumber   string  `json:"slotNumber"`
	Value        float64 `json:"value"`
	BookingCount int     `json:"bookingCount"`
}

// SlotAnalytics holds the four leaderboards.
type SlotAnalytics struct {
	TopRevenue24h []SlotStat `json:"topRevenue24h"`
	TopTime24h    []SlotStat `json:"topTime24h"`
	TopRevenue30d []SlotStat `json:"topRevenue30d"`
	TopTime30d    []SlotStat `json:"topTime30d"`
}

// Point is one chart bucket.
type Point struct {
	Label          string      `json:"label"`
	Revenue        model.Money `json:"revenue"`
	Count          int         `json:"bookingCount"`
	AvgDurationHrs float64     `json:"avgDurationHrs"`

	start    time.Time
	totalHrs float64
}

// Charts carries both series.  Either may be empty for range queries.
type Charts struct {
	Hourly []Point `json:"hourlyData"`
	Daily  []Point `json:"dailyData"`
}

// LogEntry is one row of the owner's booking log.
type LogEntry struct {
	BookingID     uint64              `json:"bookingId"`
	Time          time.Time           `json:"time"`
	Time2         *time.Time          `json:"time2"`
	UserName      string              `json:"userName"`
	UserPhone     string              `json:"userPhone"`
	VehicleNumber string              `json:"vehicleNumber"`
	SlotNumber    string              `json:"slotNumber"`
	Status        model.BookingStatus `json:"status"`
	Amount        model.Money         `json:"amount"`
	Pending       model.Money         `json:"pending"`
}

// Contact is the user detail shown next to a log row.
type Contact struct {
	Name  string
	Phone string
}

// AreaInfo names an area and its owner for the admin summary.
type AreaInfo struct {
	ID    uint64
	Name  string
	Owner string
}

// AreaSummary is one row of the admin all-areas table.
type AreaSummary struct {
	AreaID         uint64      `json:"areaId"`
	Name           string      `json:"name"`
	Owner          string      `json:"owner"`
	TotalEarnings  model.Money `json:"totalEarnings"`
	TotalPending   model.Money `json:"totalPending"`
	TotalBookings  int         `json:"totalBookings"`
	ActiveBookings int         `json:"activeBookings"`
	AvgDuration    float64     `json:"avgDuration"`
}

// reservedHours is the time spent holding the slot before parking began.
func reservedHours(b model.Booking, now time.Time) float64 {
	if b.ReservationTime == nil {
		return 0
	}
	end := now
	switch {
	case b.ArrivalTime != nil:
		end = *b.ArrivalTime
	case b.ExitTime != nil:
		end = *b.ExitTime
	}
	return hours(end.Sub(*b.ReservationTime))
}

func parkedHours(b model.Booking, now time.Time) float64 {
	if b.ArrivalTime == nil {
		return 0
	}
	end := now
	if b.ExitTime != nil {
		end = *b.ExitTime
	}
	return hours(end.Sub(*b.ArrivalTime))
}

// Duration is the total time a booking held its slot, in hours.  Live
// bookings are measured up to now.
func Duration(b model.Booking, now time.Time) float64 {
	return reservedHours(b, now) + parkedHours(b, now)
}

func hours(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Hours()
}

// earned is what a booking contributes to revenue.  Only settled bookings
// count.
func earned(b model.Booking) model.Money {
	if !b.Status.Terminal() {
		return 0
	}
	return b.AmountPaid
}

// Summarize computes the stats block over bookings.
func Summarize(bookings []model.Booking, now time.Time) Stats {
	var s Stats
	users := map[uint64]struct{}{}
	vehicles := map[uint64]struct{}{}
	for _, b := range bookings {
		s.TotalBookings++
		switch {
		case b.Status.Live():
			s.ActiveBookings++
		case b.Status == model.BookingCompleted:
			s.CompletedBookings++
		case b.Status == model.BookingCancelledNoShow:
			s.CancelledBookings++
		}
		s.TotalEarnings += earned(b)
		s.TotalPending += b.AmountPending
		s.TotalReservationHours += reservedHours(b, now)
		s.TotalParkingHours += parkedHours(b, now)
		users[b.UserID] = struct{}{}
		vehicles[b.VehicleID] = struct{}{}
	}
	s.UniqueUsers = len(users)
	s.UniqueVehicles = len(vehicles)
	return s
}

// Slots builds the 24h and 30d leaderboards.
func Slots(bookings []model.Booking, now time.Time) SlotAnalytics {
	day := within(bookings, now.Add(-24*time.Hour))
	month := within(bookings, now.Add(-30*24*time.Hour))
	return SlotAnalytics{
		TopRevenue24h: top(day, now, byRevenue),
		TopTime24h:    top(day, now, byTime),
		TopRevenue30d: top(month, now, byRevenue),
		TopTime30d:    top(month, now, byTime),
	}
}

func within(bookings []model.Booking, since time.Time) []model.Booking {
	var out []model.Booking
	for _, b := range bookings {
		if !b.BookingTime.Before(since) {
			out = append(out, b)
		}
	}
	return out
}

type metric func(b model.Booking, now time.Time) float64

func byRevenue(b model.Booking, _ time.Time) float64 { return earned(b).Float() }

func byTime(b model.Booking, now time.Time) float64 { return Duration(b, now) }

func top(bookings []model.Booking, now time.Time, m metric) []SlotStat {
	idx := map[uint64]int{}
	var rows []SlotStat
	for _, b := range bookings {
		i, ok := idx[b.SlotID]
		if !ok {
			i = len(rows)
			idx[b.SlotID] = i
			rows = append(rows, SlotStat{SlotID: b.SlotID, SlotNumber: b.SlotNumber})
		}
		rows[i].Value += m(b, now)
		rows[i].BookingCount++
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		if rows[i].BookingCount != rows[j].BookingCount {
			return rows[i].BookingCount > rows[j].BookingCount
		}
		return rows[i].SlotNumber < rows[j].SlotNumber
	})
	if len(rows) > TopN {
		rows = rows[:TopN]
	}
	if rows == nil {
		rows = []SlotStat{}
	}
	return rows
}

// Chart returns the last 24 hourly buckets and the last 30 daily buckets
// ending at now.  Buckets follow the wall clock of now's location.
func Chart(bookings []model.Booking, now time.Time) Charts {
	hourStart := startOfHour(now).Add(-23 * time.Hour)
	dayStart := startOfDay(now).AddDate(0, 0, -29)
	return Charts{
		Hourly: bucket(bookings, now, hourStart, 24, nextHour, "15:04"),
		Daily:  bucket(bookings, now, dayStart, 30, nextDay, "Jan 02"),
	}
}

// ChartRange buckets [from, to) hourly when the span fits in two days and
// daily otherwise.  Only the chosen series is filled.  Buckets follow the
// wall clock of now's location.
func ChartRange(bookings []model.Booking, from, to, now time.Time) Charts {
	if !to.After(from) {
		return Charts{Hourly: []Point{}, Daily: []Point{}}
	}
	from = from.In(now.Location())
	if to.Sub(from) <= 48*time.Hour {
		start := startOfHour(from)
		return Charts{Hourly: bucket(bookings, now, start, steps(start, to, nextHour), nextHour, "Jan 02 15:04"), Daily: []Point{}}
	}
	start := startOfDay(from)
	return Charts{Hourly: []Point{}, Daily: bucket(bookings, now, start, steps(start, to, nextDay), nextDay, "Jan 02")}
}

func steps(start, to time.Time, next func(time.Time) time.Time) int {
	n := 0
	for t := start; t.Before(to); t = next(t) {
		n++
	}
	return n
}

func nextHour(t time.Time) time.Time { return t.Add(time.Hour) }

func nextDay(t time.Time) time.Time { return t.AddDate(0, 0, 1) }

// startOfHour truncates on the local clock; Time.Truncate works on absolute
// time and is off by the zone's minutes for zones such as +05:30.
func startOfHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func bucket(bookings []model.Booking, now, start time.Time, n int, next func(time.Time) time.Time, layout string) []Point {
	points := make([]Point, n)
	t := start
	for i := range points {
		points[i] = Point{Label: t.Format(layout), start: t}
		t = next(t)
	}
	end := t
	for _, b := range bookings {
		at := b.BookingTime.In(start.Location())
		if at.Before(start) || !at.Before(end) {
			continue
		}
		i := sort.Search(n, func(i int) bool { return points[i].start.After(at) }) - 1
		p := &points[i]
		p.Revenue += earned(b)
		p.Count++
		p.totalHrs += Duration(b, now)
	}
	for i := range points {
		if points[i].Count > 0 {
			points[i].AvgDurationHrs = points[i].totalHrs / float64(points[i].Count)
		}
	}
	return points
}

// Logs turns the newest bookings into log rows.  bookings must already be
// newest first; at most LogLimit rows are returned.
func Logs(bookings []model.Booking, contacts map[uint64]Contact) []LogEntry {
	if len(bookings) > LogLimit {
		bookings = bookings[:LogLimit]
	}
	out := make([]LogEntry, 0, len(bookings))
	for _, b := range bookings {
		started := b.BookingTime
		if b.ReservationTime != nil {
			started = *b.ReservationTime
		} else if b.ArrivalTime != nil {
			started = *b.ArrivalTime
		}
		c := contacts[b.UserID]
		out = append(out, LogEntry{
			BookingID:     b.ID,
			Time:          started,
			Time2:         b.ExitTime,
			UserName:      c.Name,
			UserPhone:     c.Phone,
			VehicleNumber: b.RegisterNumber,
			SlotNumber:    b.SlotNumber,
			Status:        b.Status,
			Amount:        b.AmountPaid,
			Pending:       b.AmountPending,
		})
	}
	return out
}

// AllAreas summarizes every area in areas, including ones with no bookings.
// avgDuration is in hours over all of an area's bookings.
func AllAreas(areas []AreaInfo, bookings []model.Booking, now time.Time) []AreaSummary {
	byArea := map[uint64][]model.Booking{}
	for _, b := range bookings {
		byArea[b.AreaID] = append(byArea[b.AreaID], b)
	}
	out := make([]AreaSummary, 0, len(areas))
	for _, a := range areas {
		rows := byArea[a.ID]
		s := Summarize(rows, now)
		row := AreaSummary{
			AreaID:         a.ID,
			Name:           a.Name,
			Owner:          a.Owner,
			TotalEarnings:  s.TotalEarnings,
			TotalPending:   s.TotalPending,
			TotalBookings:  s.TotalBookings,
			ActiveBookings: s.ActiveBookings,
		}
		if len(rows) > 0 {
			var total float64
			for _, b := range rows {
				total += Duration(b, now)
			}
			row.AvgDuration = total / float64(len(rows))
		}
		out = append(out, row)
	}
	return out
}
