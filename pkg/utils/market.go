package utils

import (
	"time"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// IsTradingDay returns true if t falls on an NSE trading weekday.
// Exchange holidays are not tracked; weekends are the only exclusion.
func IsTradingDay(t time.Time) bool {
	day := t.In(IndiaLocation).Weekday()
	return day != time.Saturday && day != time.Sunday
}

// IsMarketOpen returns true if the NSE regular session is in progress.
func IsMarketOpen() bool {
	now := time.Now().In(IndiaLocation)
	if !IsTradingDay(now) {
		return false
	}

	// Regular session: 9:15 - 15:30
	timeMinutes := now.Hour()*60 + now.Minute()
	return timeMinutes >= 555 && timeMinutes < 930
}

// MarketClose returns the session close (15:30 IST) on t's date.
func MarketClose(t time.Time) time.Time {
	ist := t.In(IndiaLocation)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 15, 30, 0, 0, IndiaLocation)
}

// NextSessionExpiry returns when a Kite access token issued at now lapses:
// 6 AM IST the following day.
func NextSessionExpiry(now time.Time) time.Time {
	ist := now.In(IndiaLocation)
	return time.Date(ist.Year(), ist.Month(), ist.Day()+1, 6, 0, 0, 0, IndiaLocation)
}
