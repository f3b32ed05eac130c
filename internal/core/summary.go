package core

// CategoryTotal is the amount spent in one category bucket.
type CategoryTotal struct {
	Category Category `json:"category"`
	Total    Money    `json:"total"`
}

// DailyTotal is the amount spent on one calendar day.
type DailyTotal struct {
	Date  string `json:"date"` // 2006-01-02
	Total Money  `json:"total"`
	Count int    `json:"count"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Month      string          `json:"month"` // 2006-01
	Total      Money           `json:"total"`
	Count      int             `json:"count"`
	Income     Money           `json:"income"`
	ByCategory []CategoryTotal `json:"byCategory"`
	ByDay      []DailyTotal    `json:"byDay"`
}
