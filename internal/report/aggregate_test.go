package report

import (
	"errors"
	"testing"
	"time"

	"expenso/internal/core"
)

func exp(id, name string, cents int64, cat string, date string) core.Expense {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Expense{ID: id, Name: name, Amount: core.Cents(cents), Category: core.Category(cat), Date: d}
}

func sample() []core.Expense {
	return []core.Expense{
		exp("1", "Pizza", 1200, "Food & Dining", "2024-01-05T12:00:00Z"),
		exp("2", "bus", 250, "Transportation", "2024-01-03T08:00:00Z"),
		exp("3", "Cinema", 900, "Entertainment", "2024-02-10T20:00:00Z"),
		exp("4", "apples", 300, "Food & Dining", "2024-01-20T09:00:00Z"),
		exp("5", "Rent", 90000, "Home & Housing", "2024-02-01T00:00:00Z"),
		exp("6", "Taxi", 250, "Transportation", "2024-01-03T22:00:00Z"),
	}
}

func ids(records []core.Expense) []string {
	out := make([]string, len(records))
	for i, e := range records {
		out[i] = e.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilterAndSort(t *testing.T) {
	jan := YearMonth{Year: 2024, Month: time.January}

	tests := []struct {
		name   string
		params Params
		want   []string
	}{
		{
			name:   "defaults sort newest first",
			params: DefaultParams(),
			want:   []string{"3", "5", "4", "1", "6", "2"},
		},
		{
			name:   "month filter",
			params: Params{Month: jan, Category: "all", SortField: SortByDate, SortOrder: Ascending, WindowDays: 3},
			want:   []string{"2", "6", "1", "4"},
		},
		{
			name:   "category filter",
			params: Params{Category: "Food & Dining", SortField: SortByDate, SortOrder: Ascending, WindowDays: 3},
			want:   []string{"1", "4"},
		},
		{
			name:   "name sort is case-folded",
			params: Params{Category: "all", SortField: SortByName, SortOrder: Ascending, WindowDays: 3},
			want:   []string{"4", "2", "3", "1", "5", "6"},
		},
		{
			name:   "amount ties keep input order",
			params: Params{Category: "Transportation", SortField: SortByAmount, SortOrder: Descending, WindowDays: 3},
			want:   []string{"2", "6"},
		},
		{
			name:   "amount descending",
			params: Params{Month: jan, SortField: SortByAmount, SortOrder: Descending, WindowDays: 3},
			want:   []string{"1", "4", "2", "6"},
		},
		{
			name:   "category sort",
			params: Params{Category: "all", SortField: SortByCategory, SortOrder: Ascending, WindowDays: 3},
			want:   []string{"3", "1", "4", "5", "2", "6"},
		},
		{
			name:   "month with no records",
			params: Params{Month: YearMonth{Year: 2023, Month: time.March}, SortField: SortByDate, SortOrder: Ascending, WindowDays: 3},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterAndSort(sample(), tt.params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !equalStrings(ids(got), tt.want) {
				t.Errorf("FilterAndSort() = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestFilterAndSortDoesNotMutateInput(t *testing.T) {
	in := sample()
	before := ids(in)
	if _, err := FilterAndSort(in, Params{Category: "all", SortField: SortByAmount, SortOrder: Ascending, WindowDays: 3}); err != nil {
		t.Fatal(err)
	}
	if !equalStrings(ids(in), before) {
		t.Fatalf("input reordered: %v", ids(in))
	}
}

func TestFilterAndSortRetainsOnlyMatchingRecords(t *testing.T) {
	in := sample()
	p := Params{Month: YearMonth{Year: 2024, Month: time.January}, Category: "Transportation", SortField: SortByDate, SortOrder: Ascending, WindowDays: 3}
	got, err := FilterAndSort(in, p)
	if err != nil {
		t.Fatal(err)
	}
	known := make(map[string]core.Expense)
	for _, e := range in {
		known[e.ID] = e
	}
	var want core.Money
	for _, e := range got {
		if orig, ok := known[e.ID]; !ok || orig != e {
			t.Fatalf("record %s not taken from input", e.ID)
		}
		if e.Date.YearMonth() != "2024-01" || e.Category != core.Transportation {
			t.Fatalf("record %s does not satisfy filters", e.ID)
		}
		want = want.Add(e.Amount)
	}
	if total := TotalAmount(got); total != want {
		t.Fatalf("TotalAmount() = %v, want %v", total, want)
	}
	again, _ := FilterAndSort(got, p)
	if TotalAmount(again) != want {
		t.Fatalf("re-applying filters changed the total")
	}
}

func TestFilterAndSortUncategorizedFilter(t *testing.T) {
	in := []core.Expense{
		exp("1", "gift", 500, "", "2024-01-01"),
		exp("2", "lunch", 700, "Food & Dining", "2024-01-01"),
	}
	p := Params{Category: "Uncategorized", SortField: SortByDate, SortOrder: Ascending, WindowDays: 3}
	got, err := FilterAndSort(in, p)
	if err != nil {
		t.Fatal(err)
	}
	if !equalStrings(ids(got), []string{"1"}) {
		t.Fatalf("got %v", ids(got))
	}
}

func TestFilterAndSortCategorySortBlankAsUncategorized(t *testing.T) {
	in := []core.Expense{
		exp("1", "gift", 500, "", "2024-01-01"),
		exp("2", "rent", 700, "Home & Housing", "2024-01-01"),
		exp("3", "tip", 100, "  ", "2024-01-02"),
		exp("4", "ticket", 300, "Travel", "2024-01-02"),
	}
	tests := []struct {
		order SortOrder
		want  []string
	}{
		{Ascending, []string{"2", "4", "1", "3"}},
		{Descending, []string{"1", "3", "4", "2"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			p := Params{Category: "all", SortField: SortByCategory, SortOrder: tt.order, WindowDays: 3}
			got, err := FilterAndSort(in, p)
			if err != nil {
				t.Fatal(err)
			}
			if !equalStrings(ids(got), tt.want) {
				t.Errorf("FilterAndSort() = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestFilterAndSortInvalidParams(t *testing.T) {
	bad := []Params{
		{SortField: "price", SortOrder: Ascending, WindowDays: 3},
		{SortField: SortByDate, SortOrder: "up", WindowDays: 3},
		{SortField: SortByDate, SortOrder: Ascending, WindowDays: 0},
	}
	for i, p := range bad {
		if _, err := FilterAndSort(sample(), p); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("case %d: expected ErrInvalidParams, got %v", i, err)
		}
	}
}

func TestTotalAmount(t *testing.T) {
	if got := TotalAmount(nil); !got.IsZero() {
		t.Fatalf("empty total = %v", got)
	}
	// 0.1 + 0.2 in cents stays exact
	got := TotalAmount([]core.Expense{
		exp("1", "a", 10, "", "2024-01-01"),
		exp("2", "b", 20, "", "2024-01-01"),
	})
	if got.String() != "0.30" {
		t.Fatalf("expected 0.30, got %s", got)
	}
}

func TestScenarioCategoryAndDay(t *testing.T) {
	records := []core.Expense{
		exp("1", "a", 10000, "Food", "2024-01-05"),
		exp("2", "b", 5000, "Food", "2024-01-05"),
		exp("3", "c", 3000, "Travel", "2024-01-06"),
	}

	cats := GroupByCategory(records, nil)
	wantCats := []core.CategoryTotal{
		{Category: "Food", Total: core.Cents(15000)},
		{Category: "Travel", Total: core.Cents(3000)},
	}
	if len(cats) != len(wantCats) {
		t.Fatalf("GroupByCategory() = %v", cats)
	}
	for i := range wantCats {
		if cats[i] != wantCats[i] {
			t.Errorf("bucket %d = %+v, want %+v", i, cats[i], wantCats[i])
		}
	}

	days := GroupByDay(records)
	wantDays := []core.DailyTotal{
		{Date: "2024-01-05", Total: core.Cents(15000), Count: 2},
		{Date: "2024-01-06", Total: core.Cents(3000), Count: 1},
	}
	if len(days) != len(wantDays) {
		t.Fatalf("GroupByDay() = %v", days)
	}
	for i := range wantDays {
		if days[i] != wantDays[i] {
			t.Errorf("day %d = %+v, want %+v", i, days[i], wantDays[i])
		}
	}
}

func TestGroupByCategoryPartitions(t *testing.T) {
	in := append(sample(), exp("7", "gift", 1500, "  ", "2024-01-09"))
	cats := GroupByCategory(in, nil)

	var sum core.Money
	for _, c := range cats {
		sum = sum.Add(c.Total)
	}
	if sum != TotalAmount(in) {
		t.Fatalf("bucket totals %v != total %v", sum, TotalAmount(in))
	}
	last := cats[len(cats)-1]
	if last.Category != core.Uncategorized || last.Total.Cents != 1500 {
		t.Fatalf("blank category bucket = %+v", last)
	}
	if cats[0].Category != core.FoodDining {
		t.Fatalf("expected first-occurrence order, got %v", cats[0].Category)
	}
}

func TestGroupByCategoryWithResolver(t *testing.T) {
	in := []core.Expense{
		exp("1", "Coffee", 300, "Food & Dining", "2024-01-01"),
		exp("2", "coffee", 250, "", "2024-01-02"),
		exp("3", "Train", 1200, "Travel", "2024-01-02"),
	}
	cats := GroupByCategory(in, NameResolver{})
	if len(cats) != 2 || cats[0].Category != "coffee" || cats[0].Total.Cents != 550 {
		t.Fatalf("unexpected buckets %+v", cats)
	}
}

func TestGroupByDay(t *testing.T) {
	in := sample()
	days := GroupByDay(in)

	var sum core.Money
	for i, d := range days {
		if i > 0 && days[i-1].Date >= d.Date {
			t.Fatalf("days not ascending: %s then %s", days[i-1].Date, d.Date)
		}
		sum = sum.Add(d.Total)
	}
	if sum != TotalAmount(in) {
		t.Fatalf("daily totals %v != total %v", sum, TotalAmount(in))
	}
	if days[0].Date != "2024-01-03" || days[0].Count != 2 || days[0].Total.Cents != 500 {
		t.Fatalf("unexpected first day %+v", days[0])
	}
}

func TestGroupByDayUsesRecordLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	in := []core.Expense{
		{ID: "1", Name: "ramen", Amount: core.Cents(900), Date: core.Date{Time: time.Date(2024, 1, 6, 1, 0, 0, 0, tokyo)}},
	}
	days := GroupByDay(in)
	if len(days) != 1 || days[0].Date != "2024-01-06" {
		t.Fatalf("expected local day 2024-01-06, got %+v", days)
	}
}

func TestMovingAverage(t *testing.T) {
	series := []core.DailyTotal{
		{Date: "2024-01-01", Total: core.Cents(1000), Count: 1},
		{Date: "2024-01-02", Total: core.Cents(2000), Count: 1},
		{Date: "2024-01-03", Total: core.Cents(3000), Count: 1},
		{Date: "2024-01-04", Total: core.Cents(4000), Count: 1},
	}

	got := MovingAverage(series, 3)
	if len(got) != 4 {
		t.Fatalf("expected 4 points, got %d", len(got))
	}
	if got[0].MovingAverage != nil || got[1].MovingAverage != nil {
		t.Fatalf("first two points must have no average")
	}
	if got[2].MovingAverage.Cents != 2000 || got[3].MovingAverage.Cents != 3000 {
		t.Fatalf("averages = %v, %v", got[2].MovingAverage, got[3].MovingAverage)
	}
	if got[3].DailyTotal != series[3] {
		t.Fatalf("daily totals must pass through unchanged")
	}
}

func TestMovingAverageRounding(t *testing.T) {
	series := []core.DailyTotal{
		{Date: "2024-01-01", Total: core.Cents(1000)},
		{Date: "2024-01-02", Total: core.Cents(1000)},
		{Date: "2024-01-03", Total: core.Cents(1001)},
		{Date: "2024-01-04", Total: core.Cents(1)},
	}
	got := MovingAverage(series, 3)
	// 30.01 / 3 = 10.0033 -> 10.00; 20.02 / 3 = 6.6733 -> 6.67
	if got[2].MovingAverage.Cents != 1000 || got[3].MovingAverage.Cents != 667 {
		t.Fatalf("averages = %v, %v", got[2].MovingAverage, got[3].MovingAverage)
	}

	halfUp := MovingAverage([]core.DailyTotal{{Total: core.Cents(1)}, {Total: core.Cents(0)}}, 2)
	if halfUp[1].MovingAverage.Cents != 1 {
		t.Fatalf("0.005 should round up to 0.01, got %v", halfUp[1].MovingAverage)
	}
}

func TestMovingAverageShortSeries(t *testing.T) {
	series := []core.DailyTotal{{Date: "2024-01-01", Total: core.Cents(500)}}
	for _, w := range []int{3, 0} {
		got := MovingAverage(series, w)
		if len(got) != 1 || got[0].MovingAverage != nil || got[0].DailyTotal != series[0] {
			t.Fatalf("window %d: expected series unchanged, got %+v", w, got)
		}
	}
	if got := MovingAverage(series, 1); got[0].MovingAverage.Cents != 500 {
		t.Fatalf("window 1 should echo the day total, got %v", got[0].MovingAverage)
	}
}

func TestEmptyInputs(t *testing.T) {
	sorted, err := FilterAndSort(nil, DefaultParams())
	if err != nil || len(sorted) != 0 {
		t.Fatalf("FilterAndSort(nil) = %v, %v", sorted, err)
	}
	if !TotalAmount(nil).IsZero() {
		t.Fatal("TotalAmount(nil) not zero")
	}
	if len(GroupByCategory(nil, nil)) != 0 {
		t.Fatal("GroupByCategory(nil) not empty")
	}
	if len(GroupByDay(nil)) != 0 {
		t.Fatal("GroupByDay(nil) not empty")
	}
	if len(MovingAverage(nil, 3)) != 0 {
		t.Fatal("MovingAverage(nil) not empty")
	}
}
