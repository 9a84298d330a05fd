package model

// Category is a genre label from the fixed enumeration.
type Category string

// Categories in canonical index order. The order is part of the encoding
// schema and must not change.
const (
	CategoryPop        Category = "Pop"
	CategoryHipHop     Category = "Hip-Hop"
	CategoryRock       Category = "Rock"
	CategoryElectronic Category = "Electronic"
	CategoryRnB        Category = "R&B"
	CategoryCountry    Category = "Country"
	CategoryJazz       Category = "Jazz"
	CategoryClassical  Category = "Classical"
)

// Categories lists every category by index.
var Categories = []Category{
	CategoryPop,
	CategoryHipHop,
	CategoryRock,
	CategoryElectronic,
	CategoryRnB,
	CategoryCountry,
	CategoryJazz,
	CategoryClassical,
}

// Period is a reporting quarter from the fixed enumeration.
type Period string

// Periods in canonical index order.
const (
	Period2024Q1 Period = "2024-Q1"
	Period2024Q2 Period = "2024-Q2"
	Period2024Q3 Period = "2024-Q3"
	Period2024Q4 Period = "2024-Q4"
	Period2023Q1 Period = "2023-Q1"
	Period2023Q2 Period = "2023-Q2"
	Period2023Q3 Period = "2023-Q3"
	Period2023Q4 Period = "2023-Q4"
)

// Periods lists every period by index.
var Periods = []Period{
	Period2024Q1,
	Period2024Q2,
	Period2024Q3,
	Period2024Q4,
	Period2023Q1,
	Period2023Q2,
	Period2023Q3,
	Period2023Q4,
}

// CategoryIndex returns the index of label, or -1 when unknown.
func CategoryIndex(label string) int {
	for i, c := range Categories {
		if string(c) == label {
			return i
		}
	}
	return -1
}

// PeriodIndex returns the index of label, or -1 when unknown.
func PeriodIndex(label string) int {
	for i, p := range Periods {
		if string(p) == label {
			return i
		}
	}
	return -1
}

// ParseCategory reports whether label names a known category.
func ParseCategory(label string) (Category, bool) {
	if i := CategoryIndex(label); i >= 0 {
		return Categories[i], true
	}
	return "", false
}

// ParsePeriod reports whether label names a known period.
func ParsePeriod(label string) (Period, bool) {
	if i := PeriodIndex(label); i >= 0 {
		return Periods[i], true
	}
	return "", false
}
