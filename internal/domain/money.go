package domain

import "fmt"

// Money is an amount in minor currency units (paise).
type Money int64

func Rupees(r int64) Money {
	return Money(r * 100)
}

// Times multiplies a unit amount by a head count.
func (m Money) Times(n int) Money {
	return m * Money(n)
}

// Percent returns pct percent of m, truncated to the minor unit.
func (m Money) Percent(pct int) Money {
	return m * Money(pct) / 100
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
