package filter

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe     = regexp.MustCompile(`\d+`)
	thousandsRe  = regexp.MustCompile(`\dk\b`)
	currencyRepl = strings.NewReplacer(
		"$", "", "€", "", "£", "", "₹", "", ",", "",
	)
)

// ExtractSalary pulls an annual figure out of a free-form compensation
// string. "$15-20k" yields 15000 (a trailing k applies to the whole
// range); "$20/hour" annualizes at 40h x 52wk to 41600. Returns false
// when no number can be found.
func ExtractSalary(raw string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	s = currencyRepl.Replace(s)

	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	salary, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}

	// "15-20k" means 15k-20k, so the multiplier applies even when the
	// first number has no k of its own
	if salary < 1000 && thousandsRe.MatchString(s) {
		salary *= 1000
	}

	if strings.Contains(s, "hour") || strings.Contains(s, "hr") {
		salary = salary * 40 * 52
	}

	return salary, true
}
