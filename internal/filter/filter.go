package filter

import (
	"strings"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

// RuleSet is the declarative filter configuration for one aggregation
// run. All categories are AND-ed; the keyword lists are OR-ed
// internally. An empty category passes implicitly.
type RuleSet struct {
	IncludeKeywords  []string `yaml:"include_keywords"`
	ExcludeKeywords  []string `yaml:"exclude_keywords"`
	Locations        []string `yaml:"locations"`
	ExcludeLocations []string `yaml:"exclude_locations"`
	MinSalary        int      `yaml:"min_salary"`
	MaxSalary        int      `yaml:"max_salary"`
	JobTypes         []string `yaml:"job_types"`
	ExperienceLevels []string `yaml:"experience_levels"`
	RemoteOnly       bool     `yaml:"remote_only"`
}

var remoteTokens = []string{"remote", "work from home", "wfh", "telecommute"}

// Matches reports whether the listing passes every configured rule.
// Pure: no side effects, same answer for the same inputs.
func Matches(l domain.Listing, rs RuleSet) bool {
	title := strings.ToLower(l.Title)
	desc := strings.ToLower(l.Description)
	company := strings.ToLower(l.Company)
	location := strings.ToLower(l.Location)

	combined := title + " " + desc + " " + company

	if len(rs.IncludeKeywords) > 0 && !containsAny(combined, rs.IncludeKeywords) {
		return false
	}
	if containsAny(combined, rs.ExcludeKeywords) {
		return false
	}
	if len(rs.Locations) > 0 && !containsAny(location, rs.Locations) {
		return false
	}
	if containsAny(location, rs.ExcludeLocations) {
		return false
	}
	if rs.RemoteOnly && !containsAny(combined+" "+location, remoteTokens) {
		return false
	}

	if rs.MinSalary > 0 || rs.MaxSalary > 0 {
		// listings with no extractable number bypass salary filtering
		if salary, ok := ExtractSalary(l.Salary); ok {
			if rs.MinSalary > 0 && salary < rs.MinSalary {
				return false
			}
			if rs.MaxSalary > 0 && salary > rs.MaxSalary {
				return false
			}
		}
	}

	if len(rs.JobTypes) > 0 && !containsAny(combined+" "+location, rs.JobTypes) {
		return false
	}
	if len(rs.ExperienceLevels) > 0 && !containsAny(combined, rs.ExperienceLevels) {
		return false
	}

	return true
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
