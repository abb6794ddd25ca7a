package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate trims and dedupes the list-valued settings and
// checks the cross-field rules a plain yaml decode cannot.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Search.Queries = trimList(out.Search.Queries)
	out.Filters.IncludeKeywords = trimList(out.Filters.IncludeKeywords)
	out.Filters.ExcludeKeywords = trimList(out.Filters.ExcludeKeywords)
	out.Filters.Locations = trimList(out.Filters.Locations)
	out.Filters.ExcludeLocations = trimList(out.Filters.ExcludeLocations)
	out.Filters.JobTypes = trimList(out.Filters.JobTypes)
	out.Filters.ExperienceLevels = trimList(out.Filters.ExperienceLevels)
	out.Scraping.Proxies = trimList(out.Scraping.Proxies)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if len(out.Search.Queries) == 0 {
		res.addErr("search.queries must have at least one query")
	}

	anyEnabled := false
	for _, s := range out.Sites {
		if s.Enabled {
			anyEnabled = true
			break
		}
	}
	if !anyEnabled && !out.Email.Enabled {
		res.addErr("no sources enabled: enable at least one site or email alerts")
	}

	if out.SiteEnabled("adzuna") && (out.Adzuna.AppID == "" || out.Adzuna.AppKey == "") {
		res.addErr("adzuna.app_id and adzuna.app_key are required when sites.adzuna is enabled")
	}

	if out.Email.Enabled {
		if strings.TrimSpace(out.Email.IMAPHost) == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.Username) == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
	}

	if out.Telegram.BotToken == "" || out.Telegram.ChatID == "" {
		res.addWarn("telegram.bot_token or chat_id is empty; deliveries will be discarded")
	}

	if out.Enrichment.Enabled && out.Enrichment.APIKey == "" {
		res.addErr("enrichment.api_key (or OPENAI_API_KEY) is required when enrichment.enabled=true")
	}

	if out.Scraping.IntervalSeconds < 60 {
		res.addWarn("scraping.interval_seconds is very low (%d); sites may rate limit or block", out.Scraping.IntervalSeconds)
	}
	if out.Scraping.MaxDelaySeconds < out.Scraping.MinDelaySeconds {
		res.addErr("scraping.max_delay_seconds must be >= min_delay_seconds")
	}

	if out.Filters.MinSalary > 0 && out.Filters.MaxSalary > 0 && out.Filters.MaxSalary < out.Filters.MinSalary {
		res.addErr("filters.max_salary must be >= filters.min_salary")
	}

	blockSet := map[string]bool{}
	for _, b := range out.Filters.ExcludeLocations {
		blockSet[strings.ToLower(b)] = true
	}
	for _, a := range out.Filters.Locations {
		if blockSet[strings.ToLower(a)] {
			res.addWarn("location appears in both allow and exclude lists: %q", a)
		}
	}

	return out, res
}
