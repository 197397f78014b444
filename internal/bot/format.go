package bot

import (
	"fmt"
	"strings"

	"flat_bot/internal/config"
	"flat_bot/internal/model"
)

// FormatCriteria describes the configured search criteria.
func FormatCriteria(cfg *config.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cold rent: up to %s €\n", model.KnownMeasure(cfg.RentCeiling))
	if len(cfg.Districts) == 0 {
		b.WriteString("Districts: all")
	} else {
		fmt.Fprintf(&b, "Districts: %s", strings.Join(cfg.Districts, ", "))
	}
	if len(cfg.IncludeKeywords) > 0 {
		fmt.Fprintf(&b, "\nMust mention one of: %s", strings.Join(cfg.IncludeKeywords, ", "))
	}
	if len(cfg.ExcludeKeywords) > 0 {
		fmt.Fprintf(&b, "\nSkipped if mentioning: %s", strings.Join(cfg.ExcludeKeywords, ", "))
	}
	return b.String()
}

// FormatStatus formats the subscription state of a chat and the criteria.
func FormatStatus(cfg *config.Config, subscribed bool, subscribers int) string {
	var b strings.Builder
	if subscribed {
		b.WriteString("🔔 This chat is subscribed.\n")
	} else {
		b.WriteString("🔕 This chat is not subscribed. Use /start to subscribe.\n")
	}
	fmt.Fprintf(&b, "Subscribers: %d\n", subscribers)
	fmt.Fprintf(&b, "Checking every %s\n", cfg.PollInterval)
	fmt.Fprintf(&b, "Source: %s\n\n", cfg.TargetURL)
	b.WriteString(FormatCriteria(cfg))
	return b.String()
}
