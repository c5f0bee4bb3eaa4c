package useragent

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxLength caps the stored user agent. Longer headers are truncated.
const MaxLength = 512

const (
	DeviceBot     = "bot"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// UserAgent is a classified User-Agent header.
type UserAgent struct {
	Raw     string `json:"raw"`
	Device  string `json:"device"`
	BotName string `json:"bot_name,omitempty"`
}

// IsBot reports whether the client is an automated agent.
func (ua UserAgent) IsBot() bool { return ua.Device == DeviceBot }

var (
	botKeywords     = []string{"bot", "spider", "crawler", "curl", "wget", "python-requests", "go-http-client", "monitor", "scraper", "fetcher"}
	tabletKeywords  = []string{"ipad", "tablet", "kindle", "silk", "sm-t"}
	mobileKeywords  = []string{"mobile", "iphone", "android", "windows phone", "blackberry"}
	desktopKeywords = []string{"windows", "macintosh", "mac os x", "linux", "x11", "cros"}

	botNamePattern = regexp.MustCompile(`(?i)([a-z0-9_-]+(?:bot|spider|crawler))`)
	botTitle       = cases.Title(language.English)
)

// Parse classifies a User-Agent header value.
func Parse(raw string) UserAgent {
	raw = strings.TrimSpace(raw)
	if len(raw) > MaxLength {
		raw = raw[:MaxLength]
	}
	ua := UserAgent{Raw: raw, Device: DeviceUnknown}
	if raw == "" {
		return ua
	}

	lower := strings.ToLower(raw)
	switch {
	case containsAny(lower, botKeywords):
		ua.Device = DeviceBot
		ua.BotName = botName(raw, lower)
	case containsAny(lower, tabletKeywords),
		strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		ua.Device = DeviceTablet
	case containsAny(lower, mobileKeywords):
		ua.Device = DeviceMobile
	case containsAny(lower, desktopKeywords):
		ua.Device = DeviceDesktop
	}
	return ua
}

func botName(raw, lower string) string {
	if m := botNamePattern.FindStringSubmatch(raw); len(m) > 1 {
		return botTitle.String(strings.ToLower(m[1]))
	}
	name, _, _ := strings.Cut(lower, "/")
	return botTitle.String(strings.TrimSpace(name))
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
