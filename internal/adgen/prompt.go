package adgen

import (
	"fmt"
	"net/url"
	"strings"
)

const systemPrompt = `You write short, plain-language marketing copy for local businesses reacting to National Weather Service alerts.
Be helpful and reassuring, never alarmist. Do not invent prices, discounts or guarantees.
Return only the requested content with no commentary.`

func buildHeadlinePrompt(req *Request) string {
	a, u := req.AlertDetails, req.UserSettings
	return fmt.Sprintf(
		"Generate exactly %d distinct ad headlines for a marketing campaign. "+
			"The company is %s, a %s. "+
			"The ad is responding to a %s affecting %s (Severity: %s). "+
			"Each headline must be %d characters or less, end with a period, and include a call to action "+
			"like 'Learn More', 'Call Us', 'Get a Quote', 'Visit Website'. "+
			"Respond with a JSON array of %d strings and nothing else.",
		HeadlineCount, u.BusinessName(), u.BusinessType,
		a.Event, a.AreaDesc, a.Severity,
		MaxHeadlineLen, HeadlineCount,
	)
}

func buildBodyPrompt(req *Request) string {
	a, u := req.AlertDetails, req.UserSettings
	desc := a.Description
	if desc == "" {
		desc = "Details not available"
	}
	return fmt.Sprintf(
		"Generate marketing ad body copy. The company is %s. "+
			"The ad is responding to a %s. "+
			"The official alert description is: %q. "+
			"The tone should be helpful and reassuring, not alarmist. "+
			"Start the copy with \"Weather Notice:\". "+
			"Include this contact info or call to action: %s. "+
			"The entire copy must be %d characters or less.",
		u.BusinessName(), a.Event, desc, u.ContactString(), MaxBodyLen,
	)
}

// placeholderHeadlines is substituted when headline generation fails.
func placeholderHeadlines(business string) []string {
	return []string{
		"Headline generation failed...",
		"Default Headline 2...",
		"Contact " + business + "...",
	}
}

const placeholderBody = "Weather Notice: ..."

// ImageURL returns a stock placeholder image seeded by the alert event, so
// the same event always gets the same picture.
func ImageURL(event string) string {
	seed := strings.ToLower(strings.Join(strings.Fields(event), "-"))
	if seed == "" {
		seed = "weather"
	}
	return "https://picsum.photos/seed/" + url.PathEscape(seed) + "/1200/628"
}
