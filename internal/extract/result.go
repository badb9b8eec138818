package extract

import "sort"

// Source names produced by the built-in strategies.
const (
	SourceFilecrypt = "filecrypt"
	SourceGeneric   = "generic"
)

// Result is the outcome of one extraction. Links are unique and sorted.
type Result struct {
	Source           string   `json:"source"`
	URL              string   `json:"url"`
	Name             string   `json:"name"`
	Links            []string `json:"links"`
	Password         string   `json:"password,omitempty"`
	RequiresPassword bool     `json:"requires_password"`
	RequiresCaptcha  bool     `json:"requires_captcha"`
	CaptchaType      string   `json:"captcha_type,omitempty"`
	CaptchaURL       string   `json:"captcha_url,omitempty"`
	EncryptedPayload bool     `json:"encrypted_payload,omitempty"`
	LinkListURL      string   `json:"link_list_url,omitempty"`
}

// TotalLinks returns the number of discovered links.
func (r *Result) TotalLinks() int {
	if r == nil {
		return 0
	}
	return len(r.Links)
}

// Gated reports whether discovery stopped at a password or captcha.
func (r *Result) Gated() bool {
	return r != nil && (r.RequiresPassword || r.RequiresCaptcha)
}

func uniqueSorted(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, link := range links {
		if link == "" {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	sort.Strings(out)
	return out
}
