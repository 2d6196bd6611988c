package service

import "strings"

// CanonicalizeEmail maps every alias of one mailbox to the same string so the
// unique index on canonical_email rejects them. Addresses are lower-cased;
// Gmail ignores dots and +tags in the local part and treats googlemail.com
// as gmail.com.
func CanonicalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return email
	}
	local, domain := email[:at], email[at+1:]

	if domain == "googlemail.com" {
		domain = "gmail.com"
	}
	if domain == "gmail.com" {
		if idx := strings.IndexByte(local, '+'); idx != -1 {
			local = local[:idx]
		}
		local = strings.ReplaceAll(local, ".", "")
	}

	return local + "@" + domain
}
