package common

import (
	"regexp"
	"strings"
)

var (
	waSuffixPattern = regexp.MustCompile(`@[A-Za-z.]+$`)
	nonDialPattern  = regexp.MustCompile(`[^0-9+]`)
)

// NormalizePhoneNumber converts a provider-supplied phone identifier into
// canonical form: the trailing WhatsApp suffix ("@s.whatsapp.net", "@c.us")
// is removed, every character other than digits and plus signs is stripped,
// and leading plus signs are dropped. The operation is idempotent:
// re-applying it to an already-canonical number is a no-op.
func NormalizePhoneNumber(raw string) string {
	s := strings.TrimSpace(raw)
	s = waSuffixPattern.ReplaceAllString(s, "")
	s = nonDialPattern.ReplaceAllString(s, "")
	return strings.TrimLeft(s, "+")
}
