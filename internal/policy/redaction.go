package policy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	// Colombian cédula/NIT mentioned explicitly, e.g. "cédula 1023456789" or "NIT 900123456-7".
	documentPattern = regexp.MustCompile(`(?i)\b(c[eé]dula|nit|cc)[.:]?\s*[0-9][0-9.\-]{5,15}\b`)
)

// RedactPII masks emails, payment cards, phone numbers and identity
// documents before a turn is committed to conversational memory.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[CORREO_OCULTO]")
	changed = changed || next != out
	out = next

	next = documentPattern.ReplaceAllString(out, "[DOCUMENTO_OCULTO]")
	changed = changed || next != out
	out = next

	// Card redaction runs before phone so long digit runs are not
	// mistaken for phone numbers.
	next = cardPattern.ReplaceAllString(out, "[TARJETA_OCULTA]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[TELEFONO_OCULTO]")
	changed = changed || next != out
	out = next

	return out, changed
}
