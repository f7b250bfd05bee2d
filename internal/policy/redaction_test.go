package policy

import (
	"strings"
	"testing"
)

func TestRedactPIIEmail(t *testing.T) {
	out, changed := RedactPII("mi correo es cliente@mincaelectric.com gracias")
	if !changed {
		t.Fatal("expected changed=true")
	}
	if strings.Contains(out, "cliente@mincaelectric.com") {
		t.Fatalf("email survived redaction: %q", out)
	}
	if !strings.Contains(out, "[CORREO_OCULTO]") {
		t.Fatalf("missing email placeholder: %q", out)
	}
}

func TestRedactPIICardBeforePhone(t *testing.T) {
	out, _ := RedactPII("pague con la tarjeta 4111 1111 1111 1111 ayer")
	if !strings.Contains(out, "[TARJETA_OCULTA]") {
		t.Fatalf("card number was not masked as card: %q", out)
	}
	if strings.Contains(out, "[TELEFONO_OCULTO]") {
		t.Fatalf("card number was misclassified as phone: %q", out)
	}
}

func TestRedactPIIPhone(t *testing.T) {
	out, changed := RedactPII("llamame al +57 310 555 1234")
	if !changed || !strings.Contains(out, "[TELEFONO_OCULTO]") {
		t.Fatalf("phone was not masked: %q", out)
	}
}

func TestRedactPIIDocument(t *testing.T) {
	out, changed := RedactPII("soy el cliente con cédula 1023456789 y NIT 900123456-7")
	if !changed {
		t.Fatal("expected changed=true")
	}
	if strings.Contains(out, "1023456789") || strings.Contains(out, "900123456-7") {
		t.Fatalf("document numbers survived redaction: %q", out)
	}
}

func TestRedactPIICleanTextUnchanged(t *testing.T) {
	in := "cuantos breakers de 20 amperios hay en bodega"
	out, changed := RedactPII(in)
	if changed || out != in {
		t.Fatalf("clean text was modified: %q", out)
	}
}
