package licenses

import (
	"strings"
	"testing"
)

func TestGenerateKey_Format(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey err: %v", err)
	}

	parts := strings.Split(key, "-")
	if len(parts) != 5 {
		t.Fatalf("key %q: got %d parts, want 5", key, len(parts))
	}
	if parts[0] != "MERC" {
		t.Fatalf("key %q: prefix %q, want MERC", key, parts[0])
	}
	for _, group := range parts[1:] {
		if len(group) != 4 {
			t.Fatalf("key %q: group %q length %d, want 4", key, group, len(group))
		}
		for _, r := range group {
			if !strings.ContainsRune(keyAlphabet, r) {
				t.Fatalf("key %q: character %q outside alphabet", key, r)
			}
		}
	}
	if !ValidKey(key) {
		t.Fatalf("generated key %q does not pass ValidKey", key)
	}
}

func TestGenerateKey_NoDuplicatesInSample(t *testing.T) {
	// Con 31^16 combinaciones, una colisión en 1000 claves delataría un
	// generador roto.
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		key, err := GenerateKey()
		if err != nil {
			t.Fatal(err)
		}
		if seen[key] {
			t.Fatalf("duplicate key in sample: %q", key)
		}
		seen[key] = true
	}
}

func TestValidKey(t *testing.T) {
	cases := []struct {
		key  string
		want bool
	}{
		{"MERC-ABCD-EFGH-JKMN-PQRS", true},
		{"MERC-2345-6789-ABCD-WXYZ", true},
		{"merc-abcd-efgh-jkmn-pqrs", false}, // minúsculas no
		{"MERC-ABC-EFGH-JKMN-PQRS", false},  // grupo corto
		{"MERC-ABCD-EFGH-JKMN", false},      // grupo faltante
		{"XXXX-ABCD-EFGH-JKMN-PQRS", false}, // prefijo ajeno
		{"MERC-AB0D-EFGH-JKMN-PQRS", false}, // 0 es ambiguo, excluido
		{"MERC-ABID-EFGH-JKMN-PQRS", false}, // I es ambiguo, excluido
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidKey(tc.key); got != tc.want {
			t.Errorf("ValidKey(%q): got %v, want %v", tc.key, got, tc.want)
		}
	}
}
