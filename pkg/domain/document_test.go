package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDocument(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"three digits", "123", "123"},
		{"partial cpf", "12345", "123.45"},
		{"partial cpf after second group", "12345678", "123.456.78"},
		{"full cpf", "12345678901", "123.456.789-01"},
		{"cpf with punctuation", "123.456.789-01", "123.456.789-01"},
		{"twelve digits switch to cnpj", "112223330001", "11.222.333/0001"},
		{"full cnpj", "11222333000181", "11.222.333/0001-81"},
		{"cnpj typed with spaces", " 11 222 333 0001 81 ", "11.222.333/0001-81"},
		{"overflow is truncated", "1122233300018199", "11.222.333/0001-81"},
		{"letters are dropped", "abc123def", "123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDocument(tt.input))
		})
	}
}

func TestFormatDocument_Idempotent(t *testing.T) {
	for _, input := range []string{"11222333000181", "12345678901", "1122233300018199", "112"} {
		once := FormatDocument(input)
		assert.Equal(t, once, FormatDocument(once), "formatting %q twice changed the output", input)
	}
}

func FuzzFormatDocument(f *testing.F) {
	f.Add("")
	f.Add("11222333000181")
	f.Add("11.222.333/0001-81")
	f.Add("123.456.789-01")
	f.Add("99999999999999999999")
	f.Add(string([]byte{0x00, 0xff, '1'}))

	f.Fuzz(func(t *testing.T, input string) {
		once := FormatDocument(input)
		if twice := FormatDocument(once); twice != once {
			t.Errorf("not idempotent: %q -> %q -> %q", input, once, twice)
		}
		if len(Digits(once)) > cnpjLength {
			t.Errorf("output %q carries more than %d digits", once, cnpjLength)
		}
	})
}
