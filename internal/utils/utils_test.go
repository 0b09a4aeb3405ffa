package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Açúcar Refinado":      "acucar refinado",
		"  FEIJÃO   preto!! ":  "feijao preto",
		"Higie./Farm.":         "higie farm",
		"baixa 1,5kg de arroz": "baixa 1 5kg de arroz",
		"Pão-de-Queijo (500g)": "pao de queijo 500g",
		"":                     "",
		"Laticínios":           "laticinios",
		"oi, tudo bem?":        "oi tudo bem",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "Cebola Roxa — 2,5 KG"
	once := Normalize(in)
	assert.Equal(t, once, Normalize(once))
}

func TestFold_KeepsPunctuation(t *testing.T) {
	assert.Equal(t, "-1,5 kg de maca", Fold("-1,5 KG  de Maçã"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"quanto", "tenho", "de", "cafe"}, Tokens("Quanto tenho de café?"))
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("whatsapp:+55 (11) 98765-4321")
	require.NoError(t, err)
	assert.Equal(t, "5511987654321", got)

	got, err = NormalizePhone("11987654321")
	require.NoError(t, err)
	assert.Equal(t, "5511987654321", got)

	// complete international numbers never get the Brazilian prefix
	got, err = NormalizePhone("whatsapp:+14155238886")
	require.NoError(t, err)
	assert.Equal(t, "14155238886", got)

	got, err = NormalizePhone("+44 20 7946 0958")
	require.NoError(t, err)
	assert.Equal(t, "442079460958", got)

	_, err = NormalizePhone("12345")
	assert.Error(t, err)

	_, err = NormalizePhone("+12345")
	assert.Error(t, err)

	_, err = NormalizePhone("   ")
	assert.Error(t, err)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "5511*******21", MaskPhone("5511987654321"))
	assert.Equal(t, "1234", MaskPhone("1234"))
}
