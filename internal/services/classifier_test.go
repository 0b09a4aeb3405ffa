package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ananth-NQI/estoque-backend/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		in     string
		intent Intent
		args   string
	}{
		{"baixa 1kg de arroz", IntentDecrement, "1kg de arroz"},
		{"Retirar 2 litros de leite", IntentDecrement, "2 litros de leite"},
		{"-1 arroz", IntentDecrement, "1 arroz"},
		{"  -0,5kg feijão", IntentDecrement, "0,5kg feijao"},
		{"usei 3 ovos", IntentDecrement, "3 ovos"},
		{"aumentar 2 kg arroz", IntentIncrement, "2 kg arroz"},
		{"somar 1 cafe", IntentIncrement, "1 cafe"},
		{"adicionar 2 kg arroz ao estoque", IntentIncrement, "2 kg arroz ao estoque"},
		{"adiciona 1 leite no estoque", IntentIncrement, "1 leite no estoque"},
		{"adicionar 2 kg feijao", IntentCreate, "2 kg feijao"},
		{"Cadastrar produto 3 un sabonete", IntentCreate, "produto 3 un sabonete"},
		{"novo produto 1 kg sal", IntentCreate, "1 kg sal"},
		{"ver categoria bebidas", IntentCategoryQuery, "bebidas"},
		{"quanto tenho na categoria Higiene?", IntentCategoryQuery, "higiene?"},
		{"quanto tenho de arroz?", IntentQuery, "tenho de arroz?"},
		{"saldo feijão", IntentQuery, "feijao"},
		{"oi tudo bem", IntentHelp, ""},
		{"categoria bebidas", IntentHelp, ""},
		{"4", IntentHelp, ""},
		{"", IntentHelp, ""},
	}
	for _, c := range cases {
		cmd := Classify(ClassifierInput{Raw: c.in})
		assert.Equal(t, c.intent, cmd.Intent, c.in)
		assert.Equal(t, c.args, cmd.Args, c.in)
	}
}

func TestClassify_VerbsMatchWholeWords(t *testing.T) {
	// "tirar" inside "retirar" and "ver" inside "verdura" must not fire
	assert.Equal(t, IntentDecrement, Classify(ClassifierInput{Raw: "retirar 1 arroz"}).Intent)
	assert.Equal(t, IntentHelp, Classify(ClassifierInput{Raw: "verdura fresca"}).Intent)
}

func TestClassify_Precedence(t *testing.T) {
	session := &models.ChatSession{ID: "s1", State: models.SessionStateAwaitingPrice, ExpiresAt: time.Now().Add(time.Hour)}

	// an open session owns every message, even ones that look like commands
	cmd := Classify(ClassifierInput{Raw: "baixa 1kg arroz", Session: session})
	assert.Equal(t, IntentContinue, cmd.Intent)
	assert.Same(t, session, cmd.Session)
	assert.Equal(t, "baixa 1kg arroz", cmd.Args)

	// decrement verbs beat increment and create verbs in the same text
	assert.Equal(t, IntentDecrement, Classify(ClassifierInput{Raw: "retirar e adicionar 1 arroz"}).Intent)
	// increment beats create
	assert.Equal(t, IntentIncrement, Classify(ClassifierInput{Raw: "somar e cadastrar 1 arroz"}).Intent)
	// stock commands beat queries
	assert.Equal(t, IntentDecrement, Classify(ClassifierInput{Raw: "ver baixar 1 arroz"}).Intent)
}

func TestClassify_NumericFallback(t *testing.T) {
	other := &models.ChatSession{ID: "s2", Sender: "5511888880000", State: models.SessionStateAwaitingPrice}

	cmd := Classify(ClassifierInput{Raw: "7,50", UserSessions: []*models.ChatSession{other}})
	assert.Equal(t, IntentFallbackContinue, cmd.Intent)
	assert.Same(t, other, cmd.Session)

	cmd = Classify(ClassifierInput{Raw: "7,50", UserSessions: []*models.ChatSession{other, {ID: "s3"}}})
	assert.Equal(t, IntentHelp, cmd.Intent, "several candidate sessions are never guessed")

	cmd = Classify(ClassifierInput{Raw: "sete e cinquenta", UserSessions: []*models.ChatSession{other}})
	assert.Equal(t, IntentHelp, cmd.Intent, "only bare numbers fall back")
}

func TestQueryProduct(t *testing.T) {
	assert.Equal(t, "arroz", queryProduct("tenho de arroz?"))
	assert.Equal(t, "leite integral", queryProduct("de leite integral eu tenho no estoque"))
	assert.Equal(t, "", queryProduct("tenho?"))
}
