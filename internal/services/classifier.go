package services

import (
	"strings"

	"github.com/Ananth-NQI/estoque-backend/internal/inventory"
	"github.com/Ananth-NQI/estoque-backend/internal/models"
	"github.com/Ananth-NQI/estoque-backend/internal/utils"
)

// Intent names the handler that owns a message
type Intent string

const (
	IntentContinue         Intent = "continue_session"
	IntentFallbackContinue Intent = "fallback_session"
	IntentDecrement        Intent = "decrement"
	IntentIncrement        Intent = "increment"
	IntentCreate           Intent = "create"
	IntentCategoryQuery    Intent = "category_query"
	IntentQuery            Intent = "query"
	IntentHelp             Intent = "help"
)

// ClassifierInput is everything the classifier may look at
type ClassifierInput struct {
	Raw string
	// Session is the active session of the exact (user, sender) pair
	Session *models.ChatSession
	// UserSessions are the user's active sessions on any sender. Only
	// loaded for numeric messages when Session is nil.
	UserSessions []*models.ChatSession
}

// Command is a classified message
type Command struct {
	Intent  Intent
	Args    string // folded text after the command verb
	Session *models.ChatSession
}

var (
	decrementVerbs = wordSet("baixar", "baixa", "retirar", "retira", "remover", "remove", "tirar", "tira", "usei", "gastei", "consumi")
	incrementVerbs = wordSet("aumentar", "aumenta", "somar", "soma", "acrescentar", "acrescenta", "repor", "repus")
	createVerbs    = wordSet("adicionar", "adiciona", "cadastrar", "cadastra", "inserir", "insere", "botar", "bota", "incluir", "inclui")
	queryVerbs     = wordSet("quanto", "quantos", "quanta", "quantas", "tenho", "consultar", "consulta", "ver", "mostrar", "mostra", "saldo", "listar", "lista")

	// "adicionar 2 kg arroz ao estoque" adds to an existing row
	stockSuffixes = []string{"ao estoque", "no estoque"}
)

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

type classifierRule struct {
	intent Intent
	match  func(in ClassifierInput, words []string) (Command, bool)
}

// classifierRules is the precedence contract: the first rule that matches wins
var classifierRules = []classifierRule{
	{IntentContinue, matchSession},
	{IntentFallbackContinue, matchFallbackSession},
	{IntentDecrement, matchDecrement},
	{IntentIncrement, matchIncrement},
	{IntentCreate, matchCreate},
	{IntentCategoryQuery, matchCategoryQuery},
	{IntentQuery, matchQuery},
}

// Classify decides which handler owns a message
func Classify(in ClassifierInput) Command {
	words := strings.Fields(utils.Fold(in.Raw))
	for _, rule := range classifierRules {
		if cmd, ok := rule.match(in, words); ok {
			cmd.Intent = rule.intent
			return cmd
		}
	}
	return Command{Intent: IntentHelp}
}

func matchSession(in ClassifierInput, _ []string) (Command, bool) {
	if in.Session == nil {
		return Command{}, false
	}
	return Command{Session: in.Session, Args: in.Raw}, true
}

// matchFallbackSession routes a bare number to the user's only open session
// when the sender has none. With several open sessions the target would be
// a guess, so the rule does not fire.
func matchFallbackSession(in ClassifierInput, _ []string) (Command, bool) {
	if in.Session != nil || !inventory.IsNumericOnly(in.Raw) || len(in.UserSessions) != 1 {
		return Command{}, false
	}
	return Command{Session: in.UserSessions[0], Args: in.Raw}, true
}

func matchDecrement(in ClassifierInput, words []string) (Command, bool) {
	if inventory.HasLeadingMinus(in.Raw) {
		args := strings.TrimPrefix(strings.TrimSpace(utils.Fold(in.Raw)), "-")
		return Command{Args: args}, true
	}
	return afterVerb(words, decrementVerbs)
}

func matchIncrement(_ ClassifierInput, words []string) (Command, bool) {
	if cmd, ok := afterVerb(words, incrementVerbs); ok {
		return cmd, true
	}
	cmd, ok := afterVerb(words, createVerbs)
	if !ok {
		return Command{}, false
	}
	normalized := utils.Normalize(cmd.Args)
	for _, suffix := range stockSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			return cmd, true
		}
	}
	return Command{}, false
}

func matchCreate(_ ClassifierInput, words []string) (Command, bool) {
	if cmd, ok := afterVerb(words, createVerbs); ok {
		return cmd, true
	}
	// "novo produto 2 kg feijao"
	for i := 0; i+1 < len(words); i++ {
		if utils.Normalize(words[i]) == "novo" && utils.Normalize(words[i+1]) == "produto" {
			return Command{Args: strings.Join(words[i+2:], " ")}, true
		}
	}
	return Command{}, false
}

func matchCategoryQuery(_ ClassifierInput, words []string) (Command, bool) {
	if _, ok := afterVerb(words, queryVerbs); !ok {
		return Command{}, false
	}
	for i, w := range words {
		if n := utils.Normalize(w); n == "categoria" || n == "categorias" {
			return Command{Args: strings.Join(words[i+1:], " ")}, true
		}
	}
	return Command{}, false
}

func matchQuery(_ ClassifierInput, words []string) (Command, bool) {
	return afterVerb(words, queryVerbs)
}

// afterVerb finds the first word in verbs and returns the text after it
func afterVerb(words []string, verbs map[string]bool) (Command, bool) {
	for i, w := range words {
		if verbs[utils.Normalize(w)] {
			return Command{Args: strings.Join(words[i+1:], " ")}, true
		}
	}
	return Command{}, false
}

// queryStopwords are dropped when pulling a product out of a question
var queryStopwords = wordSet("de", "do", "da", "dos", "das", "eu", "ainda", "ai", "aqui", "o", "a", "os", "as",
	"estoque", "no", "na", "em", "meu", "minha", "tem", "restam", "resta", "sobrou")

// queryProduct strips verbs and filler words from a stock question
// ("quanto tenho de arroz?" -> "arroz")
func queryProduct(args string) string {
	var kept []string
	for _, w := range utils.Tokens(args) {
		if queryVerbs[w] || queryStopwords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
