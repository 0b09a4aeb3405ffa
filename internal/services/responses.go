package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/estoque-backend/internal/inventory"
	"github.com/Ananth-NQI/estoque-backend/internal/models"
)

// HelpMessage is the fixed reply for messages no command recognizes
const HelpMessage = `🤖 Não entendi sua mensagem. Você pode me enviar:

📉 *Dar baixa:* baixar 1kg arroz (ou -1 arroz)
📈 *Somar ao estoque:* aumentar 2 kg arroz
🆕 *Cadastrar produto:* adicionar 2 kg feijão
🔎 *Consultar:* quanto tenho de arroz?
🗂️ *Ver categoria:* ver categoria bebidas`

// GenericFailureMessage is sent when storage fails mid-processing
const GenericFailureMessage = "⚠️ Tivemos um problema ao processar sua mensagem. Tente novamente em instantes."

// PhoneNotLinkedMessage is sent to senders with no linked account
const PhoneNotLinkedMessage = "📵 Este número não está vinculado a nenhuma conta. Vincule seu WhatsApp no aplicativo para controlar seu estoque."

const (
	msgNoQuantityDecrement = "Não entendi a quantidade. Exemplo: baixar 1kg arroz"
	msgNoQuantityIncrement = "Não entendi a quantidade. Exemplo: aumentar 2 kg arroz"
	msgNoProduct           = "Qual produto? Exemplo: baixar 1kg arroz"
	msgNoProductCreate     = "Qual produto? Exemplo: adicionar 2 kg feijão"
	msgNoProductQuery      = "Qual produto? Exemplo: quanto tenho de arroz?"
	msgPriceRetry          = "Não entendi o preço. Envie só o valor pago por unidade, por exemplo: 7,50"
	msgItemGone            = "Esse produto não está mais no seu estoque. Cadastro cancelado."
)

func replyDecremented(item *models.StockItem) string {
	return fmt.Sprintf("✅ Baixa registrada em %s.\nAgora você tem: %s", item.Name, inventory.FormatQuantity(item.Quantity, item.Unit))
}

func replyRemoved(item *models.StockItem) string {
	return fmt.Sprintf("✅ Baixa registrada. %s acabou e foi removido do estoque.", item.Name)
}

func replyInsufficient(item *models.StockItem, requested decimal.Decimal, unit string) string {
	return fmt.Sprintf("❌ Estoque insuficiente de %s.\nVocê tem: %s\nTentou baixar: %s",
		item.Name,
		inventory.FormatQuantity(item.Quantity, item.Unit),
		inventory.FormatQuantity(requested, unit))
}

func replyIncremented(item *models.StockItem) string {
	return fmt.Sprintf("✅ Estoque de %s atualizado.\nAgora você tem: %s", item.Name, inventory.FormatQuantity(item.Quantity, item.Unit))
}

func replyNotFound(product string) string {
	return fmt.Sprintf("🔍 Não encontrei \"%s\" no seu estoque.", product)
}

func replyUseCreate(product string) string {
	return fmt.Sprintf("🔍 Não encontrei \"%s\" no seu estoque.\nPara cadastrar um produto novo, envie: adicionar <quantidade> %s", product, product)
}

func replyUseIncrement(item *models.StockItem) string {
	return fmt.Sprintf("ℹ️ %s já está no seu estoque (%s).\nPara somar, envie: aumentar <quantidade> %s",
		item.Name, inventory.FormatQuantity(item.Quantity, item.Unit), strings.ToLower(item.Name))
}

func replyAmbiguous(query string, items []*models.StockItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🤔 Encontrei mais de um produto para \"%s\":", query)
	for _, item := range items {
		fmt.Fprintf(&b, "\n• %s (%s)", item.Name, inventory.FormatQuantity(item.Quantity, item.Unit))
	}
	b.WriteString("\nEnvie de novo com o nome completo.")
	return b.String()
}

func replyPricePrompt(item *models.StockItem) string {
	return fmt.Sprintf("🆕 %s cadastrado com %s.\n💰 Qual foi o preço pago por unidade? (ex: 7,50)",
		item.Name, inventory.FormatQuantity(item.Quantity, item.Unit))
}

func replyCategoryPrompt(price decimal.Decimal) string {
	return fmt.Sprintf("💰 Preço registrado: %s.\n🗂️ Qual a categoria? Responda com o número ou o nome:\n%s",
		inventory.FormatCurrency(price), inventory.CategoryMenu())
}

func replyCategoryRetry() string {
	return "Não reconheci a categoria. Responda com o número ou o nome:\n" + inventory.CategoryMenu()
}

func replyRegistered(product string, quantity decimal.Decimal, unit string, price decimal.Decimal, category inventory.Category) string {
	return fmt.Sprintf("🎉 Pronto! %s cadastrado.\nQuantidade: %s\nPreço: %s\nCategoria: %s",
		product,
		inventory.FormatQuantity(quantity, unit),
		inventory.FormatCurrency(price),
		category.Name)
}

func replyQuantity(item *models.StockItem) string {
	return fmt.Sprintf("📦 Você tem %s de %s.", inventory.FormatQuantity(item.Quantity, item.Unit), item.Name)
}

func replyUnknownCategory() string {
	return "🔍 Não encontrei essa categoria. Categorias disponíveis:\n" + inventory.CategoryMenu()
}

func replyEmptyCategory(category inventory.Category) string {
	return fmt.Sprintf("🔍 Não encontrei produtos na categoria %s.", category.Name)
}

// replyCategoryListing lists the items of a category. The total only counts
// items that carry a unit price and is omitted when none does.
func replyCategoryListing(category inventory.Category, items []*models.StockItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗂️ %s:", category.Name)

	total := decimal.Zero
	priced := false
	for _, item := range items {
		fmt.Fprintf(&b, "\n• %s: %s", item.Name, inventory.FormatQuantity(item.Quantity, item.Unit))
		if item.HasPrice() {
			total = total.Add(item.LastUnitPrice.Decimal.Mul(item.Quantity))
			priced = true
		}
	}
	if priced {
		fmt.Fprintf(&b, "\n💰 Valor total: %s", inventory.FormatCurrency(total))
	}
	return b.String()
}
