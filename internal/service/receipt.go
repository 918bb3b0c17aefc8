package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lawgate/consult-server-go/internal/model"
)

const receiptTimeLayout = "02.01.2006 15:04"

// RejectionText deliberately lists every cause without saying which one applied.
const RejectionText = "❌ Кодовое слово НЕВЕРНОЕ!\n\n" +
	"Возможные причины:\n" +
	"• Неправильное кодовое слово\n" +
	"• Платеж не был совершен\n" +
	"• Неправильный Telegram ID\n" +
	"• Консультация уже использована\n\n" +
	"⚠️ Не оказывайте консультацию без подтверждения оплаты"

const UnavailableText = "❌ Ошибка при проверке кодового слова\n\n" +
	"База данных временно недоступна. Пожалуйста, попробуйте еще раз позже."

func rub(d decimal.Decimal) string {
	return d.StringFixed(2) + "₽"
}

// OperatorReceipt is shown to the operator after a successful verification.
func OperatorReceipt(clientID int64, rec *model.ConsultationRecord, stats *model.ClientStats) string {
	if rec == nil {
		return "⚠️ Кодовое слово верное, но информация о консультации не найдена"
	}

	var b strings.Builder
	b.WriteString("✅ Кодовое слово ВЕРНОЕ!\n\n")
	b.WriteString("📋 Информация о клиенте:\n")
	fmt.Fprintf(&b, "👤 Имя: %s\n", rec.DisplayName())
	fmt.Fprintf(&b, "📱 Username: %s\n", rec.Handle())
	fmt.Fprintf(&b, "🆔 Telegram ID: %d\n", clientID)
	fmt.Fprintf(&b, "💰 Сумма: %s\n", rub(rec.Amount))
	fmt.Fprintf(&b, "📋 Тип: %s\n", rec.Kind.Title())
	fmt.Fprintf(&b, "📅 Дата оплаты: %s\n", rec.CreatedAt.Format(receiptTimeLayout))
	fmt.Fprintf(&b, "🆔 ID платежа: %s\n", rec.PaymentRef)
	if stats != nil && stats.TotalConsultations > 1 {
		fmt.Fprintf(&b, "📊 Всего консультаций: %d на %s\n", stats.TotalConsultations, rub(stats.TotalAmount))
	}
	b.WriteString("\n✅ Можно оказывать консультацию")
	return b.String()
}

// GuidanceText explains the expected message shape when identity or secret is missing.
func GuidanceText(codeWord string, foundSecret bool) string {
	if foundSecret {
		return "❌ Кодовое слово найдено, но не найден Telegram ID клиента\n\n" +
			"Пожалуйста, убедитесь, что в сообщении указан Telegram ID клиента.\n" +
			fmt.Sprintf("Пример: 'Клиент говорит кодовое слово %s, его ID: 123456789'\n\n", codeWord) +
			fmt.Sprintf("Или используйте команду: /check 123456789 %s", codeWord)
	}
	return "💡 Как использовать бота для проверки кодовых слов:\n\n" +
		"1. Перешлите сообщение от клиента с кодовым словом\n" +
		"2. Или напишите сообщение в формате:\n" +
		fmt.Sprintf("   'Клиент ID: 123456789, код: %s'\n", codeWord) +
		"3. Или используйте команду:\n" +
		fmt.Sprintf("   /check 123456789 %s\n\n", codeWord) +
		"Бот автоматически проверит кодовое слово и покажет информацию о клиенте."
}

// CheckUsageText is the reply to a malformed /check command.
func CheckUsageText(codeWord string) string {
	return "💡 Как использовать команду проверки:\n\n" +
		"/check <telegram_id> <кодовое_слово>\n\n" +
		"Пример:\n" +
		fmt.Sprintf("/check 123456789 %s\n\n", codeWord) +
		"Или просто перешлите сообщение от клиента с кодовым словом."
}

// CodeWordText discloses the secret to a client whose payment succeeded.
func CodeWordText(codeWord string, clientID int64) string {
	return "🔐 КОДОВОЕ СЛОВО ДЛЯ ЮРИСТА\n\n" +
		fmt.Sprintf("📝 %s\n\n", codeWord) +
		"⚠️ ВАЖНО: При обращении к юристу обязательно назовите это кодовое слово для подтверждения оплаты.\n\n" +
		"💡 Как использовать:\n" +
		"1. Свяжитесь с юристом по указанным контактам\n" +
		fmt.Sprintf("2. Назовите кодовое слово: %s\n", codeWord) +
		fmt.Sprintf("3. Укажите ваш Telegram ID: %d\n", clientID) +
		"4. Опишите ваш вопрос\n\n" +
		"🔒 Кодовое слово действительно только для этой консультации."
}

// PaymentSucceededText confirms the payment to the client.
func PaymentSucceededText(check *PaymentCheck, lawyerContact string) string {
	return "✅ Платеж успешно оплачен!\n\n" +
		fmt.Sprintf("💰 Сумма: %s\n", rub(check.Amount)) +
		fmt.Sprintf("📋 Тип консультации: %s\n", check.Kind.Title()) +
		fmt.Sprintf("🆔 ID платежа: %s\n\n", check.PaymentRef) +
		"Спасибо за оплату! Наш юрист свяжется с вами в ближайшее время.\n\n" +
		"📞 Контакты для связи:\n" +
		fmt.Sprintf("👤 Telegram: %s", lawyerContact)
}

// ReceiptSentText tells the client the fiscal receipt went to their e-mail.
func ReceiptSentText(paymentRef, email string) string {
	return "🧾 Чек отправлен!\n\n" +
		"✅ Официальный чек создан автоматически\n" +
		fmt.Sprintf("📧 Чек отправлен на %s\n", email) +
		fmt.Sprintf("🆔 ID платежа: %s\n\n", paymentRef) +
		"💡 Если чек не пришел, проверьте папку 'Спам'"
}

// LawyerNotification announces a newly paid consultation in the operator chat.
func LawyerNotification(clientID int64, client model.ClientFields, kind model.ConsultationKind, amount decimal.Decimal, codeWord, lawyerContact string) string {
	return "💰 НОВАЯ ОПЛАЧЕННАЯ КОНСУЛЬТАЦИЯ!\n\n" +
		fmt.Sprintf("👤 Клиент: %s\n", client.DisplayName()) +
		fmt.Sprintf("📱 Username: %s\n", client.Handle()) +
		fmt.Sprintf("🆔 Telegram ID: %d\n", clientID) +
		fmt.Sprintf("💰 Сумма: %s\n", rub(amount)) +
		fmt.Sprintf("📋 Тип: %s\n", kind.Title()) +
		fmt.Sprintf("🔐 Кодовое слово: %s\n\n", codeWord) +
		"📞 Контакты для связи:\n" +
		fmt.Sprintf("👤 Telegram: %s\n\n", lawyerContact) +
		"💡 Ожидайте обращения клиента с кодовым словом"
}
