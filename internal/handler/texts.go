package handler

import (
	"fmt"

	"github.com/lawgate/consult-server-go/internal/model"
	"github.com/lawgate/consult-server-go/internal/service"
	"github.com/lawgate/consult-server-go/internal/telegram"
)

const (
	callbackLawyer       = "real_lawyer"
	callbackAbout        = "about"
	callbackMainMenu     = "main_menu"
	callbackPayPrefix    = "pay_"
	callbackEmailPrefix  = "enter_email_"
	callbackNoReceipt    = "no_receipt_"
	callbackCheckPayment = "check_payment_"
)

const welcomeText = "👋 Добро пожаловать в Юридический Бот!\n\n" +
	"Здесь вы можете оплатить консультацию с профессиональным юристом."

const aboutText = "ℹ️ О нас\n\n" +
	"Мы помогаем разобраться в правовых вопросах: устные консультации, " +
	"анализ документов и подготовка правовых заключений."

const consultationMenuText = "👨‍💼 Консультация с юристом\n\n" +
	"Выберите тип консультации:\n\n" +
	"💬 Устная консультация (3150₽)\n" +
	"• Устная юридическая консультация\n" +
	"• Общие правовые рекомендации\n" +
	"• Ответы на вопросы\n\n" +
	"📋 Полная консультация с изучением документов (13650₽)\n" +
	"• Детальный анализ документов\n" +
	"• Письменные правовые заключения\n" +
	"• Подготовка документов"

const emailChoiceText = "🧾 Для отправки официального чека нужен ваш email\n\n" +
	"📧 Чек будет отправлен на указанный email\n" +
	"💡 Если не укажете email, чек не будет создан\n\n" +
	"Выберите действие:"

const enterEmailText = "📧 Введите ваш email для отправки чека:\n\n" +
	"💡 Пример: example@mail.ru\n\n" +
	"Отправьте email текстовым сообщением"

const (
	noAccessText          = "❌ У вас нет доступа к этой команде."
	badIdentityText       = "❌ Ошибка: Telegram ID должен быть числом."
	paymentsDisabledText  = "⚠️ Оплата временно недоступна. Попробуйте позже."
	paymentErrorText      = "❌ Ошибка создания платежа. Попробуйте позже."
	paymentCheckErrorText = "❌ Ошибка проверки статуса платежа\n\nПопробуйте проверить статус еще раз."
	rateLimitedText       = "⏳ Слишком много попыток оплаты. Попробуйте через несколько минут."
	foreignPaymentText    = "❌ Этот платеж оформлен другим пользователем."
	paymentPendingText    = "⏳ Платеж в обработке\n\nПожалуйста, подождите. Платеж обрабатывается платежной системой.\n\nВы можете проверить статус через несколько минут."
	storageErrorText      = "⚠️ Сервис временно недоступен. Попробуйте позже."
)

func lawyerWelcomeText(codeWord string) string {
	return "👨‍💼 Режим юриста\n\n" +
		fmt.Sprintf("Проверка клиента: /check 123456789 %s\n", codeWord) +
		"Или перешлите сообщение клиента с ID и кодовым словом.\n\n" +
		"/stats - клиенты, прошедшие проверку"
}

func helpText(lawyerContact string) string {
	return "📋 Как получить консультацию:\n\n" +
		"1. Выберите тип консультации и оплатите её\n" +
		"2. Получите кодовое слово\n" +
		fmt.Sprintf("3. Напишите юристу %s: ваш Telegram ID и кодовое слово", lawyerContact)
}

func invalidEmailText(email string) string {
	return fmt.Sprintf("❌ Неверный формат email: %s\n\n", truncate(email, 64)) +
		"💡 Примеры корректных email:\n" +
		"• example@mail.ru\n" +
		"• user@gmail.com\n\n" +
		"Попробуйте еще раз или выберите 'Без чека'"
}

func purchaseText(p *service.Purchase, email *string) string {
	text := fmt.Sprintf("💳 Оплата: %s\n\n", p.Kind.Title()) +
		fmt.Sprintf("💰 Сумма: %s₽\n", p.Amount.StringFixed(2))
	if email != nil {
		text += fmt.Sprintf("📧 Email для чека: %s\n\n✅ Чек будет отправлен на указанный email\n\n", *email)
	} else {
		text += "\n⚠️ Чек не будет создан\n\n"
	}
	return text + "Для оплаты нажмите кнопку ниже 👇"
}

func paymentFailedText(raw string) string {
	return "❌ Платеж не оплачен\n\n" +
		fmt.Sprintf("Статус: %s\n\n", raw) +
		"Попробуйте создать новый платеж."
}

func mainMenu() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.CallbackButton("👨‍💼 Связаться с юристом", callbackLawyer),
		telegram.CallbackButton("ℹ️ О нас", callbackAbout),
	)
}

func backToMenu() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(telegram.CallbackButton("🏠 Главное меню", callbackMainMenu))
}

func consultationMenu() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.CallbackButton("💬 Устная консультация (3150₽)", callbackPayPrefix+string(model.ConsultationKindOral)),
		telegram.CallbackButton("📋 Полная консультация (13650₽)", callbackPayPrefix+string(model.ConsultationKindFull)),
		telegram.CallbackButton("🏠 Главное меню", callbackMainMenu),
	)
}

func emailChoiceMenu(kind model.ConsultationKind) *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.CallbackButton("📧 Ввести email", callbackEmailPrefix+string(kind)),
		telegram.CallbackButton("🚫 Без чека", callbackNoReceipt+string(kind)),
		telegram.CallbackButton("🏠 Главное меню", callbackMainMenu),
	)
}

func paymentMenu(p *service.Purchase) *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.URLButton("💳 Оплатить", p.ConfirmationURL),
		telegram.CallbackButton("🔄 Проверить оплату", callbackCheckPayment+p.PaymentRef),
		telegram.CallbackButton("🏠 Главное меню", callbackMainMenu),
	)
}

func recheckMenu(paymentRef string) *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.CallbackButton("🔄 Проверить снова", callbackCheckPayment+paymentRef),
		telegram.CallbackButton("🏠 Главное меню", callbackMainMenu),
	)
}
