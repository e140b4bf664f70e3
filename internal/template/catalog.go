package template

// DefaultLanguage is the fallback for unrecognized user languages.
const DefaultLanguage = "en"

// catalog maps i18n keys to per-language content. A key missing a language
// falls back to English; a key missing entirely resolves to itself so a
// dropped translation shows up in the product instead of crashing dispatch.
var catalog = map[string]map[string]string{
	"notification.booking_created.title": {
		"en": "New Booking",
		"uk": "Нове бронювання",
		"ru": "Новое бронирование",
	},
	"notification.booking_created.message": {
		"en": "A booking for {{service}} on {{date}} was created",
		"uk": "Створено бронювання послуги {{service}} на {{date}}",
		"ru": "Создано бронирование услуги {{service}} на {{date}}",
	},
	"notification.booking_confirmed.title": {
		"en": "Booking Confirmed",
		"uk": "Бронювання підтверджено",
		"ru": "Бронирование подтверждено",
	},
	"notification.booking_confirmed.message": {
		"en": "Your booking for {{service}} on {{date}} is confirmed",
		"uk": "Ваше бронювання послуги {{service}} на {{date}} підтверджено",
		"ru": "Ваше бронирование услуги {{service}} на {{date}} подтверждено",
	},
	"notification.booking_cancelled.title": {
		"en": "Booking Cancelled",
		"uk": "Бронювання скасовано",
		"ru": "Бронирование отменено",
	},
	"notification.booking_cancelled.message": {
		"en": "The booking for {{service}} on {{date}} was cancelled",
		"uk": "Бронювання послуги {{service}} на {{date}} скасовано",
		"ru": "Бронирование услуги {{service}} на {{date}} отменено",
	},
	"notification.booking_completed.title": {
		"en": "Booking Completed",
		"uk": "Бронювання завершено",
		"ru": "Бронирование завершено",
	},
	"notification.booking_completed.message": {
		"en": "Your booking for {{service}} is completed. Thank you!",
		"uk": "Ваше бронювання послуги {{service}} завершено. Дякуємо!",
		"ru": "Ваше бронирование услуги {{service}} завершено. Спасибо!",
	},
	"notification.booking_reminder.title": {
		"en": "Upcoming Booking",
		"uk": "Майбутнє бронювання",
		"ru": "Предстоящее бронирование",
	},
	"notification.booking_reminder.message": {
		"en": "Reminder: {{service}} is scheduled for {{date}}",
		"uk": "Нагадування: {{service}} заплановано на {{date}}",
		"ru": "Напоминание: {{service}} запланировано на {{date}}",
	},
}

// BookingContent is the fixed content derived for one booking notification
// type: i18n keys for title/message plus the named channel templates.
type BookingContent struct {
	TitleKey      string
	MessageKey    string
	EmailTemplate string
	SMSTemplate   string
}

// bookingContent is the fixed type→content mapping used by the booking
// convenience path. Types outside this map fall back to generic keys.
var bookingContent = map[string]BookingContent{
	"BOOKING_CREATED": {
		TitleKey:      "notification.booking_created.title",
		MessageKey:    "notification.booking_created.message",
		EmailTemplate: "booking_created",
	},
	"BOOKING_CONFIRMED": {
		TitleKey:      "notification.booking_confirmed.title",
		MessageKey:    "notification.booking_confirmed.message",
		EmailTemplate: "booking_confirmed",
		SMSTemplate:   "booking_confirmed",
	},
	"BOOKING_CANCELLED": {
		TitleKey:      "notification.booking_cancelled.title",
		MessageKey:    "notification.booking_cancelled.message",
		EmailTemplate: "booking_cancelled",
		SMSTemplate:   "booking_cancelled",
	},
	"BOOKING_COMPLETED": {
		TitleKey:      "notification.booking_completed.title",
		MessageKey:    "notification.booking_completed.message",
		EmailTemplate: "booking_completed",
	},
	"BOOKING_REMINDER": {
		TitleKey:      "notification.booking_reminder.title",
		MessageKey:    "notification.booking_reminder.message",
		EmailTemplate: "booking_reminder",
		SMSTemplate:   "booking_reminder",
	},
}

// ContentForBookingType returns the fixed content mapping for a booking
// notification type and whether the type is known.
func ContentForBookingType(notifType string) (BookingContent, bool) {
	c, ok := bookingContent[notifType]
	return c, ok
}
