package filter

import (
	"time"

	"waybox/internal/models"
)

// Колонки таблицы waybills, по которым строятся отчётные предикаты.
const (
	ColID                     = "id"
	ColStatusCode             = "status_code"
	ColTrackingStatusCode     = "tracking_status_code"
	ColTrackingStatusEditedAt = "tracking_status_edited_at"
	ColRecipientPhone         = "recipient_phone"
)

// Сколько накладная может лежать в отделении, прежде чем считается "не получено".
const notReceivedAfter = 3 * 24 * time.Hour

// Окно, в течение которого ждём поступления суммы обратной доставки.
const awaitRedeliveryWindow = 4 * 24 * time.Hour

// NotReceived: накладная в пункте назначения (коды 7, 8) и статус менялся
// строго раньше, чем now-3d, либо уже стоит внутренний статус "отказ".
func NotReceived(base Expr, now time.Time) Expr {
	stale := In(ColTrackingStatusCode, 7, 8).
		And(Lt(ColTrackingStatusEditedAt, now.Add(-notReceivedAfter)))
	return base.And(stale.Or(Eq(ColStatusCode, int(models.StatusRefused))))
}

// AwaitingRedeliverySum: документ получен с обратной доставкой (код 10)
// и с момента смены статуса прошло строго меньше 4 дней.
func AwaitingRedeliverySum(base Expr, now time.Time) Expr {
	return base.
		And(Eq(ColTrackingStatusCode, 10)).
		And(Gt(ColTrackingStatusEditedAt, now.Add(-awaitRedeliveryWindow)))
}

// Earnings ограничивает выборку полученными накладными; сумма считается
// хранилищем как SUM(prepaid_sum + redelivery_sum).
func Earnings(base Expr) Expr {
	return base.And(Eq(ColStatusCode, int(models.StatusReceived)))
}

// ByPhone — базовый фильтр отчётов по телефону получателя.
// Пустой телефон даёт пустое выражение (без ограничения).
func ByPhone(phone string) Expr {
	if phone == "" {
		return Expr{}
	}
	return Eq(ColRecipientPhone, phone)
}

// ByID ограничивает предикат одной записью (fallback классификатора).
func ByID(id uint64) Expr {
	return Eq(ColID, id)
}
