// Package status выводит внутренний статус накладной из кода трекинга перевозчика.
package status

import "waybox/internal/models"

// Таблица: код трекинга перевозчика -> внутренний статус.
// Коды вне таблицы уходят в fallback по предикату "не получено".
var byTrackingCode = map[int]models.StatusCode{
	1: models.StatusNew,

	5:   models.StatusInTransit,
	6:   models.StatusInTransit,
	101: models.StatusInTransit,
	104: models.StatusInTransit,

	7:  models.StatusAtBranch,
	8:  models.StatusAtBranch,
	14: models.StatusAtBranch,

	9:   models.StatusReceived,
	10:  models.StatusReceived,
	11:  models.StatusReceived,
	106: models.StatusReceived,

	102: models.StatusRefused,
	103: models.StatusRefused,
	108: models.StatusRefused,
}

// StuckCheck отвечает, попадает ли накладная сейчас под предикат "не получено"
// (давно лежит в отделении либо идёт отказ). "Не получено" — не код перевозчика,
// поэтому его нельзя получить из таблицы напрямую.
type StuckCheck func() (bool, error)

// Classify возвращает (новый статус, true), если статус должен измениться.
// Для кода вне таблицы вызывается stuck: попадание даёт StatusNotReceived,
// промах — (0, false): статус остаётся прежним.
func Classify(trackingCode int, stuck StuckCheck) (models.StatusCode, bool, error) {
	if sc, ok := byTrackingCode[trackingCode]; ok {
		return sc, true, nil
	}
	if stuck == nil {
		return 0, false, nil
	}
	hit, err := stuck()
	if err != nil {
		return 0, false, err
	}
	if hit {
		return models.StatusNotReceived, true, nil
	}
	return 0, false, nil
}
