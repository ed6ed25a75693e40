package messages

import "time"

// TrackingStatusChanged — результат одного опроса трекинга воркером.
// Консьюмер API применяет его к накладной и пересчитывает статус.
type TrackingStatusChanged struct {
	WaybillID uint64    `json:"waybill_id"`
	CheckedAt time.Time `json:"checked_at"`

	TrackingCode *int       `json:"tracking_code,omitempty"`
	TrackingAt   *time.Time `json:"tracking_at,omitempty"`

	NextCheckAt time.Time `json:"next_check_at"`

	Error *string `json:"error,omitempty"`
}
