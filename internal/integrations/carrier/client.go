package carrier

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Result — собственный конверт ответа перевозчика. Бизнес-ошибки перевозчика
// (Success=false) отдаются вызывающему как есть, без переинтерпретации.
type Result struct {
	Success bool           `json:"success"`
	Data    []DocumentData `json:"data,omitempty"`
	Errors  []string       `json:"errors,omitempty"`
}

// DocumentData — поля, назначаемые перевозчиком документу при save/update.
type DocumentData struct {
	Ref                   string  `json:"Ref"`
	CostOnSite            float64 `json:"CostOnSite"`
	EstimatedDeliveryDate string  `json:"EstimatedDeliveryDate"`
	IntDocNumber          string  `json:"IntDocNumber"`
}

// Failure — локально построенный отказ в том же конверте, что и ответы
// перевозчика: вызывающие проверяют только Success.
func Failure(errs ...string) Result {
	return Result{Success: false, Errors: errs}
}

// BackwardDelivery — вложенная запись обратной доставки (наложенный платёж).
type BackwardDelivery struct {
	PayerType        string `json:"PayerType"`
	CargoType        string `json:"CargoType"`
	RedeliveryString string `json:"RedeliveryString"`
}

// DocumentParams — плоский набор параметров API документов перевозчика.
// Имена полей повторяют wire-формат.
type DocumentParams struct {
	Ref string `json:"Ref,omitempty"` // только для update

	NewAddress    int     `json:"NewAddress"`
	PayerType     string  `json:"PayerType"`
	PaymentMethod string  `json:"PaymentMethod"`
	CargoType     string  `json:"CargoType"`
	VolumeGeneral float64 `json:"VolumeGeneral"`
	Weight        float64 `json:"Weight"`
	ServiceType   string  `json:"ServiceType"`
	SeatsAmount   int     `json:"SeatsAmount"`
	Description   string  `json:"Description"`
	Cost          float64 `json:"Cost"`

	CitySender    string `json:"CitySender"`
	Sender        string `json:"Sender"`
	SenderAddress string `json:"SenderAddress"`
	ContactSender string `json:"ContactSender"`
	SendersPhone  string `json:"SendersPhone"`

	RecipientCityName    string `json:"RecipientCityName"`
	SettlementType       string `json:"SettlementType"`
	RecipientArea        string `json:"RecipientArea"`
	RecipientAreaRegions string `json:"RecipientAreaRegions"`
	RecipientAddressName string `json:"RecipientAddressName"`
	RecipientHouse       string `json:"RecipientHouse"`
	RecipientFlat        string `json:"RecipientFlat"`
	RecipientName        string `json:"RecipientName"`
	RecipientType        string `json:"RecipientType"`
	RecipientsPhone      string `json:"RecipientsPhone"`

	DateTime string `json:"DateTime"` // DD.MM.YYYY

	BackwardDeliveryData []BackwardDelivery `json:"BackwardDeliveryData,omitempty"`
}

// Gateway выполняет операции над документом у перевозчика.
// Ошибка возвращается только при транспортном сбое; бизнес-отказ
// перевозчика приходит внутри Result.
type Gateway interface {
	SaveDocument(ctx context.Context, p DocumentParams) (Result, error)
	UpdateDocument(ctx context.Context, p DocumentParams) (Result, error)
	DeleteDocument(ctx context.Context, ref string) (Result, error)
}

// TrackingState — текущая стадия обработки одного документа.
type TrackingState struct {
	DocumentNumber string
	TrackingCode   int
	TrackingAt     *time.Time
}

// Tracker читает трекинг зарегистрированных документов.
type Tracker interface {
	GetStatusDocuments(ctx context.Context, documentNumbers []string) ([]TrackingState, error)
}

// Форматы даты доставки, встречающиеся в ответах перевозчика.
var deliveryDateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05",
}

// ParseEstimatedDelivery нормализует дату доставки из любого формата
// перевозчика к полуночи UTC (храним только дату).
func ParseEstimatedDelivery(s string) (time.Time, error) {
	for _, layout := range deliveryDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized delivery date %q", s)
}
