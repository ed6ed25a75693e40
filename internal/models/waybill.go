package models

import "time"

// Внутренние статусы накладной (замкнутый набор, см. классификатор).
type StatusCode int

const (
	StatusNew         StatusCode = 1
	StatusInTransit   StatusCode = 2
	StatusAtBranch    StatusCode = 3
	StatusReceived    StatusCode = 4
	StatusNotReceived StatusCode = 5
	StatusRefused     StatusCode = 6
)

func (s StatusCode) Valid() bool {
	return s >= StatusNew && s <= StatusRefused
}

func (s StatusCode) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusInTransit:
		return "IN_TRANSIT"
	case StatusAtBranch:
		return "AT_BRANCH"
	case StatusReceived:
		return "RECEIVED"
	case StatusNotReceived:
		return "NOT_RECEIVED"
	case StatusRefused:
		return "REFUSED"
	}
	return "UNKNOWN"
}

// Final сообщает, что статус терминальный и накладную больше не опрашиваем.
func (s StatusCode) Final() bool {
	return s == StatusReceived || s == StatusRefused
}

type Waybill struct {
	ID uint64

	// Поля, назначаемые перевозчиком после успешной регистрации.
	// CarrierRef непустой тогда и только тогда, когда документ зарегистрирован.
	CarrierRef            *string
	DocumentNumber        *string
	CarrierCost           *float64
	EstimatedDeliveryDate *time.Time // нормализована до даты (полночь UTC)

	Sender        string
	SenderContact string
	SenderCity    string
	SenderAddress string
	SenderPhone   string

	RecipientTownID      uint64
	RecipientWarehouseID uint64
	RecipientName        string
	RecipientPhone       string
	RecipientType        string

	Description  string
	Note         string
	Weight       float64
	Volume       float64
	SeatsAmount  int
	DeclaredCost float64
	CargoType    string
	ServiceType  string

	PayerType     string
	PaymentMethod string
	PrepaidSum    float64
	OrderDate     time.Time
	ShipDate      time.Time

	IsRedelivery        bool
	RedeliveryPayerType string
	RedeliverySum       float64

	StatusCode             StatusCode
	TrackingStatusCode     *int
	TrackingStatusEditedAt *time.Time

	NextCheckAt    time.Time
	CheckFailCount int32
	LastError      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Issued — маркер идемпотентности регистрации у перевозчика.
func (w *Waybill) Issued() bool {
	return w.CarrierRef != nil && *w.CarrierRef != ""
}

// PrintableRef — ссылка для печатных форм (номер экспресс-накладной).
func (w *Waybill) PrintableRef() string {
	if w.DocumentNumber == nil {
		return ""
	}
	return *w.DocumentNumber
}

type WaybillCreateInput struct {
	Sender        string
	SenderContact string
	SenderCity    string
	SenderAddress string
	SenderPhone   string

	RecipientTownID      uint64
	RecipientWarehouseID uint64
	RecipientName        string
	RecipientPhone       string
	RecipientType        string

	Description  string
	Note         string
	Weight       float64
	Volume       float64
	SeatsAmount  int
	DeclaredCost float64
	CargoType    string
	ServiceType  string

	PayerType     string
	PaymentMethod string
	PrepaidSum    float64
	OrderDate     time.Time
	ShipDate      time.Time

	IsRedelivery        bool
	RedeliveryPayerType string
	RedeliverySum       float64
}
