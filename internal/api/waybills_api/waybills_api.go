// Package waybills_api — HTTP JSON API над менеджером жизненного цикла.
// Операции жизненного цикла отдают конверт перевозчика как есть: клиент
// смотрит на поле success; HTTP-кодом сообщаем только транспортные сбои.
package waybills_api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"waybox/internal/integrations/carrier"
	"waybox/internal/models"
	"waybox/internal/printing"
)

type Service interface {
	CreateWaybill(ctx context.Context, in models.WaybillCreateInput) (*models.Waybill, error)
	GetWaybill(ctx context.Context, id uint64) (*models.Waybill, error)
	Issue(ctx context.Context, id uint64) (carrier.Result, error)
	Amend(ctx context.Context, id uint64) (carrier.Result, error)
	Withdraw(ctx context.Context, id uint64) (carrier.Result, error)
	NotReceived(ctx context.Context, phone string, limit, offset int) ([]*models.Waybill, error)
	AwaitingRedeliverySum(ctx context.Context, phone string, limit, offset int) ([]*models.Waybill, error)
	Earnings(ctx context.Context, phone string) (float64, error)
}

type Printer interface {
	FormLink(d printing.Document, f printing.Form) (string, error)
}

type WaybillsAPI struct {
	svc     Service
	printer Printer
}

func New(svc Service, printer Printer) *WaybillsAPI {
	return &WaybillsAPI{svc: svc, printer: printer}
}

func (a *WaybillsAPI) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Route("/waybills", func(r chi.Router) {
		r.Post("/", a.createWaybill)
		r.Get("/{id}", a.getWaybill)
		r.Post("/{id}/issue", a.lifecycle(a.svc.Issue))
		r.Post("/{id}/amend", a.lifecycle(a.svc.Amend))
		r.Post("/{id}/withdraw", a.lifecycle(a.svc.Withdraw))
		r.Get("/{id}/print", a.printLink)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/not-received", a.report(a.svc.NotReceived))
		r.Get("/awaiting-redelivery", a.report(a.svc.AwaitingRedeliverySum))
		r.Get("/earnings", a.earnings)
	})

	return r
}

type createWaybillRequest struct {
	Sender        string `json:"sender"`
	SenderContact string `json:"senderContact"`
	SenderCity    string `json:"senderCity"`
	SenderAddress string `json:"senderAddress"`
	SenderPhone   string `json:"senderPhone"`

	RecipientTownID      uint64 `json:"recipientTownId"`
	RecipientWarehouseID uint64 `json:"recipientWarehouseId"`
	RecipientName        string `json:"recipientName"`
	RecipientPhone       string `json:"recipientPhone"`
	RecipientType        string `json:"recipientType"`

	Description  string  `json:"description"`
	Note         string  `json:"note"`
	Weight       float64 `json:"weight"`
	Volume       float64 `json:"volume"`
	SeatsAmount  int     `json:"seatsAmount"`
	DeclaredCost float64 `json:"declaredCost"`
	CargoType    string  `json:"cargoType"`
	ServiceType  string  `json:"serviceType"`

	PayerType     string     `json:"payerType"`
	PaymentMethod string     `json:"paymentMethod"`
	PrepaidSum    float64    `json:"prepaidSum"`
	OrderDate     *time.Time `json:"orderDate,omitempty"`
	ShipDate      *time.Time `json:"shipDate,omitempty"`

	IsRedelivery        bool    `json:"isRedelivery"`
	RedeliveryPayerType string  `json:"redeliveryPayerType"`
	RedeliverySum       float64 `json:"redeliverySum"`
}

type waybillView struct {
	ID                    uint64     `json:"id"`
	CarrierRef            *string    `json:"carrierRef,omitempty"`
	DocumentNumber        *string    `json:"documentNumber,omitempty"`
	CarrierCost           *float64   `json:"carrierCost,omitempty"`
	EstimatedDeliveryDate *string    `json:"estimatedDeliveryDate,omitempty"`
	RecipientName         string     `json:"recipientName"`
	RecipientPhone        string     `json:"recipientPhone"`
	Status                string     `json:"status"`
	StatusCode            int        `json:"statusCode"`
	TrackingStatusCode    *int       `json:"trackingStatusCode,omitempty"`
	TrackingStatusAt      *time.Time `json:"trackingStatusAt,omitempty"`
	PrepaidSum            float64    `json:"prepaidSum"`
	RedeliverySum         float64    `json:"redeliverySum"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func toView(w *models.Waybill) waybillView {
	v := waybillView{
		ID:                 w.ID,
		CarrierRef:         w.CarrierRef,
		DocumentNumber:     w.DocumentNumber,
		CarrierCost:        w.CarrierCost,
		RecipientName:      w.RecipientName,
		RecipientPhone:     w.RecipientPhone,
		Status:             w.StatusCode.String(),
		StatusCode:         int(w.StatusCode),
		TrackingStatusCode: w.TrackingStatusCode,
		TrackingStatusAt:   w.TrackingStatusEditedAt,
		PrepaidSum:         w.PrepaidSum,
		RedeliverySum:      w.RedeliverySum,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
	if w.EstimatedDeliveryDate != nil {
		d := w.EstimatedDeliveryDate.Format("2006-01-02")
		v.EstimatedDeliveryDate = &d
	}
	return v
}

func (a *WaybillsAPI) createWaybill(w http.ResponseWriter, r *http.Request) {
	var req createWaybillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errors.Wrap(err, "decode body"))
		return
	}

	in := models.WaybillCreateInput{
		Sender:        req.Sender,
		SenderContact: req.SenderContact,
		SenderCity:    req.SenderCity,
		SenderAddress: req.SenderAddress,
		SenderPhone:   req.SenderPhone,

		RecipientTownID:      req.RecipientTownID,
		RecipientWarehouseID: req.RecipientWarehouseID,
		RecipientName:        req.RecipientName,
		RecipientPhone:       req.RecipientPhone,
		RecipientType:        req.RecipientType,

		Description:  req.Description,
		Note:         req.Note,
		Weight:       req.Weight,
		Volume:       req.Volume,
		SeatsAmount:  req.SeatsAmount,
		DeclaredCost: req.DeclaredCost,
		CargoType:    req.CargoType,
		ServiceType:  req.ServiceType,

		PayerType:     req.PayerType,
		PaymentMethod: req.PaymentMethod,
		PrepaidSum:    req.PrepaidSum,

		IsRedelivery:        req.IsRedelivery,
		RedeliveryPayerType: req.RedeliveryPayerType,
		RedeliverySum:       req.RedeliverySum,
	}
	if req.OrderDate != nil {
		in.OrderDate = *req.OrderDate
	}
	if req.ShipDate != nil {
		in.ShipDate = *req.ShipDate
	}

	wb, err := a.svc.CreateWaybill(r.Context(), in)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusCreated, toView(wb))
}

func (a *WaybillsAPI) getWaybill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	wb, err := a.svc.GetWaybill(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, toView(wb))
}

// lifecycle — общий обработчик issue/amend/withdraw.
func (a *WaybillsAPI) lifecycle(op func(ctx context.Context, id uint64) (carrier.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		res, err := op(r.Context(), id)
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			// Транспортный сбой до/у перевозчика.
			respondError(w, http.StatusBadGateway, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func (a *WaybillsAPI) printLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	form := printing.Form(r.URL.Query().Get("form"))
	if form == "" {
		form = printing.FormDocument
	}

	wb, err := a.svc.GetWaybill(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	link, err := a.printer.FormLink(wb, form)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": link})
}

func (a *WaybillsAPI) report(list func(ctx context.Context, phone string, limit, offset int) ([]*models.Waybill, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		items, err := list(r.Context(), q.Get("phone"), limit, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		views := make([]waybillView, 0, len(items))
		for _, it := range items {
			views = append(views, toView(it))
		}
		respondJSON(w, http.StatusOK, map[string]any{"items": views})
	}
}

func (a *WaybillsAPI) earnings(w http.ResponseWriter, r *http.Request) {
	total, err := a.svc.Earnings(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{"total": total})
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, errors.New("invalid waybill id"))
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, err error) {
	respondJSON(w, code, map[string]string{"error": err.Error()})
}
