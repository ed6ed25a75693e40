package models

// Town — справочный населённый пункт получателя.
type Town struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	SettlementType string `json:"settlement_type"`
	Area           string `json:"area"`
	AreaRegion     string `json:"area_region"`
}

// Warehouse — отделение (пункт выдачи) перевозчика.
type Warehouse struct {
	ID         uint64 `json:"id"`
	TownID     uint64 `json:"town_id"`
	SiteNumber string `json:"site_number"`
}
