package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	TargetID      string `query:"target_id" json:"target_id" validate:"required"`
	Horizon       string `query:"horizon" json:"horizon" default:"7d" validate:"oneof=1d 3d 7d 30d"`
	AsOf          string `query:"as_of" json:"as_of"`
	AnchorEventID string `query:"anchor_event_id" json:"anchor_event_id"`
	K             int    `query:"k" json:"k" default:"50" validate:"gte=1,lte=200"`
}

type RegimeRequest struct {
	TargetID string `query:"target_id" json:"target_id" validate:"required"`
	Horizon  string `query:"horizon" json:"horizon" default:"1d" validate:"oneof=1d 3d 7d 30d"`
	AsOf     string `query:"as_of" json:"as_of"`
	N        int    `query:"n" json:"n" default:"20" validate:"gte=2,lte=500"`
}
