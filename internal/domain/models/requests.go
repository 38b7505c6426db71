package models

import "encoding/json"

// Requests for the HTTP and Kafka entry points.

type AnalyzeRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1d" validate:"oneof=1d 60m 30m 15m 5m 1m"`
	Bars      int    `query:"bars" json:"bars" default:"120" validate:"gte=2,lte=5000"`
	End       string `query:"end" json:"end"`
}

type ProfileRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1d" validate:"oneof=1d 60m 30m 15m 5m 1m"`
	Bars      int    `query:"bars" json:"bars" default:"120" validate:"gte=2,lte=5000"`
	FlowDays  int    `query:"flow_days" json:"flow_days" default:"20" validate:"gte=1,lte=250"`
}

// ScanRequestBody carries params as raw JSON so that the fields it names
// overlay the configured params and everything else is inherited. A weights
// object replaces the whole weight set.
type ScanRequestBody struct {
	Symbols     []string        `json:"symbols" validate:"required,min=1,max=5000,dive,required,max=32"`
	MinScore    float64         `json:"min_score" validate:"gte=0,lte=100"`
	Concurrency int             `json:"concurrency" validate:"gte=0,lte=256"`
	Timeframe   string          `json:"timeframe" default:"1d" validate:"oneof=1d 60m 30m 15m 5m 1m"`
	Bars        int             `json:"bars" default:"120" validate:"gte=2,lte=5000"`
	End         string          `json:"end"`
	Params      json.RawMessage `json:"params,omitempty"`
}

type ScanIDRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}
