package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"FinScore/internal/domain/models"
	"FinScore/pkg/util"
)

// ScanRequestFromBody converts a decoded request body. base supplies the
// params when the body has none.
func ScanRequestFromBody(body models.ScanRequestBody, base models.Params) (ScanRequest, error) {
	w, err := WindowFrom(body.Timeframe, body.Bars, body.End)
	if err != nil {
		return ScanRequest{}, err
	}
	params := base
	if len(body.Params) > 0 && string(body.Params) != "null" {
		if err := json.Unmarshal(body.Params, &params); err != nil {
			return ScanRequest{}, &models.ParamError{Field: "params", Reason: err.Error()}
		}
	}
	return ScanRequest{
		Symbols:     body.Symbols,
		Params:      params,
		Window:      w,
		MinScore:    body.MinScore,
		Concurrency: body.Concurrency,
	}, nil
}

// WindowFrom builds a window from request fields. An empty end means latest.
func WindowFrom(timeframe string, bars int, end string) (models.Window, error) {
	w := models.Window{Timeframe: models.Timeframe(timeframe), Bars: bars}
	if end != "" {
		t, ok := util.ParseTime(end)
		if !ok {
			return w, &models.ParamError{Field: "end", Reason: fmt.Sprintf("cannot parse time %q", end)}
		}
		if _, err := time.Parse(time.DateOnly, end); err == nil {
			// a bare date includes that day's bar
			t = util.EndOfDay(t)
		}
		w.End = t
	}
	return w, nil
}
