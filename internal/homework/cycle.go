package homework

import (
	"context"
)

// Fetcher returns the raw API payload for updates since the given epoch second.
type Fetcher interface {
	Fetch(ctx context.Context, since int64) ([]byte, error)
}

// Result is the outcome of one successful cycle.
type Result struct {
	Text      string // candidate notification
	Watermark int64  // cursor for the next window
	Records   int    // number of records in the window
	Status    string // status of the first record, empty when none
}

// Cycle runs one fetch-validate-extract pass. It keeps no state.
type Cycle struct {
	fetcher Fetcher
	catalog Catalog
}

func NewCycle(fetcher Fetcher, catalog Catalog) *Cycle {
	return &Cycle{fetcher: fetcher, catalog: catalog}
}

// Run fetches the window starting at watermark. Only the first record is
// turned into a notification; the API lists the most recent update first.
func (c *Cycle) Run(ctx context.Context, watermark int64) (Result, error) {
	payload, err := c.fetcher.Fetch(ctx, watermark)
	if err != nil {
		return Result{}, &StageError{Stage: StageFetch, Err: &FetchError{Cause: err}}
	}

	resp, err := ValidateResponse(payload)
	if err != nil {
		return Result{}, &StageError{Stage: StageValidate, Err: err}
	}

	res := Result{
		Text:      NothingPending,
		Watermark: resp.NextWatermark(watermark),
		Records:   len(resp.Homeworks),
	}
	if len(resp.Homeworks) == 0 {
		return res, nil
	}

	rec, err := ParseRecord(c.catalog, resp.Homeworks[0])
	if err == nil {
		res.Text, err = Render(c.catalog, rec)
	}
	if err != nil {
		return Result{}, &StageError{Stage: StageExtract, Err: err}
	}
	res.Status = rec.Status
	return res, nil
}
