package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rcliao/changelogged/internal/model"
)

// cargoPageSize is the number of rows requested per cargoquery call.
const cargoPageSize = 500

// CargoQuery holds the parameters of a cargoquery request.
type CargoQuery struct {
	Tables  string
	Fields  string
	Where   string
	OrderBy string
}

// CargoRows runs q and returns every row's "title" object, following
// offsets until a short page is returned.
func (c *Client) CargoRows(ctx context.Context, q CargoQuery) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	for offset := 0; ; offset += cargoPageSize {
		params := url.Values{
			"action": {"cargoquery"},
			"tables": {q.Tables},
			"fields": {q.Fields},
			"limit":  {strconv.Itoa(cargoPageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		if q.Where != "" {
			params.Set("where", q.Where)
		}
		if q.OrderBy != "" {
			params.Set("order_by", q.OrderBy)
		}

		var resp struct {
			CargoQuery []struct {
				Title json.RawMessage `json:"title"`
			} `json:"cargoquery"`
		}
		if err := c.call(ctx, http.MethodGet, params, &resp); err != nil {
			return nil, fmt.Errorf("cargoquery %s: %w", q.Tables, err)
		}
		for _, r := range resp.CargoQuery {
			rows = append(rows, r.Title)
		}
		if len(resp.CargoQuery) < cargoPageSize {
			return rows, nil
		}
	}
}

// Versions returns every row of the Versions table.
func (c *Client) Versions(ctx context.Context) ([]model.VersionRecord, error) {
	rows, err := c.CargoRows(ctx, CargoQuery{
		Tables:  "Versions",
		Fields:  "_pageName=version,timeindex",
		OrderBy: "_ID",
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.VersionRecord, 0, len(rows))
	for _, raw := range rows {
		var v model.VersionRecord
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode version row %s: %w", raw, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Changes returns every row of the Changes table in insertion order.
func (c *Client) Changes(ctx context.Context) ([]model.ChangeRecord, error) {
	rows, err := c.CargoRows(ctx, CargoQuery{
		Tables:  "Changes",
		Fields:  "_pageName=version,affected,changed",
		OrderBy: "_ID",
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.ChangeRecord, 0, len(rows))
	for _, raw := range rows {
		var ch model.ChangeRecord
		if err := json.Unmarshal(raw, &ch); err != nil {
			return nil, fmt.Errorf("decode change row %s: %w", raw, err)
		}
		out = append(out, ch)
	}
	return out, nil
}
