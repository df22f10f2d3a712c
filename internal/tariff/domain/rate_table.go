package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// RateEntry 费率表中的一条 {cargo_type, rate}。
type RateEntry struct {
	CargoType string
	Rate      decimal.Decimal
}

// DateRates 某日期下的费率列表。
type DateRates struct {
	Date    string
	Entries []RateEntry
}

// RateTable 批量费率表，保留 JSON 中日期键的出现顺序。
type RateTable struct {
	Groups []DateRates
}

// ValidatedGroup 校验后的日期分组。
type ValidatedGroup struct {
	Date    time.Time
	Raw     string
	Entries []RateEntry
}

type rawRateEntry struct {
	CargoType *string          `json:"cargo_type"`
	Rate      *decimal.Decimal `json:"rate"`
}

// ParseRateTable 从 JSON 读取费率表。
func ParseRateTable(r io.Reader) (RateTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return RateTable{}, fmt.Errorf("read rate table: %w", err)
	}
	var t RateTable
	if err := json.Unmarshal(data, &t); err != nil {
		var rerr *ReconcileError
		if errors.As(err, &rerr) {
			return RateTable{}, rerr
		}
		return RateTable{}, &ReconcileError{Index: -1, Err: fmt.Errorf("%w: malformed rate table: %v", ErrValidation, err)}
	}
	return t, nil
}

// UnmarshalJSON 逐个读取顶层键以保留顺序。
func (t *RateTable) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return &ReconcileError{Index: -1, Err: fmt.Errorf("%w: malformed rate table: %v", ErrValidation, err)}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return &ReconcileError{Index: -1, Err: fmt.Errorf("%w: rate table must be a JSON object keyed by date", ErrValidation)}
	}

	groups := make([]DateRates, 0)
	seen := make(map[string]struct{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return &ReconcileError{Index: -1, Err: fmt.Errorf("%w: malformed rate table: %v", ErrValidation, err)}
		}
		date, _ := keyTok.(string)
		if _, dup := seen[date]; dup {
			return &ReconcileError{Date: date, Index: -1, Err: fmt.Errorf("%w: duplicate date key", ErrValidation)}
		}
		seen[date] = struct{}{}

		var raw []rawRateEntry
		if err := dec.Decode(&raw); err != nil {
			return &ReconcileError{Date: date, Index: -1, Err: fmt.Errorf("%w: entries must be a list of {cargo_type, rate}: %v", ErrValidation, err)}
		}

		entries := make([]RateEntry, 0, len(raw))
		for i, r := range raw {
			if r.CargoType == nil {
				return &ReconcileError{Date: date, Index: i, Err: fmt.Errorf("%w: cargo_type is required", ErrValidation)}
			}
			if r.Rate == nil {
				return &ReconcileError{Date: date, CargoType: *r.CargoType, Index: i, Err: fmt.Errorf("%w: rate is required", ErrValidation)}
			}
			entries = append(entries, RateEntry{CargoType: *r.CargoType, Rate: *r.Rate})
		}
		groups = append(groups, DateRates{Date: date, Entries: entries})
	}

	if _, err := dec.Token(); err != nil {
		return &ReconcileError{Index: -1, Err: fmt.Errorf("%w: malformed rate table: %v", ErrValidation, err)}
	}
	t.Groups = groups
	return nil
}

// Validate 在任何写入之前检查整张表，返回第一个违规条目。
// 同一日期出现多次时整表拒绝。
func (t RateTable) Validate() ([]ValidatedGroup, error) {
	out := make([]ValidatedGroup, 0, len(t.Groups))
	seen := make(map[time.Time]struct{}, len(t.Groups))
	for _, g := range t.Groups {
		date, err := ParseDate(g.Date)
		if err != nil {
			return nil, &ReconcileError{Date: g.Date, Index: -1, Err: err}
		}
		if _, dup := seen[date]; dup {
			return nil, &ReconcileError{Date: g.Date, Index: -1, Err: fmt.Errorf("%w: duplicate date key", ErrValidation)}
		}
		seen[date] = struct{}{}
		for i, e := range g.Entries {
			if e.CargoType == "" {
				return nil, &ReconcileError{Date: g.Date, CargoType: e.CargoType, Index: i, Err: fmt.Errorf("%w: cargo_type is required", ErrValidation)}
			}
			if err := ValidateRate(e.Rate); err != nil {
				return nil, &ReconcileError{Date: g.Date, CargoType: e.CargoType, Index: i, Err: err}
			}
		}
		out = append(out, ValidatedGroup{Date: date, Raw: g.Date, Entries: g.Entries})
	}
	return out, nil
}

// Len 条目总数。
func (t RateTable) Len() int {
	n := 0
	for _, g := range t.Groups {
		n += len(g.Entries)
	}
	return n
}
