package domain

// ChangeSummary 一次对账的结果计数，按条目累计。
type ChangeSummary struct {
	CreatedTypes   int `json:"created_types"`
	MatchedTypes   int `json:"matched_types"`
	CreatedTariffs int `json:"created_tariffs"`
	UpdatedTariffs int `json:"updated_tariffs"`
}
