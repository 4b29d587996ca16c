package common

import "math"

// PaginationResult is the envelope for paginated ledger reads.
type PaginationResult struct {
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Count    int64       `json:"count"`
	Page     int         `json:"page"`
	Limit    int         `json:"limit"`
	LastPage int         `json:"lastPage"`
}

func PaginateResponse(data interface{}, total int64, page int, limit int, message string) PaginationResult {
	if message == "" {
		message = "success"
	}

	lastPage := 0
	if limit > 0 {
		lastPage = int(math.Ceil(float64(total) / float64(limit)))
	}

	return PaginationResult{
		Message:  message,
		Data:     data,
		Count:    total,
		Page:     page,
		Limit:    limit,
		LastPage: lastPage,
	}
}
