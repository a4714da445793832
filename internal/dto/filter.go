package dto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/pkg/errorbank"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OrderFilter is the explicit, validated set of supported list filters.
// Query strings are parsed into this struct at the boundary; nothing else
// ever reaches the repository's query builder.
type OrderFilter struct {
	Status *entity.Status
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

// ParseOrderFilter validates raw query parameters into an OrderFilter.
// Empty strings mean "not supplied". Failures report the offending field.
func ParseOrderFilter(status, from, to, page, limit string) (OrderFilter, error) {
	f := OrderFilter{Page: 1, Limit: defaultPageSize}

	if status != "" {
		st := entity.Status(status)
		if !st.Valid() {
			return OrderFilter{}, errorbank.BadRequest(
				fmt.Sprintf("unknown status %q", status),
				errorbank.WithDetail("field", "status"),
			)
		}
		f.Status = &st
	}

	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return OrderFilter{}, errorbank.BadRequest("from must be an RFC3339 timestamp", errorbank.WithDetail("field", "from"))
		}
		f.From = &t
	}

	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return OrderFilter{}, errorbank.BadRequest("to must be an RFC3339 timestamp", errorbank.WithDetail("field", "to"))
		}
		f.To = &t
	}

	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return OrderFilter{}, errorbank.BadRequest("date range is inverted", errorbank.WithDetails(map[string]any{
			"from": f.From.Format(time.RFC3339),
			"to":   f.To.Format(time.RFC3339),
		}))
	}

	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return OrderFilter{}, errorbank.BadRequest("page must be a positive integer", errorbank.WithDetail("field", "page"))
		}
		f.Page = n
	}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > maxPageSize {
			return OrderFilter{}, errorbank.BadRequest(
				fmt.Sprintf("limit must be between 1 and %d", maxPageSize),
				errorbank.WithDetail("field", "limit"),
			)
		}
		f.Limit = n
	}

	return f, nil
}

// Offset converts page/limit into a row offset.
func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
