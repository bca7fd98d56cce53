package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Document paths used by the two query call sites. The messages listing
// filters and sorts on content.publishedAt while the device detail listing
// ranges over content.values.publishedAt; both paths exist in stored
// documents and are intentionally kept distinct.
const (
	DateFieldMessage = "content.publishedAt"
	DateFieldValues  = "content.values.publishedAt"
)

const (
	defaultPageSize = 10
	devEUIField     = "content.values.devEUI"
)

// MessageQuery is the transient per-request query consumed once by the
// find/count operations. Zero-valued optional fields contribute no predicate.
type MessageQuery struct {
	RoutingKey string
	DevEUI     string
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortDesc   bool
	// DateField selects which document path the StartDate/EndDate range
	// applies to. Defaults to DateFieldMessage.
	DateField string
}

// Filter builds the logical AND of the present predicates. An empty query
// yields an empty filter, which matches every document.
func (q MessageQuery) Filter() bson.D {
	filter := bson.D{}
	if q.RoutingKey != "" {
		filter = append(filter, bson.E{Key: "routing_key", Value: q.RoutingKey})
	}
	if q.DevEUI != "" {
		filter = append(filter, bson.E{Key: devEUIField, Value: q.DevEUI})
	}

	dateRange := bson.D{}
	if q.StartDate != nil {
		dateRange = append(dateRange, bson.E{Key: "$gte", Value: *q.StartDate})
	}
	if q.EndDate != nil {
		dateRange = append(dateRange, bson.E{Key: "$lte", Value: *q.EndDate})
	}
	if len(dateRange) > 0 {
		filter = append(filter, bson.E{Key: q.dateField(), Value: dateRange})
	}
	return filter
}

// Sort returns the single field/direction sort document.
func (q MessageQuery) Sort() bson.D {
	field := q.SortBy
	if field == "" {
		field = DateFieldMessage
	}
	order := 1
	if q.SortDesc {
		order = -1
	}
	return bson.D{{Key: field, Value: order}}
}

func (q MessageQuery) dateField() string {
	if q.DateField == "" {
		return DateFieldMessage
	}
	return q.DateField
}

func (q MessageQuery) page() int {
	if q.Page < 1 {
		return 1
	}
	return q.Page
}

func (q MessageQuery) pageSize() int {
	if q.PageSize < 1 {
		return defaultPageSize
	}
	return q.PageSize
}

// Skip is the pagination offset; pages are 1-indexed.
func (q MessageQuery) Skip() int64 {
	return int64(q.page()-1) * int64(q.pageSize())
}

// TotalPages is ceil(total/pageSize), 0 when nothing matched.
func TotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize < 1 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
