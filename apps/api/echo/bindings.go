package echoapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/coachingcentre/platform/core"
)

const (
	orderingParam = "ordering"
	pageParam     = "page"
	pageSizeParam = "page_size"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=a,-b`. Fields missing from `allowed` are dropped.
func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if _, ok := allowed[field]; !ok {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// Pagination reads `?page=n&page_size=m`. Zero values are left to the service defaults.
type Pagination struct {
	core.Page
}

func (p *Pagination) Bind(ctx echo.Context) error {
	var err error
	if v := ctx.QueryParam(pageParam); v != "" {
		if p.Number, err = strconv.Atoi(v); err != nil || p.Number < 1 {
			return core.NewValidationError(nil, core.FieldError{Field: pageParam, Error: "must be a positive integer"})
		}
	}
	if v := ctx.QueryParam(pageSizeParam); v != "" {
		if p.Size, err = strconv.Atoi(v); err != nil || p.Size < 1 {
			return core.NewValidationError(nil, core.FieldError{Field: pageSizeParam, Error: "must be a positive integer"})
		}
	}
	return nil
}

// PaginatedResponse is one page of a listing.
type PaginatedResponse struct {
	Results  interface{} `json:"results"`
	Count    int         `json:"count"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// bindStrict decodes the JSON body into `dst`, rejecting unknown fields.
func bindStrict(ctx echo.Context, dst interface{}) error {
	dec := json.NewDecoder(ctx.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}
