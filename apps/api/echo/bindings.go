package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/student"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindQueryFilter reads ?search=&course=&is_active=&created_from=&created_to= (times in RFC3339).
func bindQueryFilter(ctx echo.Context) (*student.QueryFilter, error) {
	params := ctx.QueryParams()
	filter := &student.QueryFilter{
		Search:  params.Get("search"),
		Courses: params["course"],
	}

	if val := params.Get("is_active"); val != "" {
		isActive, err := strconv.ParseBool(val)
		if err != nil {
			return nil, errors.Wrap(err, "parsing is_active")
		}
		filter.IsActive = &isActive
	}
	for param, dest := range map[string]*time.Time{"created_from": &filter.CreatedFrom, "created_to": &filter.CreatedTo} {
		if val := params.Get(param); val != "" {
			t, err := time.Parse(time.RFC3339, val)
			if err != nil {
				return nil, errors.Wrap(err, "parsing "+param)
			}
			*dest = t
		}
	}

	filter.Clean()
	return filter, nil
}
