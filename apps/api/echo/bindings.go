package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/lms"
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
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// pathID reads an integer path parameter. An id that cannot exist is reported as not found.
func pathID(ctx echo.Context, name string, kind lms.ResourceKind) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id < 1 {
		return 0, core.NewNotFoundError(string(kind), 0)
	}
	return id, nil
}

// queryID reads an optional integer query parameter, 0 when absent.
func queryID(ctx echo.Context, name string) (int, error) {
	var id int
	err := echo.QueryParamsBinder(ctx).Int(name, &id).BindError()
	return id, err
}
