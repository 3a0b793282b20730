package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/lms"
)

type catalogApi struct {
	svc *lms.Service
}

// registerCatalogAPI registers the public course catalog.
func registerCatalogAPI(g *echo.Group, deps ServerDeps) {
	api := catalogApi{svc: deps.LMSSvc}

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.GET("/:id/reviews", api.queryReviews)
}

func (api *catalogApi) query(ctx echo.Context) error {
	var filter lms.CourseFilter
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		Strings("category", &filter.Categories).
		Strings("level", &filter.Levels).
		BindError()
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Catalog(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying catalog")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *catalogApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id", lms.KindCourse)
	if err != nil {
		return err
	}
	c, err := api.svc.PublishedCourse(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *catalogApi) queryReviews(ctx echo.Context) error {
	id, err := pathID(ctx, "id", lms.KindCourse)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	if _, err = api.svc.PublishedCourse(reqCtx, id); err != nil {
		return err
	}
	reviews, err := api.svc.CourseReviews(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, "querying reviews")
	}
	return ctx.JSON(http.StatusOK, reviews)
}
