package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/flash"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/models"
	authmw "github.com/Skotchmaster/stone_shop/internal/middleware/auth"
	"github.com/Skotchmaster/stone_shop/internal/service/catalog"
	reviewsvc "github.com/Skotchmaster/stone_shop/internal/service/review"
)

type reviewView struct {
	models.Review
	StarsDisplay string `json:"stars_display"`
}

type ProductHandler struct {
	Base
	Catalog *catalog.CatalogService
	Reviews *reviewsvc.ReviewService
}

func (h *ProductHandler) Home(c echo.Context) error {
	items, err := h.Catalog.AllProducts(c.Request().Context())
	if err != nil {
		return err
	}
	return h.render(c, echo.Map{"products": items})
}

func (h *ProductHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	res, err := h.Catalog.ListProducts(c.Request().Context(), page, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ProductHandler) Search(c echo.Context) error {
	text := c.FormValue("search_text")
	items, err := h.Catalog.Search(c.Request().Context(), text)
	if err != nil {
		return err
	}
	return h.render(c, echo.Map{"products": items, "search_text": text})
}

func (h *ProductHandler) Single(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	prod, err := h.Catalog.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	reviews, err := h.Reviews.ForProduct(ctx, id)
	if err != nil {
		return err
	}
	rating, err := h.Reviews.AverageRating(ctx, id)
	if err != nil {
		return err
	}
	own, err := h.Reviews.ByUser(ctx, authmw.UserID(c), id)
	if err != nil {
		return err
	}

	views := make([]reviewView, 0, len(reviews))
	for _, r := range reviews {
		views = append(views, reviewView{Review: r, StarsDisplay: reviewsvc.Stars(r.Stars)})
	}

	return h.render(c, echo.Map{
		"product":    prod,
		"reviews":    views,
		"rating":     rating,
		"is_update":  own != nil,
		"own_review": own,
	})
}

func (h *ProductHandler) SubmitReview(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	back := fmt.Sprintf("/single/%d", id)
	flash.SetReturnTo(c, back)

	stars, err := parseRating(c.FormValue("product_rating"))
	if err != nil {
		return err
	}
	if _, err := h.Reviews.SubmitOrUpdate(c.Request().Context(), authmw.UserID(c), id, c.FormValue("review_text"), stars); err != nil {
		return err
	}
	return seeOther(c, back)
}

// parseRating accepts either a digit or a run of star glyphs.
func parseRating(v string) (int, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	if v != "" && strings.Trim(v, "⭐") == "" {
		return utf8.RuneCountInString(v), nil
	}
	return 0, fmt.Errorf("%w: choose a rating from 1 to 5 stars", apperr.ErrValidation)
}

func (h *ProductHandler) AddPage(c echo.Context) error {
	return h.render(c, echo.Map{"form": []string{"name", "price", "desc", "specs", "file0", "file1", "file2", "file3", "file4", "file5"}})
}

func (h *ProductHandler) Add(c echo.Context) error {
	flash.SetReturnTo(c, "/add")

	price, err := parsePrice(c.FormValue("price"))
	if err != nil {
		return err
	}
	uploads, closeAll, err := formUploads(c)
	if err != nil {
		return err
	}
	defer closeAll()

	prod, err := h.Catalog.CreateProduct(c.Request().Context(), catalog.CreateProductInput{
		Name:          c.FormValue("name"),
		Price:         price,
		Description:   c.FormValue("desc"),
		Specification: c.FormValue("specs"),
		Images:        uploads,
	})
	if err != nil {
		return err
	}
	flash.Set(c, fmt.Sprintf("%s was added to the shop.", prod.Name))
	return seeOther(c, "/")
}

func (h *ProductHandler) EditPage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	prod, err := h.Catalog.GetProduct(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return h.render(c, echo.Map{"product": prod})
}

func (h *ProductHandler) Edit(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	back := fmt.Sprintf("/edit/%d", id)
	flash.SetReturnTo(c, back)

	var in catalog.EditProductInput
	if v := c.FormValue("name"); v != "" {
		in.Name = &v
	}
	if v := c.FormValue("price"); v != "" {
		price, err := parsePrice(v)
		if err != nil {
			return err
		}
		in.Price = &price
	}
	if v := c.FormValue("desc"); v != "" {
		in.Description = &v
	}
	if v := c.FormValue("specs"); v != "" {
		in.Specification = &v
	}
	uploads, closeAll, err := formUploads(c)
	if err != nil {
		return err
	}
	defer closeAll()
	in.Images = uploads

	if _, err := h.Catalog.EditProduct(c.Request().Context(), id, in); err != nil {
		return err
	}
	flash.Set(c, "Product updated.")
	return seeOther(c, back)
}

func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteProduct(c.Request().Context(), id); err != nil {
		return err
	}
	return seeOther(c, "/")
}

func (h *ProductHandler) DeleteReview(c echo.Context) error {
	productID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	reviewID, err := paramID(c, "review_id")
	if err != nil {
		return err
	}
	if err := h.Reviews.Delete(c.Request().Context(), reviewID); err != nil {
		return err
	}
	return seeOther(c, fmt.Sprintf("/single/%d", productID))
}

func (h *ProductHandler) Export(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="products.xlsx"`)
	res.WriteHeader(http.StatusOK)

	if err := h.Catalog.ExportXLSX(c.Request().Context(), res); err != nil {
		// headers are gone, nothing left but the log
		logging.FromContext(c.Request().Context()).Error("export_failed", "status", 500, "error", err)
	}
	return nil
}

func parsePrice(v string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price must be a number", apperr.ErrValidation)
	}
	return price, nil
}

// formUploads collects file0..fileN by slot. Missing slots stay nil.
func formUploads(c echo.Context) ([]*catalog.Upload, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}

	uploads := make([]*catalog.Upload, catalog.MaxUploads)
	last := -1
	for i := range uploads {
		fh, err := c.FormFile(fmt.Sprintf("file%d", i))
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			continue
		}
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("%w: cannot read upload: %v", apperr.ErrValidation, err)
		}
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open upload: %w", err)
		}
		closers = append(closers, f)
		uploads[i] = &catalog.Upload{Filename: fh.Filename, Content: f}
		last = i
	}
	return uploads[:last+1], closeAll, nil
}
