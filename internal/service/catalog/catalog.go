package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/models"
	"github.com/Skotchmaster/stone_shop/internal/mykafka"
	"github.com/Skotchmaster/stone_shop/internal/repo"
	"github.com/Skotchmaster/stone_shop/internal/service/search"
	"github.com/Skotchmaster/stone_shop/internal/storage"
	"github.com/Skotchmaster/stone_shop/internal/util"
	"github.com/Skotchmaster/stone_shop/internal/validate"
)

// MaxUploads is the main image plus every side image slot.
const MaxUploads = 1 + models.MaxSideImages

// Upload is one submitted image file. Slot 0 is the main image.
type Upload struct {
	Filename string
	Content  io.Reader
}

type ImageStore interface {
	Save(filename string, r io.Reader) (string, error)
	Remove(key string) error
}

type CatalogService struct {
	Repo     *repo.GormRepo
	Images   ImageStore
	Searcher search.Searcher
	Indexer  search.Indexer
	Events   mykafka.Publisher
}

type CreateProductInput struct {
	Name          string  `validate:"required,max=250"`
	Price         float64 `validate:"gt=0"`
	Description   string  `validate:"required"`
	Specification string  `validate:"required"`
	Images        []*Upload
}

// EditProductInput holds only the fields being changed. A nil entry in Images keeps that slot.
type EditProductInput struct {
	Name          *string
	Price         *float64
	Description   *string
	Specification *string
	Images        []*Upload
}

func checkUploads(images []*Upload) error {
	if len(images) > MaxUploads {
		return fmt.Errorf("%w: at most %d images", apperr.ErrValidation, MaxUploads)
	}
	for _, up := range images {
		if up == nil {
			continue
		}
		if !storage.AllowedImage(up.Filename) {
			return fmt.Errorf("%w: %q is not a png, jpg or jpeg file", apperr.ErrValidation, up.Filename)
		}
	}
	return nil
}

// saveUploads stores every non-nil upload and returns the keys by slot.
// On failure the files already written are removed.
func (s *CatalogService) saveUploads(images []*Upload) ([]string, error) {
	keys := make([]string, len(images))
	for i, up := range images {
		if up == nil {
			continue
		}
		key, err := s.Images.Save(up.Filename, up.Content)
		if err != nil {
			s.removeFiles(context.Background(), keys...)
			if errors.Is(err, storage.ErrExtension) {
				return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
			}
			return nil, fmt.Errorf("save image: %w", err)
		}
		keys[i] = key
	}
	return keys, nil
}

func (s *CatalogService) removeFiles(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if err := s.Images.Remove(k); err != nil {
			logging.FromContext(ctx).Warn("image_remove_failed", "key", k, "error", err)
		}
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.create")

	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if len(in.Images) == 0 || in.Images[0] == nil {
		return nil, fmt.Errorf("%w: a main image is required", apperr.ErrValidation)
	}
	if err := checkUploads(in.Images); err != nil {
		return nil, err
	}

	taken, err := s.Repo.ProductNameTaken(ctx, in.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: a product named %q already exists", apperr.ErrConflict, in.Name)
	}

	keys, err := s.saveUploads(in.Images)
	if err != nil {
		l.Error("create_product_failed", "status", 500, "reason", "cannot store images", "error", err)
		return nil, err
	}

	prod := &models.Product{
		Name:          in.Name,
		Price:         in.Price,
		MainImage:     keys[0],
		MainImageName: in.Images[0].Filename,
		Description:   in.Description,
		Specification: in.Specification,
	}
	for slot := 1; slot < len(keys); slot++ {
		if keys[slot] == "" {
			continue
		}
		prod.Images = append(prod.Images, models.ProductImage{
			Position: slot,
			Image:    keys[slot],
			Name:     in.Images[slot].Filename,
		})
	}

	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		s.removeFiles(ctx, keys...)
		if apperr.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a product named %q already exists", apperr.ErrConflict, in.Name)
		}
		l.Error("create_product_failed", "status", 500, "error", err)
		return nil, err
	}

	s.afterWrite(ctx, "product_created", prod)
	l.Info("product_created", "product_id", prod.ID)
	return prod, nil
}

func (s *CatalogService) EditProduct(ctx context.Context, id uint, in EditProductInput) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.edit", "product_id", id)

	prod, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkUploads(in.Images); err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", apperr.ErrValidation)
		}
		taken, err := s.Repo.ProductNameTaken(ctx, name, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: a product named %q already exists", apperr.ErrConflict, name)
		}
		prod.Name = name
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, fmt.Errorf("%w: price must be greater than 0", apperr.ErrValidation)
		}
		prod.Price = *in.Price
	}
	if in.Description != nil {
		prod.Description = *in.Description
	}
	if in.Specification != nil {
		prod.Specification = *in.Specification
	}

	keys, err := s.saveUploads(in.Images)
	if err != nil {
		l.Error("edit_product_failed", "status", 500, "reason", "cannot store images", "error", err)
		return nil, err
	}

	var replaced []string
	if len(keys) > 0 && keys[0] != "" {
		replaced = append(replaced, prod.MainImage)
		prod.MainImage = keys[0]
		prod.MainImageName = in.Images[0].Filename
	}

	existing := make(map[int]string, len(prod.Images))
	for _, img := range prod.Images {
		existing[img.Position] = img.Image
	}
	var side []models.ProductImage
	for slot := 1; slot < len(keys); slot++ {
		if keys[slot] == "" {
			continue
		}
		if old, ok := existing[slot]; ok {
			replaced = append(replaced, old)
		}
		side = append(side, models.ProductImage{Position: slot, Image: keys[slot], Name: in.Images[slot].Filename})
	}

	if err := s.Repo.UpdateProduct(ctx, prod, side); err != nil {
		s.removeFiles(ctx, keys...)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("%w: product %d", apperr.ErrNotFound, id)
		case apperr.IsUniqueViolation(err):
			return nil, fmt.Errorf("%w: a product named %q already exists", apperr.ErrConflict, prod.Name)
		}
		l.Error("edit_product_failed", "status", 500, "error", err)
		return nil, err
	}
	s.removeFiles(ctx, replaced...)

	updated, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, "product_updated", updated)
	return updated, nil
}

// DeleteProduct removes the product's files, then its rows. Cart units that
// reference it stay and are ignored when carts are read.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	prod, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	keys := []string{prod.MainImage}
	for _, img := range prod.Images {
		keys = append(keys, img.Image)
	}
	s.removeFiles(ctx, keys...)

	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: product %d", apperr.ErrNotFound, id)
		}
		return err
	}

	if err := s.Indexer.DeleteProduct(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "product_id", id, "error", err)
	}
	ev := mykafka.NewEvent("product_deleted")
	ev.ProductID = id
	mykafka.Publish(ctx, s.Events, mykafka.TopicProduct, ev)
	return nil
}

func (s *CatalogService) afterWrite(ctx context.Context, kind string, p *models.Product) {
	if err := s.Indexer.IndexProduct(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "product_id", p.ID, "error", err)
	}
	ev := mykafka.NewEvent(kind)
	ev.ProductID = p.ID
	mykafka.Publish(ctx, s.Events, mykafka.TopicProduct, ev)
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	prod, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return prod, nil
}

type Page struct {
	Items []models.Product `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
}

func (s *CatalogService) ListProducts(ctx context.Context, page, size int) (*Page, error) {
	offset, limit := util.Calculate(page, size)
	total, items, err := s.Repo.GetProducts(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Page: offset/limit + 1, Size: limit}, nil
}

func (s *CatalogService) AllProducts(ctx context.Context) ([]models.Product, error) {
	return s.Repo.AllProducts(ctx)
}

// Search returns products whose name contains text, ignoring case.
func (s *CatalogService) Search(ctx context.Context, text string) ([]models.Product, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.Repo.AllProducts(ctx)
	}
	items, err := s.Searcher.Search(ctx, text)
	if err != nil {
		logging.FromContext(ctx).Warn("search_failed", "reason", "falling back to database", "error", err)
		return s.Repo.SearchByName(ctx, text)
	}
	return items, nil
}
