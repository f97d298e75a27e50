package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/models"
	"github.com/Skotchmaster/stone_shop/internal/mykafka"
	"github.com/Skotchmaster/stone_shop/internal/repo"
	"github.com/Skotchmaster/stone_shop/internal/service/search"
	"github.com/Skotchmaster/stone_shop/internal/testutil"
)

type memStore struct {
	files   map[string]string
	next    int
	failOn  string
	removed []string
}

func newMemStore() *memStore { return &memStore{files: map[string]string{}} }

func (m *memStore) Save(filename string, r io.Reader) (string, error) {
	if filename == m.failOn {
		return "", errors.New("disk full")
	}
	b, _ := io.ReadAll(r)
	m.next++
	key := fmt.Sprintf("k%d-%s", m.next, strings.ToLower(filename))
	m.files[key] = string(b)
	return key, nil
}

func (m *memStore) Remove(key string) error {
	delete(m.files, key)
	m.removed = append(m.removed, key)
	return nil
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string) ([]models.Product, error) {
	return nil, errors.New("es down")
}

func newTestCatalog(t *testing.T) (*CatalogService, *memStore) {
	t.Helper()
	r := repo.New(testutil.NewDB(t))
	store := newMemStore()
	return &CatalogService{
		Repo:     r,
		Images:   store,
		Searcher: &search.DBSearcher{Repo: r},
		Indexer:  search.NopIndexer{},
		Events:   mykafka.Nop{},
	}, store
}

func up(name string) *Upload {
	return &Upload{Filename: name, Content: strings.NewReader("img:" + name)}
}

func createInput(name string, images ...*Upload) CreateProductInput {
	return CreateProductInput{
		Name:          name,
		Price:         19.99,
		Description:   "A fine " + name,
		Specification: "Weight: 1kg",
		Images:        images,
	}
}

func TestCreateProduct_MainAndSideImages(t *testing.T) {
	svc, store := newTestCatalog(t)

	p, err := svc.CreateProduct(context.Background(), createInput("Granite", up("main.PNG"), nil, up("side2.jpg"), up("side3.jpeg")))
	require.NoError(t, err)

	assert.Equal(t, "main.PNG", p.MainImageName)
	assert.Contains(t, store.files, p.MainImage)

	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 2)
	assert.Equal(t, 2, got.Images[0].Position)
	assert.Equal(t, 3, got.Images[1].Position)
	assert.Len(t, store.files, 3)
}

func TestCreateProduct_Validation(t *testing.T) {
	svc, store := newTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateProductInput
	}{
		{name: "no main image", in: createInput("A", nil, up("s.png"))},
		{name: "bad extension", in: createInput("A", up("m.png"), up("s.gif"))},
		{name: "too many images", in: createInput("A", up("1.png"), up("2.png"), up("3.png"), up("4.png"), up("5.png"), up("6.png"), up("7.png"))},
		{name: "zero price", in: func() CreateProductInput { in := createInput("A", up("m.png")); in.Price = 0; return in }()},
		{name: "negative price", in: func() CreateProductInput { in := createInput("A", up("m.png")); in.Price = -3; return in }()},
		{name: "empty name", in: createInput(" ", up("m.png"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tt.in)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Empty(t, store.files)
}

func TestCreateProduct_DuplicateName(t *testing.T) {
	svc, store := newTestCatalog(t)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, createInput("Granite", up("a.png")))
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, createInput("Granite", up("b.png")))
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Len(t, store.files, 1)
}

func TestCreateProduct_StorageFailureCleansUp(t *testing.T) {
	svc, store := newTestCatalog(t)
	store.failOn = "side.png"

	_, err := svc.CreateProduct(context.Background(), createInput("Granite", up("main.png"), up("side.png")))
	require.Error(t, err)
	assert.Empty(t, store.files)

	var count int64
	require.NoError(t, svc.Repo.DB.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEditProduct_ReplacesFieldsAndImages(t *testing.T) {
	svc, store := newTestCatalog(t)
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, createInput("Granite", up("main.png"), up("side1.png")))
	require.NoError(t, err)
	oldMain := p.MainImage
	oldSide := p.Images[0].Image

	name := "Polished Granite"
	price := 25.5
	edited, err := svc.EditProduct(ctx, p.ID, EditProductInput{
		Name:   &name,
		Price:  &price,
		Images: []*Upload{up("new-main.jpg"), up("new-side1.png"), nil, up("side3.png")},
	})
	require.NoError(t, err)

	assert.Equal(t, name, edited.Name)
	assert.InDelta(t, 25.5, edited.Price, 1e-9)
	assert.Equal(t, "A fine Granite", edited.Description)
	assert.Equal(t, "new-main.jpg", edited.MainImageName)
	require.Len(t, edited.Images, 2)
	assert.Equal(t, 1, edited.Images[0].Position)
	assert.Equal(t, "new-side1.png", edited.Images[0].Name)
	assert.Equal(t, 3, edited.Images[1].Position)

	assert.NotContains(t, store.files, oldMain)
	assert.NotContains(t, store.files, oldSide)
	assert.Len(t, store.files, 3)
}

func TestEditProduct_Errors(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()
	a, err := svc.CreateProduct(ctx, createInput("Agate", up("a.png")))
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, createInput("Basalt", up("b.png")))
	require.NoError(t, err)

	_, err = svc.EditProduct(ctx, 999, EditProductInput{})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	dup := "Basalt"
	_, err = svc.EditProduct(ctx, a.ID, EditProductInput{Name: &dup})
	require.ErrorIs(t, err, apperr.ErrConflict)

	neg := -1.0
	_, err = svc.EditProduct(ctx, a.ID, EditProductInput{Price: &neg})
	require.ErrorIs(t, err, apperr.ErrValidation)

	same := "Agate"
	_, err = svc.EditProduct(ctx, a.ID, EditProductInput{Name: &same})
	require.NoError(t, err)
}

func TestDeleteProduct(t *testing.T) {
	svc, store := newTestCatalog(t)
	ctx := context.Background()
	db := svc.Repo.DB
	p, err := svc.CreateProduct(ctx, createInput("Granite", up("main.png"), up("s1.png"), up("s2.png")))
	require.NoError(t, err)
	u := testutil.SeedUser(t, db, "u@x.io", models.RoleUser)
	require.NoError(t, db.Create(&models.Review{UserID: u.ID, ProductID: p.ID, Text: "nice", Stars: 4}).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: u.ID, ProductID: p.ID}).Error)

	require.NoError(t, svc.DeleteProduct(ctx, p.ID))

	assert.Empty(t, store.files)
	_, err = svc.GetProduct(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	var reviews, cart int64
	require.NoError(t, db.Model(&models.Review{}).Count(&reviews).Error)
	require.NoError(t, db.Model(&models.CartItem{}).Count(&cart).Error)
	assert.Zero(t, reviews)
	assert.EqualValues(t, 1, cart)

	require.ErrorIs(t, svc.DeleteProduct(ctx, p.ID), apperr.ErrNotFound)
}

func TestSearch(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()
	for _, n := range []string{"Granite Boulder", "Oak Stick", "Pine Stick"} {
		_, err := svc.CreateProduct(ctx, createInput(n, up(n+".png")))
		require.NoError(t, err)
	}

	got, err := svc.Search(ctx, "STICK")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	svc.Searcher = failingSearcher{}
	got, err = svc.Search(ctx, "boulder")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Granite Boulder", got[0].Name)
}

func TestListProducts_Pages(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		n := fmt.Sprintf("Stone %d", i)
		_, err := svc.CreateProduct(ctx, createInput(n, up(fmt.Sprintf("s%d.png", i))))
		require.NoError(t, err)
	}

	page, err := svc.ListProducts(ctx, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Stone 2", page.Items[0].Name)
}

func TestExportXLSX(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()
	_, err := svc.CreateProduct(ctx, createInput("Granite", up("main.png"), up("s1.png")))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportXLSX(ctx, &buf))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	rows := f.Sheets[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "Name", rows[0].Cells[1].String())
	assert.Equal(t, "Granite", rows[1].Cells[1].String())
}
