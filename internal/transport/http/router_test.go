package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/handlers"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/mail"
	"github.com/Skotchmaster/stone_shop/internal/metrics"
	authmw "github.com/Skotchmaster/stone_shop/internal/middleware/auth"
	"github.com/Skotchmaster/stone_shop/internal/models"
	"github.com/Skotchmaster/stone_shop/internal/mykafka"
	"github.com/Skotchmaster/stone_shop/internal/payment"
	"github.com/Skotchmaster/stone_shop/internal/repo"
	authsvc "github.com/Skotchmaster/stone_shop/internal/service/auth"
	cartsvc "github.com/Skotchmaster/stone_shop/internal/service/cart"
	"github.com/Skotchmaster/stone_shop/internal/service/catalog"
	"github.com/Skotchmaster/stone_shop/internal/service/checkout"
	"github.com/Skotchmaster/stone_shop/internal/service/contact"
	reviewsvc "github.com/Skotchmaster/stone_shop/internal/service/review"
	"github.com/Skotchmaster/stone_shop/internal/service/search"
	"github.com/Skotchmaster/stone_shop/internal/storage"
	"github.com/Skotchmaster/stone_shop/internal/testutil"
)

const testCSRF = "test-csrf-token"

type fakeProcessor struct {
	items []payment.LineItem
	err   error
}

func (f *fakeProcessor) CreateSession(_ context.Context, items []payment.LineItem) (string, error) {
	f.items = items
	if f.err != nil {
		return "", f.err
	}
	return "cs_test_1", nil
}

type fakeMail struct {
	sent []mail.Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type testApp struct {
	e    *echo.Echo
	db   *gorm.DB
	proc *fakeProcessor
	mail *fakeMail
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.NewDB(t)
	r := repo.New(db)
	images, err := storage.NewImageStore(t.TempDir())
	require.NoError(t, err)

	events := mykafka.Nop{}
	authSvc := &authsvc.AuthService{Repo: r, JWTSecret: []byte("jwt"), RefreshSecret: []byte("refresh"), Events: events}
	cart := &cartsvc.CartService{Repo: r, Events: events}
	proc := &fakeProcessor{}
	fm := &fakeMail{}
	m := metrics.New("stone_shop_test")
	base := handlers.Base{Cart: cart}

	e := echo.New()
	Register(e, &Deps{
		Repo:      r,
		Logger:    logging.Discard(),
		Metrics:   m,
		Session:   &authmw.SessionMiddleware{Auth: authSvc, JWTSecret: authSvc.JWTSecret},
		UploadDir: images.Dir,
		AuthHandler: &handlers.AuthHandler{Base: base, Auth: authSvc, Metrics: m},
		ProductHandler: &handlers.ProductHandler{
			Base: base,
			Catalog: &catalog.CatalogService{
				Repo: r, Images: images, Searcher: &search.DBSearcher{Repo: r},
				Indexer: search.NopIndexer{}, Events: events,
			},
			Reviews: &reviewsvc.ReviewService{Repo: r, Events: events},
		},
		CartHandler: &handlers.CartHandler{Base: base, Metrics: m},
		CheckoutHandler: &handlers.CheckoutHandler{
			Base:     base,
			Checkout: &checkout.CheckoutService{Cart: cart, Processor: proc, Currency: "usd", Events: events},
			Metrics:  m,
		},
		ContactHandler: &handlers.ContactHandler{
			Base:    base,
			Contact: &contact.ContactService{Repo: r, Mail: fm, ShopName: "Sticks & Stones", Operator: "ops@shop.test", NewsletterRequiresLogin: true},
			Metrics: m,
		},
		PageHandler: &handlers.PageHandler{Base: base},
	})
	return &testApp{e: e, db: db, proc: proc, mail: fm}
}

// browser keeps cookies between requests and always passes the CSRF check.
type browser struct {
	app *testApp
	jar map[string]string
}

func (a *testApp) browser() *browser {
	return &browser{app: a, jar: map[string]string{"XSRF-TOKEN": testCSRF}}
}

func (b *browser) send(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("X-CSRF-Token", testCSRF)
	for k, v := range b.jar {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}
	rec := httptest.NewRecorder()
	b.app.e.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(b.jar, ck.Name)
		} else {
			b.jar[ck.Name] = ck.Value
		}
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.send(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return b.send(req)
}

func (b *browser) register(t *testing.T, email string) {
	t.Helper()
	rec := b.post("/register", url.Values{
		"name": {"Name"}, "email": {email}, "password": {"pw"}, "confirm_password": {"pw"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()

	assert.Equal(t, http.StatusOK, b.get("/health/live").Code)
	assert.Equal(t, http.StatusOK, b.get("/health/ready").Code)

	b.register(t, "a@x.io")
	rec := b.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shop_registrations_total 1")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	app.browser().register(t, "dup@x.io")

	rec := app.browser().post("/register", url.Values{
		"name": {"Other"}, "email": {"DUP@x.io"}, "password": {"pw"}, "confirm_password": {"pw"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/register", rec.Header().Get(echo.HeaderLocation))

	var n int64
	require.NoError(t, app.db.Model(&models.User{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestLogin_FlashOnFailure(t *testing.T) {
	app := newTestApp(t)
	app.browser().register(t, "a@x.io")

	b := app.browser()
	rec := b.post("/login", url.Values{"email": {"a@x.io"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	doc := decode(t, b.get("/login"))
	assert.Equal(t, "Invalid email or password, please try again.", doc["flash"])
	assert.Equal(t, false, doc["logged_in"])

	rec = b.post("/login", url.Values{"email": {"a@x.io"}, "password": {"pw"}})
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, true, decode(t, b.get("/"))["logged_in"])

	b.get("/logout")
	assert.Equal(t, false, decode(t, b.get("/"))["logged_in"])
}

func TestLogout_AfterAccessExpired(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "a@x.io")
	delete(b.jar, "accessToken")

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	rec := b.send(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	var rotated []string
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "refreshToken" && ck.MaxAge >= 0 && ck.Value != "" {
			rotated = append(rotated, ck.Value)
		}
	}
	require.NotEmpty(t, rotated)

	var live int64
	require.NoError(t, app.db.Model(&models.RefreshToken{}).Where("revoked = ?", false).Count(&live).Error)
	assert.EqualValues(t, 0, live)

	for _, tok := range rotated {
		replay := app.browser()
		replay.jar["refreshToken"] = tok
		assert.Equal(t, false, decode(t, replay.get("/"))["logged_in"])
	}
}

func TestAdminRoutes_ForbiddenForEveryoneElse(t *testing.T) {
	app := newTestApp(t)
	admin := app.browser()
	admin.register(t, "owner@x.io")
	user := app.browser()
	user.register(t, "user@x.io")
	anon := app.browser()
	p := testutil.SeedProduct(t, app.db, "Onyx", 10)

	for _, path := range []string{"/add", "/edit/1", "/delete/1", "/delete/1/1", "/admin/products/export"} {
		assert.Equal(t, http.StatusForbidden, anon.get(path).Code, path)
		assert.Equal(t, http.StatusForbidden, user.get(path).Code, path)
	}
	assert.Equal(t, http.StatusForbidden, anon.post("/add", url.Values{"name": {"x"}}).Code)

	rec := admin.get("/admin/products/export")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "products.xlsx")

	rec = admin.get("/delete/1")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.ErrorIs(t, app.db.First(&models.Product{}, p.ID).Error, gorm.ErrRecordNotFound)
}

func TestCart_AddSummarizeRemove(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "a@x.io")
	p := testutil.SeedProduct(t, app.db, "Quartz", 12.5)

	rec := b.get("/cart-add/1/cart/3")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get(echo.HeaderLocation))

	doc := decode(t, b.get("/cart"))
	lines := doc["cart"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.EqualValues(t, p.ID, line["product_id"])
	assert.EqualValues(t, 3, line["count"])
	assert.EqualValues(t, 37.5, line["price"])
	assert.EqualValues(t, 3, doc["item_num"])

	for i := 0; i < 4; i++ {
		rec := b.get("/cart-delete/Quartz")
		require.Equal(t, http.StatusSeeOther, rec.Code)
	}
	doc = decode(t, b.get("/cart"))
	assert.Empty(t, doc["cart"])
	assert.EqualValues(t, 0, doc["item_num"])

	b.get("/cart-add/1/single/2")
	b.get("/cart-delete-all/Quartz")
	assert.Empty(t, decode(t, b.get("/cart"))["cart"])
}

func TestCart_AnonymousIsSentBack(t *testing.T) {
	app := newTestApp(t)
	testutil.SeedProduct(t, app.db, "Quartz", 1)

	rec := app.browser().get("/cart-add/1/home/1")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	req := httptest.NewRequest(http.MethodGet, "/cart-add/1/single/1", nil)
	req.Header.Set("Referer", "http://example.com/single/1")
	rec = app.browser().send(req)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
}

func TestDeleteProduct_CartsNoLongerShowIt(t *testing.T) {
	app := newTestApp(t)
	admin := app.browser()
	admin.register(t, "owner@x.io")
	shopper := app.browser()
	shopper.register(t, "s@x.io")

	p := testutil.SeedProduct(t, app.db, "Jade", 4)
	keep := testutil.SeedProduct(t, app.db, "Opal", 2)
	require.NoError(t, app.db.Create(&models.ProductImage{ProductID: p.ID, Position: 1, Image: "side.png"}).Error)

	shopper.get("/cart-add/1/cart/2")
	shopper.get("/cart-add/2/cart/1")

	require.Equal(t, http.StatusSeeOther, admin.get("/delete/1").Code)

	var imgs int64
	require.NoError(t, app.db.Model(&models.ProductImage{}).Where("product_id = ?", p.ID).Count(&imgs).Error)
	assert.Zero(t, imgs)

	lines := decode(t, shopper.get("/cart"))["cart"].([]any)
	require.Len(t, lines, 1)
	assert.EqualValues(t, keep.ID, lines[0].(map[string]any)["product_id"])
}

func TestCheckout(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "a@x.io")
	testutil.SeedProduct(t, app.db, "A", 10)
	testutil.SeedProduct(t, app.db, "B", 5)
	b.get("/cart-add/1/cart/2")
	b.get("/cart-add/2/cart/1")

	rec := b.post("/create-checkout-session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cs_test_1", decode(t, rec)["id"])
	assert.Equal(t, []payment.LineItem{
		{Name: "A", Currency: "usd", UnitAmount: 1000, Quantity: 2},
		{Name: "B", Currency: "usd", UnitAmount: 500, Quantity: 1},
	}, app.proc.items)

	app.proc.err = &apperr.PaymentError{Message: "Your card was declined."}
	rec = b.post("/create-checkout-session", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Your card was declined.", decode(t, rec)["error"])

	assert.Equal(t, http.StatusOK, b.get("/success").Code)
	assert.Equal(t, http.StatusSeeOther, app.browser().get("/success").Code)
}

func TestReviews(t *testing.T) {
	app := newTestApp(t)
	admin := app.browser()
	admin.register(t, "owner@x.io")
	b := app.browser()
	b.register(t, "a@x.io")
	testutil.SeedProduct(t, app.db, "Agate", 3)

	doc := decode(t, b.get("/single/1"))
	assert.EqualValues(t, reviewsvc.NoRating, doc["rating"])
	assert.Equal(t, false, doc["is_update"])

	rec := b.post("/single/1", url.Values{"review_text": {"nice"}, "product_rating": {"⭐⭐⭐⭐"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/single/1", rec.Header().Get(echo.HeaderLocation))
	admin.post("/single/1", url.Values{"review_text": {"meh"}, "product_rating": {"1"}})
	b.post("/single/1", url.Values{"review_text": {"great"}, "product_rating": {"5"}})

	doc = decode(t, b.get("/single/1"))
	assert.EqualValues(t, 3, doc["rating"])
	assert.Equal(t, true, doc["is_update"])
	require.Len(t, doc["reviews"], 2)
	display := map[string]any{}
	for _, r := range doc["reviews"].([]any) {
		rv := r.(map[string]any)
		display[rv["text"].(string)] = rv["stars_display"]
	}
	assert.Equal(t, "⭐⭐⭐⭐⭐", display["great"])
	assert.Equal(t, "⭐", display["meh"])

	rec = b.post("/single/1", url.Values{"review_text": {"x"}, "product_rating": {"9"}})
	assert.Equal(t, "/single/1", rec.Header().Get(echo.HeaderLocation))

	var rev models.Review
	require.NoError(t, app.db.Where("text = ?", "meh").First(&rev).Error)
	rec = admin.get(fmt.Sprintf("/delete/1/%d", rev.ID))
	assert.Equal(t, "/single/1", rec.Header().Get(echo.HeaderLocation))
	assert.Len(t, decode(t, b.get("/single/1"))["reviews"], 1)
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	assert.Equal(t, http.StatusNotFound, b.get("/single/42").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/single/abc").Code)
}

func TestContact(t *testing.T) {
	app := newTestApp(t)
	msg := url.Values{"subject": {"Hi"}, "fname": {"Ada"}, "lname": {"L"}, "email": {"ada@x.io"}, "message": {"hello"}}

	anon := app.browser()
	rec := anon.post("/contact", msg)
	assert.Equal(t, "/contact", rec.Header().Get(echo.HeaderLocation))
	assert.Empty(t, app.mail.sent)

	b := app.browser()
	b.register(t, "a@x.io")
	require.Equal(t, http.StatusSeeOther, b.post("/contact", msg).Code)
	require.Len(t, app.mail.sent, 1)
	assert.Equal(t, "Sticks & Stones | Hi", app.mail.sent[0].Subject)
	assert.Equal(t, "ops@shop.test", app.mail.sent[0].To)

	app.mail.err = errors.New("smtp down")
	rec = b.post("/contact", msg)
	assert.Equal(t, "/contact", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Sorry, your message could not be sent. Please try again later.", decode(t, b.get("/contact"))["flash"])

	b.post("/contact", url.Values{"news_email": {"news@x.io"}})
	var subs int64
	require.NoError(t, app.db.Model(&models.NewsletterSubscription{}).Count(&subs).Error)
	assert.EqualValues(t, 1, subs)
}

func TestAddProduct_Multipart(t *testing.T) {
	app := newTestApp(t)
	admin := app.browser()
	admin.register(t, "owner@x.io")

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range map[string]string{"name": "Ruby", "price": "19.99", "desc": "red", "specs": "3cm"} {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range []string{"file0", "file2"} {
		fw, err := w.CreateFormFile(f, f+".PNG")
		require.NoError(t, err)
		_, err = io.WriteString(fw, "png-bytes")
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/add", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := admin.send(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	var p models.Product
	require.NoError(t, app.db.Preload("Images").Where("name = ?", "Ruby").First(&p).Error)
	assert.Equal(t, 19.99, p.Price)
	require.Len(t, p.Images, 1)
	assert.Equal(t, 2, p.Images[0].Position)

	assert.Equal(t, http.StatusOK, admin.get("/static/images/"+p.MainImage).Code)

	doc := decode(t, app.browser().get("/products?page=1&size=5"))
	assert.EqualValues(t, 1, doc["total"])
}

func TestSearch(t *testing.T) {
	app := newTestApp(t)
	testutil.SeedProduct(t, app.db, "Blue Lace Agate", 1)
	testutil.SeedProduct(t, app.db, "Obsidian", 1)

	doc := decode(t, app.browser().post("/search", url.Values{"search_text": {"agate"}}))
	items := doc["products"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Blue Lace Agate", items[0].(map[string]any)["name"])
}
