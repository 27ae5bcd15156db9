package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zyrax101/ThreadHeaven/internal/catalog"
	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

type fakeProductWriter struct {
	created     []domain.Product
	deactivated []int64
}

func (f *fakeProductWriter) CreateProduct(_ context.Context, p *domain.Product) error {
	p.ID = int64(len(f.created) + 1)
	f.created = append(f.created, *p)
	return nil
}

func (f *fakeProductWriter) DeactivateProduct(_ context.Context, id int64) error {
	if id > int64(len(f.created)) {
		return catalog.ErrProductNotFound
	}
	f.deactivated = append(f.deactivated, id)
	return nil
}

func newAdminRouter(writer *fakeProductWriter) http.Handler {
	return NewRouter(RouterConfig{
		Products: NewProductHandler(staticCatalog{}, time.Second),
		Cart:     nil,
		Checkout: nil,
		Geo:      nil,
		Admin:    NewAdminHandler(writer, time.Second),
	})
}

func TestAdminCreateProduct(t *testing.T) {
	writer := &fakeProductWriter{}
	handler := NewAdminHandler(writer, time.Second)

	body := `{"name":"Wool Cardigan","material":"lambswool","price":95,"image_url":"/img/cardigan.jpg"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.CreateProduct(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, writer.created, 1)
	assert.Equal(t, "Wool Cardigan", writer.created[0].Name)
	assert.True(t, writer.created[0].Active)
}

func TestAdminCreateProductRejectsBadInput(t *testing.T) {
	handler := NewAdminHandler(&fakeProductWriter{}, time.Second)

	for name, body := range map[string]string{
		"missing name":   `{"price":10}`,
		"negative price": `{"name":"x","price":-1}`,
		"not json":       `nope`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(body))
			rec := httptest.NewRecorder()
			handler.CreateProduct(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAdminDeactivateProduct(t *testing.T) {
	writer := &fakeProductWriter{}
	require.NoError(t, writer.CreateProduct(context.Background(), &domain.Product{Name: "x"}))
	server := httptest.NewServer(newAdminRouter(writer))
	defer server.Close()

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/admin/products/1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []int64{1}, writer.deactivated)

	req, err = http.NewRequest(http.MethodDelete, server.URL+"/api/v1/admin/products/42", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
