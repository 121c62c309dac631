package handlers

import (
	"context"
	"errors"
	"sync"

	"bikestore/internal/catalog"
	"bikestore/internal/checkout"
	"bikestore/internal/models"
	"bikestore/internal/reconcile"
)

func init() {
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []reconcile.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task reconcile.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) queued() []reconcile.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]reconcile.Task(nil), q.tasks...)
}

type stubCheckouter struct {
	got    checkout.Request
	calls  int
	result checkout.Result
	err    error
}

func (s *stubCheckouter) Checkout(_ context.Context, req checkout.Request) (checkout.Result, error) {
	s.calls++
	s.got = req
	return s.result, s.err
}

type orderMap map[string]*models.Order

func (m orderMap) GetOrderByNumber(_ context.Context, n string) (*models.Order, error) {
	if n == "ORD-20990101-999" {
		return nil, errors.New("connection reset")
	}
	return m[n], nil
}

type stubCatalog struct {
	filters    catalog.Filters
	products   map[string]models.Product
	categories []models.Category
	err        error
}

func (s *stubCatalog) GetProducts(_ context.Context, f catalog.Filters) (catalog.ProductList, error) {
	s.filters = f
	if s.err != nil {
		return catalog.ProductList{}, s.err
	}
	list := catalog.ProductList{Page: 1, TotalPages: 1}
	for _, p := range s.products {
		list.Products = append(list.Products, p)
	}
	list.Total = int64(len(list.Products))
	return list, nil
}

func (s *stubCatalog) GetProductBySlug(_ context.Context, slug string) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.products[slug]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *stubCatalog) GetCategories(context.Context) ([]models.Category, error) {
	return s.categories, s.err
}

func (s *stubCatalog) GetCategoryBySlug(_ context.Context, slug string) (*models.Category, error) {
	for _, c := range s.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, s.err
}

func (s *stubCatalog) GetFilterableAttributes(context.Context) ([]models.FilterableAttribute, error) {
	return []models.FilterableAttribute{{ID: "a1", Name: "Frame size", Slug: "frame-size", Values: []string{"M", "L"}}}, s.err
}

func (s *stubCatalog) GetBrands(context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"Giant", "Trek"}, nil
}

type adminMap map[string]*models.Admin

func (m adminMap) FindByEmail(_ context.Context, email string) (*models.Admin, error) {
	return m[email], nil
}

type recordingInvalidator struct {
	tags []string
	err  error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tags ...string) error {
	r.tags = append(r.tags, tags...)
	return r.err
}

type orderPage struct {
	page, limit int
	status      string
}

func (o *orderPage) ListOrders(_ context.Context, page, limit int, status string) ([]models.Order, int64, error) {
	o.page, o.limit, o.status = page, limit, status
	return []models.Order{{OrderNumber: "ORD-20240501-001"}}, 1, nil
}
