package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/weekorder/weekorder/core"
)

// Service implements owner catalog management on top of a Repository.
type Service struct {
	repo   Repository
	logger core.Logger
}

// NewService creates a catalog service. A nil logger disables logging.
func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: core.WithComponent(logger, "catalog"),
	}
}

func invalid(op, msg string) error {
	return &core.Error{Op: op, Kind: "catalog", Message: msg, Err: core.ErrInvalidInput}
}

// trimOptional trims s and maps an empty result to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Stores

// ListStores returns every store with reference counts, ordered by name.
func (s *Service) ListStores(ctx context.Context) ([]StoreSummary, error) {
	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stores, func(i, j int) bool { return stores[i].Name < stores[j].Name })
	return stores, nil
}

// GetStore returns a single store.
func (s *Service) GetStore(ctx context.Context, id uint) (*Store, error) {
	return s.repo.FindStore(ctx, id)
}

func (s *Service) CreateStore(ctx context.Context, in StoreInput) (*Store, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("catalog.CreateStore", "Store name is required.")
	}

	store := &Store{
		Name:     name,
		Location: trimOptional(in.Location),
		Active:   in.Active == nil || *in.Active,
	}
	if err := s.repo.CreateStore(ctx, store); err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "Store created", map[string]interface{}{
		"store_id": store.ID,
		"name":     store.Name,
	})
	return store, nil
}

func (s *Service) UpdateStore(ctx context.Context, id uint, patch StorePatch) (*Store, error) {
	store, err := s.repo.FindStore(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, invalid("catalog.UpdateStore", "Store name cannot be empty.")
		}
		store.Name = name
	}
	if patch.Location != nil {
		store.Location = trimOptional(patch.Location)
	}
	if patch.Active != nil {
		store.Active = *patch.Active
	}

	if err := s.repo.SaveStore(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Service) DeleteStore(ctx context.Context, id uint) error {
	if err := s.repo.DeleteStore(ctx, id); err != nil {
		return err
	}
	s.logger.InfoWithContext(ctx, "Store deleted", map[string]interface{}{"store_id": id})
	return nil
}

// Categories

// ListCategories returns every category ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("catalog.CreateCategory", "Category name is required.")
	}

	category := &Category{Name: name}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("catalog.UpdateCategory", "Category name is required.")
	}

	category, err := s.repo.FindCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = name
	if err := s.repo.SaveCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id uint) error {
	return s.repo.DeleteCategory(ctx, id)
}

// Products

// ListProducts returns every product with its category, ordered by category
// name and then product name.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	SortByCategoryAndName(products)
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	const op = "catalog.CreateProduct"

	name := strings.TrimSpace(in.Name)
	if name == "" || in.CategoryID == 0 {
		return nil, invalid(op, "Product name and category are required.")
	}

	category, err := s.repo.FindCategory(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}

	product := &Product{
		Name:            name,
		SizeDescription: trimOptional(in.SizeDescription),
		ImageURL:        trimOptional(in.ImageURL),
		CategoryID:      category.ID,
		Active:          in.Active == nil || *in.Active,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	product.Category = category

	s.logger.InfoWithContext(ctx, "Product created", map[string]interface{}{
		"product_id":  product.ID,
		"category_id": category.ID,
	})
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (*Product, error) {
	const op = "catalog.UpdateProduct"

	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, invalid(op, "Product name cannot be empty.")
		}
		product.Name = name
	}
	if patch.SizeDescription != nil {
		product.SizeDescription = trimOptional(patch.SizeDescription)
	}
	if patch.ImageURL != nil {
		product.ImageURL = trimOptional(patch.ImageURL)
	}
	if patch.Active != nil {
		product.Active = *patch.Active
	}
	if patch.CategoryID != nil {
		category, err := s.repo.FindCategory(ctx, *patch.CategoryID)
		if err != nil {
			return nil, err
		}
		product.CategoryID = category.ID
		product.Category = category
	}

	if err := s.repo.SaveProduct(ctx, product); err != nil {
		return nil, err
	}
	if product.Category == nil || product.Category.ID != product.CategoryID {
		if product.Category, err = s.repo.FindCategory(ctx, product.CategoryID); err != nil {
			return nil, err
		}
	}
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	return s.repo.DeleteProduct(ctx, id)
}

// SortByCategoryAndName orders products by category name, then product name.
// Comparison is byte-wise so the order does not depend on database collation.
func SortByCategoryAndName(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		ci, cj := categoryName(products[i]), categoryName(products[j])
		if ci != cj {
			return ci < cj
		}
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
}

func categoryName(p Product) string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Name
}
