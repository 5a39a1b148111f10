package api

import (
	"net/http"

	"github.com/weekorder/weekorder/catalog"
)

// Stores

func (a *API) listStores(w http.ResponseWriter, r *http.Request) error {
	stores, err := a.catalog.ListStores(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stores)
	return nil
}

func (a *API) createStore(w http.ResponseWriter, r *http.Request) error {
	var in catalog.StoreInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	store, err := a.catalog.CreateStore(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, store)
	return nil
}

func (a *API) updateStore(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id", "Store")
	if err != nil {
		return err
	}
	var in catalog.StorePatch
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	store, err := a.catalog.UpdateStore(r.Context(), id, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, store)
	return nil
}

func (a *API) deleteStore(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id", "Store")
	if err != nil {
		return err
	}
	if err := a.catalog.DeleteStore(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Categories

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) error {
	categories, err := a.catalog.ListCategories(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, categories)
	return nil
}

func (a *API) createCategory(w http.ResponseWriter, r *http.Request) error {
	var in catalog.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	category, err := a.catalog.CreateCategory(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, category)
	return nil
}

func (a *API) updateCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id", "Category")
	if err != nil {
		return err
	}
	var in catalog.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	category, err := a.catalog.UpdateCategory(r.Context(), id, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, category)
	return nil
}

func (a *API) deleteCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id", "Category")
	if err != nil {
		return err
	}
	if err := a.catalog.DeleteCategory(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Products

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) error {
	products, err := a.catalog.ListProducts(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, products)
	return nil
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) error {
	var in catalog.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	product, err := a.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, product)
	return nil
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id", "Product")
	if err != nil {
		return err
	}
	var in catalog.ProductPatch
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	product, err := a.catalog.UpdateProduct(r.Context(), id, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, product)
	return nil
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id", "Product")
	if err != nil {
		return err
	}
	if err := a.catalog.DeleteProduct(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
