package api

import (
	"net/http"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) bootstrapOwner(w http.ResponseWriter, r *http.Request) error {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	session, err := a.auth.BootstrapOwner(r.Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, session)
	return nil
}

func (a *API) login(w http.ResponseWriter, r *http.Request) error {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	session, err := a.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, session)
	return nil
}

func (a *API) me(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": principal(r)})
	return nil
}

type storekeeperRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	StoreID  uint   `json:"storeId"`
}

func (a *API) createStorekeeper(w http.ResponseWriter, r *http.Request) error {
	var in storekeeperRequest
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	user, err := a.auth.CreateStorekeeper(r.Context(), in.Email, in.Password, in.StoreID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, user)
	return nil
}
