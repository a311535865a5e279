package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/httpx"
)

type Store interface {
	CreateBrand(ctx context.Context, b domain.Brand) (*domain.Brand, error)
	ListBrands(ctx context.Context) ([]domain.Brand, error)
	CreateCarModel(ctx context.Context, m domain.CarModel) (*domain.CarModel, error)
	ListCarModels(ctx context.Context, brandID string) ([]domain.CarModel, error)
	CreateCategoryParent(ctx context.Context, c domain.CategoryParent) (*domain.CategoryParent, error)
	CreateCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreatePart(ctx context.Context, p CreatePartParams) (*domain.Part, error)
	GetPart(ctx context.Context, id string) (*domain.PartListing, error)
	ListParts(ctx context.Context, f PartFilter) ([]domain.PartListing, error)
	AddCompatibility(ctx context.Context, c domain.Compatibility) error
	ListCompatibleModels(ctx context.Context, partID string) ([]domain.CarModel, error)
	SetApproved(ctx context.Context, partIDs []string, approved bool) (int64, error)
	SetFeatured(ctx context.Context, partIDs []string, featured bool) (int64, error)
	ToggleActive(ctx context.Context, partIDs []string) (int64, error)
	LowStock(ctx context.Context) ([]LowStockPart, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Routes registers every catalog endpoint on mux, wrapping each handler
// with wrap (identity when nil).
func (h *Handler) Routes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if wrap == nil {
		wrap = func(f http.HandlerFunc) http.HandlerFunc { return f }
	}
	mux.HandleFunc("GET /brands", wrap(h.HandleListBrands))
	mux.HandleFunc("POST /brands", wrap(h.HandleCreateBrand))
	mux.HandleFunc("GET /brands/{id}/models", wrap(h.HandleListModels))
	mux.HandleFunc("POST /models", wrap(h.HandleCreateModel))
	mux.HandleFunc("GET /categories", wrap(h.HandleListCategories))
	mux.HandleFunc("POST /categories", wrap(h.HandleCreateCategory))
	mux.HandleFunc("POST /category-parents", wrap(h.HandleCreateCategoryParent))
	mux.HandleFunc("GET /parts", wrap(h.HandleListParts))
	mux.HandleFunc("POST /parts", wrap(h.HandleCreatePart))
	mux.HandleFunc("GET /parts/low-stock", wrap(h.HandleLowStock))
	mux.HandleFunc("GET /parts/{id}", wrap(h.HandleGetPart))
	mux.HandleFunc("POST /parts/{id}/compatibility", wrap(h.HandleAddCompatibility))
	mux.HandleFunc("POST /parts/approve", wrap(h.bulkFlag("approve")))
	mux.HandleFunc("POST /parts/unapprove", wrap(h.bulkFlag("unapprove")))
	mux.HandleFunc("POST /parts/feature", wrap(h.bulkFlag("feature")))
	mux.HandleFunc("POST /parts/unfeature", wrap(h.bulkFlag("unfeature")))
	mux.HandleFunc("POST /parts/toggle-active", wrap(h.bulkFlag("toggle-active")))
}

type brandRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Founded      *int   `json:"founded" validate:"omitempty,gt=0"`
	Headquarters string `json:"headquarters" validate:"max=255"`
}

func (h *Handler) HandleCreateBrand(w http.ResponseWriter, r *http.Request) {
	var req brandRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid brand request")
		return
	}

	brand, err := h.store.CreateBrand(r.Context(), domain.Brand{Name: req.Name, Founded: req.Founded, Headquarters: req.Headquarters})
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to create brand")
		return
	}

	h.logger.Info("brand created", "brand_id", brand.ID, "name", brand.Name)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, brand)
}

func (h *Handler) HandleListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.store.ListBrands(r.Context())
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list brands")
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, brands)
}

type modelRequest struct {
	BrandID         string `json:"brand_id" validate:"required,uuid"`
	Name            string `json:"name" validate:"required,max=255"`
	ProductionStart int    `json:"production_start" validate:"gt=0"`
	ProductionEnd   *int   `json:"production_end" validate:"omitempty,gt=0"`
}

type modelResponse struct {
	domain.CarModel
	Label string `json:"label"`
}

func (h *Handler) HandleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid car model request")
		return
	}

	model, err := h.store.CreateCarModel(r.Context(), domain.CarModel{
		BrandID:         req.BrandID,
		Name:            req.Name,
		ProductionStart: req.ProductionStart,
		ProductionEnd:   req.ProductionEnd,
	})
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to create car model", "brand_id", req.BrandID)
		return
	}

	h.logger.Info("car model created", "car_model_id", model.ID, "label", model.Label())
	httpx.WriteJSON(w, h.logger, http.StatusCreated, modelResponse{CarModel: *model, Label: model.Label()})
}

func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	brandID := r.PathValue("id")

	models, err := h.store.ListCarModels(r.Context(), brandID)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list car models", "brand_id", brandID)
		return
	}

	out := make([]modelResponse, 0, len(models))
	for _, m := range models {
		out = append(out, modelResponse{CarModel: m, Label: m.Label()})
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, out)
}

type categoryParentRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	Slug        string `json:"slug" validate:"omitempty,max=255"`
}

func (h *Handler) HandleCreateCategoryParent(w http.ResponseWriter, r *http.Request) {
	var req categoryParentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid category parent request")
		return
	}

	parent, err := h.store.CreateCategoryParent(r.Context(), domain.CategoryParent{Name: req.Name, Description: req.Description, Slug: req.Slug})
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to create category parent")
		return
	}

	h.logger.Info("category parent created", "category_parent_id", parent.ID, "slug", parent.Slug)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, parent)
}

type categoryRequest struct {
	ParentID    string `json:"parent_id" validate:"omitempty,uuid"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid category request")
		return
	}

	category, err := h.store.CreateCategory(r.Context(), domain.Category{ParentID: req.ParentID, Name: req.Name, Description: req.Description})
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to create category")
		return
	}

	h.logger.Info("category created", "category_id", category.ID, "slug", category.Slug)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, category)
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list categories")
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, categories)
}

func (h *Handler) HandleCreatePart(w http.ResponseWriter, r *http.Request) {
	var req CreatePartParams
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid part request")
		return
	}

	part, err := h.store.CreatePart(r.Context(), req)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to create part", "sku", req.SKU)
		return
	}

	h.logger.Info("part created", "part_id", part.ID, "sku", part.SKU, "quantity", part.Quantity)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, part)
}

type partDetail struct {
	domain.PartListing
	CompatibleModels []domain.CarModel `json:"compatible_models"`
}

func (h *Handler) HandleGetPart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	part, err := h.store.GetPart(r.Context(), id)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to get part", "part_id", id)
		return
	}

	models, err := h.store.ListCompatibleModels(r.Context(), id)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list compatible models", "part_id", id)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, partDetail{PartListing: *part, CompatibleModels: models})
}

func parseFilter(r *http.Request) (PartFilter, error) {
	q := r.URL.Query()
	f := PartFilter{
		BrandID:          q.Get("brand"),
		CarModelID:       q.Get("car_model"),
		CategoryID:       q.Get("category"),
		CategoryParentID: q.Get("category_parent"),
		TraderID:         q.Get("trader"),
	}

	if raw := q.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return f, domain.Invalid("featured", "must be a boolean")
		}
		f.Featured = &featured
	}
	if raw := q.Get("in_stock"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			return f, domain.Invalid("in_stock", "must be a boolean")
		}
		f.InStock = inStock
	}
	if raw := q.Get("include_hidden"); raw != "" {
		includeHidden, err := strconv.ParseBool(raw)
		if err != nil {
			return f, domain.Invalid("include_hidden", "must be a boolean")
		}
		f.IncludeHidden = includeHidden
	}

	var err error
	if f.Limit, err = httpx.IntQuery(r, "limit", defaultPageSize); err != nil {
		return f, err
	}
	if f.Offset, err = httpx.IntQuery(r, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) HandleListParts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.Error(w, h.logger, err, "invalid part filter")
		return
	}

	parts, err := h.store.ListParts(r.Context(), filter)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list parts")
		return
	}

	h.logger.Info("parts listed", "count", len(parts))
	httpx.WriteJSON(w, h.logger, http.StatusOK, parts)
}

type compatibilityRequest struct {
	CarModelID string `json:"car_model_id" validate:"required,uuid"`
	Notes      string `json:"notes"`
}

func (h *Handler) HandleAddCompatibility(w http.ResponseWriter, r *http.Request) {
	partID := r.PathValue("id")

	var req compatibilityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid compatibility request", "part_id", partID)
		return
	}

	compat := domain.Compatibility{PartID: partID, CarModelID: req.CarModelID, Notes: req.Notes}
	if err := h.store.AddCompatibility(r.Context(), compat); err != nil {
		httpx.Error(w, h.logger, err, "failed to add compatibility", "part_id", partID)
		return
	}

	h.logger.Info("compatibility added", "part_id", partID, "car_model_id", req.CarModelID)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, compat)
}

type bulkRequest struct {
	PartIDs []string `json:"part_ids" validate:"required,min=1,max=500,dive,uuid"`
}

func (h *Handler) bulkFlag(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, h.logger, err, "invalid bulk request", "action", action)
			return
		}

		var (
			updated int64
			err     error
		)
		switch action {
		case "approve":
			updated, err = h.store.SetApproved(r.Context(), req.PartIDs, true)
		case "unapprove":
			updated, err = h.store.SetApproved(r.Context(), req.PartIDs, false)
		case "feature":
			updated, err = h.store.SetFeatured(r.Context(), req.PartIDs, true)
		case "unfeature":
			updated, err = h.store.SetFeatured(r.Context(), req.PartIDs, false)
		case "toggle-active":
			updated, err = h.store.ToggleActive(r.Context(), req.PartIDs)
		}
		if err != nil {
			httpx.Error(w, h.logger, err, "bulk update failed", "action", action)
			return
		}

		h.logger.Info("parts updated", "action", action, "requested", len(req.PartIDs), "updated", updated)
		httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]int64{"updated": updated})
	}
}

func (h *Handler) HandleLowStock(w http.ResponseWriter, r *http.Request) {
	parts, err := h.store.LowStock(r.Context())
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list low stock parts")
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, parts)
}
