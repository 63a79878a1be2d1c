package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"dione/config"
	"dione/internal/apperr"
	"dione/internal/models"
	"dione/internal/redisclient"
	"dione/internal/store"
	"dione/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const placeholderImage = "/static/img/placeholder.png"

// CatalogService is the canonical read path for product, variant and stock
// data, and the owner of the resolve step every cart and order write starts
// with.
type CatalogService struct {
	store      *store.Store
	redis      *redisclient.Client
	staticRoot string
	logger     *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(st *store.Store, redis *redisclient.Client, cfg *config.Config) *CatalogService {
	return &CatalogService{
		store:      st,
		redis:      redis,
		staticRoot: cfg.Assets.StaticRoot,
		logger:     util.GetLogger(),
	}
}

// Resolution is the outcome of resolving (product, color, size).
type Resolution struct {
	ProductID      int64           `json:"product_id"`
	VariantID      *int64          `json:"variant_id,omitempty"`
	SizeID         *int64          `json:"size_id,omitempty"`
	AvailableStock int             `json:"available_stock"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	VariantImage   string          `json:"variant_image"`
	SKU            string          `json:"sku"`
	SellerID       int64           `json:"seller_id"`
	ProductName    string          `json:"product_name"`
}

// Resolve maps (product, color, size) to a concrete stock leaf. Normalized
// tables win; the legacy JSON blob is the fallback for old rows. Color and
// size match case-insensitively, trimmed.
func (s *CatalogService) Resolve(ctx context.Context, productID int64, color, size string) (*Resolution, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Resolve")
	defer span.End()

	product, err := s.store.GetProductByID(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}

	res := &Resolution{
		ProductID:   product.ID,
		UnitPrice:   product.Price,
		SellerID:    product.SellerUserID,
		ProductName: product.Name,
	}

	variant, err := s.store.GetVariantByColor(ctx, productID, color)
	switch {
	case err == nil:
		vs, err := s.store.GetVariantSize(ctx, variant.ID, size)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("size not available for this color")
		}
		if err != nil {
			return nil, apperr.Internal("failed to load variant size", err)
		}

		res.VariantID = &variant.ID
		res.SizeID = &vs.ID
		res.AvailableStock = vs.StockQuantity
		res.VariantImage = s.variantImage(variant.Images, product)
		res.SKU = vs.SKU.String
		if res.SKU == "" {
			res.SKU = SynthesizeSKU(product.BaseSKU.String, product.ID, variant.ColorName, vs.SizeLabel)
		}
		return res, nil

	case errors.Is(err, sql.ErrNoRows):
		// fall through to the legacy blob
	default:
		return nil, apperr.Internal("failed to load variant", err)
	}

	legacy, err := models.ParseLegacyVariants(product.LegacyVariants)
	if err != nil {
		s.logger.Warn("Unparseable legacy variants blob",
			zap.Int64("product_id", productID), zap.Error(err))
		return nil, apperr.NotFound("variant not found")
	}

	entry, ok := legacy.FindColor(color)
	if !ok {
		return nil, apperr.NotFound("variant not found")
	}
	stock, ok := legacy.Stock(color, size)
	if !ok {
		return nil, apperr.NotFound("size not available for this color")
	}

	res.AvailableStock = stock
	res.SKU = SynthesizeSKU(product.BaseSKU.String, product.ID, entry.Color, size)
	if len(entry.Images) > 0 {
		res.VariantImage = s.NormalizeImageURL(entry.Images[0])
	} else {
		res.VariantImage = s.productImage(product)
	}
	return res, nil
}

func (s *CatalogService) variantImage(images []string, product *models.Product) string {
	if len(images) > 0 && images[0] != "" {
		return s.NormalizeImageURL(images[0])
	}
	return s.productImage(product)
}

func (s *CatalogService) productImage(product *models.Product) string {
	if product.PrimaryImage != "" {
		return s.NormalizeImageURL(product.PrimaryImage)
	}
	return placeholderImage
}

// NormalizeImageURL maps a stored path to an absolute URL: http(s), rooted
// and data URLs pass through, everything else gets the static asset root.
func (s *CatalogService) NormalizeImageURL(path string) string {
	if path == "" {
		return placeholderImage
	}
	if strings.HasPrefix(path, "http") || strings.HasPrefix(path, "/") || strings.HasPrefix(path, "data:") {
		return path
	}
	return strings.TrimRight(s.staticRoot, "/") + "/" + path
}

// SynthesizeSKU builds a SKU for stock leaves that never got one assigned:
// {base or SKU{productID}}-{COLOR}-{SIZE} with the color uppercased and
// stripped of spaces.
func SynthesizeSKU(baseSKU string, productID int64, color, size string) string {
	if baseSKU == "" {
		baseSKU = fmt.Sprintf("SKU%d", productID)
	}
	colorPart := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(color), " ", ""))
	sizePart := strings.ToUpper(strings.TrimSpace(size))
	return fmt.Sprintf("%s-%s-%s", baseSKU, colorPart, sizePart)
}

// canonical size ordering: XS < S < M < L < XL < XXL < 3XL < everything else
var sizeRanks = map[string]int{
	"XS": 0, "S": 1, "M": 2, "L": 3, "XL": 4, "XXL": 5, "3XL": 6,
}

func sizeRank(label string) int {
	if rank, ok := sizeRanks[strings.ToUpper(strings.TrimSpace(label))]; ok {
		return rank
	}
	return len(sizeRanks)
}

// SortSizeLabels orders labels canonically, unknown labels last in their
// original relative order.
func SortSizeLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		return sizeRank(labels[i]) < sizeRank(labels[j])
	})
}

// SizeInfo is one size level of a color, for the size picker.
type SizeInfo struct {
	SizeLabel string `json:"size_label"`
	Stock     int    `json:"stock"`
	SKU       string `json:"sku"`
	Available bool   `json:"available"`
}

// SizesForColor lists the sizes of one color sorted canonically.
func (s *CatalogService) SizesForColor(ctx context.Context, productID int64, color string) ([]SizeInfo, error) {
	product, err := s.store.GetProductByID(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}

	var infos []SizeInfo

	variant, err := s.store.GetVariantByColor(ctx, productID, color)
	switch {
	case err == nil:
		sizes, err := s.store.GetVariantSizes(ctx, variant.ID)
		if err != nil {
			return nil, apperr.Internal("failed to load sizes", err)
		}
		for _, vs := range sizes {
			sku := vs.SKU.String
			if sku == "" {
				sku = SynthesizeSKU(product.BaseSKU.String, product.ID, variant.ColorName, vs.SizeLabel)
			}
			infos = append(infos, SizeInfo{
				SizeLabel: vs.SizeLabel,
				Stock:     vs.StockQuantity,
				SKU:       sku,
				Available: vs.StockQuantity > 0,
			})
		}

	case errors.Is(err, sql.ErrNoRows):
		legacy, perr := models.ParseLegacyVariants(product.LegacyVariants)
		if perr != nil {
			return nil, apperr.NotFound("color not found")
		}
		entry, ok := legacy.FindColor(color)
		if !ok {
			return nil, apperr.NotFound("color not found")
		}
		for _, ss := range entry.SizeStocks {
			infos = append(infos, SizeInfo{
				SizeLabel: ss.Size,
				Stock:     ss.Stock,
				SKU:       SynthesizeSKU(product.BaseSKU.String, product.ID, entry.Color, ss.Size),
				Available: ss.Stock > 0,
			})
		}

	default:
		return nil, apperr.Internal("failed to load variant", err)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return sizeRank(infos[i].SizeLabel) < sizeRank(infos[j].SizeLabel)
	})
	return infos, nil
}

// StockMatrix builds {color: {size: stock}} for a product, preferring the
// Redis cache, then normalized tables, then the legacy blob.
func (s *CatalogService) StockMatrix(ctx context.Context, productID int64) (map[string]map[string]int, error) {
	if cached, err := s.redis.StockMatrix(ctx, productID); err == nil && cached != nil {
		return cached, nil
	}

	matrix, err := s.stockMatrixFromStore(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := s.redis.SetStockMatrix(ctx, productID, matrix); err != nil {
		s.logger.Warn("Failed to cache stock matrix",
			zap.Int64("product_id", productID), zap.Error(err))
	}
	return matrix, nil
}

func (s *CatalogService) stockMatrixFromStore(ctx context.Context, productID int64) (map[string]map[string]int, error) {
	variants, err := s.store.GetVariantsByProductID(ctx, productID)
	if err != nil {
		return nil, apperr.Internal("failed to load variants", err)
	}

	if len(variants) > 0 {
		matrix := make(map[string]map[string]int, len(variants))
		for _, v := range variants {
			sizes, err := s.store.GetVariantSizes(ctx, v.ID)
			if err != nil {
				return nil, apperr.Internal("failed to load sizes", err)
			}
			row := make(map[string]int, len(sizes))
			for _, vs := range sizes {
				row[vs.SizeLabel] = vs.StockQuantity
			}
			matrix[v.ColorName] = row
		}
		return matrix, nil
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}

	legacy, err := models.ParseLegacyVariants(product.LegacyVariants)
	if err != nil {
		return map[string]map[string]int{}, nil
	}
	return legacy.Matrix(), nil
}

// RefreshStockCache recomputes and stores a product's cached stock. Called
// by the event worker after stock-changing commits.
func (s *CatalogService) RefreshStockCache(ctx context.Context, productID int64) error {
	matrix, err := s.stockMatrixFromStore(ctx, productID)
	if err != nil {
		return err
	}
	util.StockCacheRefreshTotal.Inc()
	return s.redis.SetStockMatrix(ctx, productID, matrix)
}

// VariantListing is the full variant+size view of one color.
type VariantListing struct {
	VariantID int64      `json:"variant_id,omitempty"`
	ColorName string     `json:"color_name"`
	ColorHex  string     `json:"color_hex,omitempty"`
	Images    []string   `json:"images"`
	Sizes     []SizeInfo `json:"sizes"`
}

// ListVariants returns every color of a product with its sizes.
func (s *CatalogService) ListVariants(ctx context.Context, productID int64) ([]VariantListing, error) {
	product, err := s.store.GetProductByID(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}

	variants, err := s.store.GetVariantsByProductID(ctx, productID)
	if err != nil {
		return nil, apperr.Internal("failed to load variants", err)
	}

	if len(variants) > 0 {
		out := make([]VariantListing, 0, len(variants))
		for _, v := range variants {
			listing := VariantListing{
				VariantID: v.ID,
				ColorName: v.ColorName,
				ColorHex:  v.ColorHex.String,
			}
			for _, img := range v.Images {
				listing.Images = append(listing.Images, s.NormalizeImageURL(img))
			}
			sizes, err := s.store.GetVariantSizes(ctx, v.ID)
			if err != nil {
				return nil, apperr.Internal("failed to load sizes", err)
			}
			for _, vs := range sizes {
				sku := vs.SKU.String
				if sku == "" {
					sku = SynthesizeSKU(product.BaseSKU.String, product.ID, v.ColorName, vs.SizeLabel)
				}
				listing.Sizes = append(listing.Sizes, SizeInfo{
					SizeLabel: vs.SizeLabel,
					Stock:     vs.StockQuantity,
					SKU:       sku,
					Available: vs.StockQuantity > 0,
				})
			}
			sort.SliceStable(listing.Sizes, func(i, j int) bool {
				return sizeRank(listing.Sizes[i].SizeLabel) < sizeRank(listing.Sizes[j].SizeLabel)
			})
			out = append(out, listing)
		}
		return out, nil
	}

	legacy, err := models.ParseLegacyVariants(product.LegacyVariants)
	if err != nil {
		return nil, nil
	}
	out := make([]VariantListing, 0, len(legacy))
	for _, entry := range legacy {
		listing := VariantListing{ColorName: entry.Color, ColorHex: entry.ColorHex}
		for _, img := range entry.Images {
			listing.Images = append(listing.Images, s.NormalizeImageURL(img))
		}
		for _, ss := range entry.SizeStocks {
			listing.Sizes = append(listing.Sizes, SizeInfo{
				SizeLabel: ss.Size,
				Stock:     ss.Stock,
				SKU:       SynthesizeSKU(product.BaseSKU.String, product.ID, entry.Color, ss.Size),
				Available: ss.Stock > 0,
			})
		}
		sort.SliceStable(listing.Sizes, func(i, j int) bool {
			return sizeRank(listing.Sizes[i].SizeLabel) < sizeRank(listing.Sizes[j].SizeLabel)
		})
		out = append(out, listing)
	}
	return out, nil
}

// VariantDetail returns one color's images plus per-size stock.
func (s *CatalogService) VariantDetail(ctx context.Context, productID int64, color string) (*VariantListing, error) {
	listings, err := s.ListVariants(ctx, productID)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(color))
	for i := range listings {
		if strings.ToLower(strings.TrimSpace(listings[i].ColorName)) == want {
			return &listings[i], nil
		}
	}
	return nil, apperr.NotFound("color not found")
}

// GetProduct loads a product or NotFound.
func (s *CatalogService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := s.store.GetProductByID(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}
	return product, nil
}

// ListProducts lists active products with optional filters.
func (s *CatalogService) ListProducts(ctx context.Context, category, subcategory string, limit int) ([]models.Product, error) {
	products, err := s.store.GetProducts(ctx, category, subcategory, limit)
	if err != nil {
		return nil, apperr.Internal("failed to list products", err)
	}
	return products, nil
}

// SyncProductStock re-derives total_stock and status inside the caller's
// transaction. Idempotent.
func (s *CatalogService) SyncProductStock(ctx context.Context, tx *sqlx.Tx, productID int64) error {
	return s.store.SyncProductStock(ctx, tx, productID)
}
