package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// listProducts handles GET /api/products
func (h *Handler) listProducts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), c.Query("category"), c.Query("subcategory"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// getProduct handles GET /api/product/:id — the product plus its variant
// photos and the color→size→stock matrix.
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	variants, err := h.catalog.ListVariants(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	stockData, err := h.catalog.StockMatrix(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	variantPhotos := make(map[string][]string, len(variants))
	for _, v := range variants {
		variantPhotos[v.ColorName] = v.Images
	}

	c.JSON(http.StatusOK, gin.H{
		"product":        product,
		"variant_photos": variantPhotos,
		"stock_data":     stockData,
		"variants":       variants,
	})
}

// getVariant handles GET /api/product/:id/variant/:color
func (h *Handler) getVariant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	listing, err := h.catalog.VariantDetail(c.Request.Context(), id, c.Param("color"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// listVariants handles GET /api/products/:id/variants
func (h *Handler) listVariants(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	variants, err := h.catalog.ListVariants(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": id,
		"variants":   variants,
	})
}

// listSizes handles GET /api/products/:id/colors/:color/sizes
func (h *Handler) listSizes(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	color := c.Param("color")
	sizes, err := h.catalog.SizesForColor(c.Request.Context(), id, color)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": id,
		"color_name": color,
		"sizes":      sizes,
	})
}
