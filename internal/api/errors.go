package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/services"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// retryAfterSeconds подсказка клиенту при конфликте конкурентных операций
const retryAfterSeconds = "1"

// respondError единая точка маппинга ошибок сервисов в HTTP ответ.
// Логируется здесь и только здесь.
func respondError(c *gin.Context, module, funcName string, err error) {
	var (
		verr       *services.ValidationError
		notFound   *services.NotFoundError
		stock      *services.InsufficientStockError
		components *services.InsufficientComponentsError
		inUse      *services.ItemInUseError
		transition *services.InvalidTransitionError
		conflict   *services.ConflictError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationError", "details": verr.Fields})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "NotFound", "details": notFound.Error()})
	case errors.As(err, &components):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "InsufficientComponents",
			"details":    components.Error(),
			"shortfalls": components.Shortfalls,
		})
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "InsufficientStock",
			"details":   stock.Error(),
			"item_id":   stock.ItemID,
			"sku":       stock.SKU,
			"requested": stock.Requested,
			"available": stock.Available,
		})
	case errors.As(err, &inUse):
		c.JSON(http.StatusConflict, gin.H{"error": "ItemInUse", "details": inUse.Error(), "in_use": inUse})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "InvalidTransition",
			"details": transition.Error(),
			"from":    transition.From,
			"to":      transition.To,
		})
	case errors.As(err, &conflict):
		utils.Logger().WithFields(map[string]interface{}{
			"module": module, "funcName": funcName, "path": c.FullPath(),
		}).Warnf("⚠️ conflict: %v", err)
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "details": conflict.Reason})
	default:
		utils.LogError(module, funcName, "unhandled error", c.Request.Method+" "+c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "InternalError", "details": "internal server error"})
	}
}

// respondBindError ошибки ShouldBindJSON: поля validator'а → тег, остальное как есть
func respondBindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[jsonFieldName(fe)] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationError", "details": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationError", "details": gin.H{"body": err.Error()}})
}

// jsonFieldName CreateItemInput.SKU → sku
func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return toSnake(ns)
}

func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 && runes[i-1] != '.' {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
