package dto

import (
	"github.com/shopspring/decimal"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// MaterialRequest is one material line payload.
type MaterialRequest struct {
	CodigoArticulo     string           `json:"codigoArticulo" validate:"required"`
	UnidadesUtilizadas *decimal.Decimal `json:"unidadesUtilizadas" validate:"required"`
	Precio             *decimal.Decimal `json:"precio" validate:"required"`
	Descuento          *decimal.Decimal `json:"descuento"`
}

// UpdateMaterialRequest is a partial material line payload.
type UpdateMaterialRequest struct {
	CodigoArticulo     *string          `json:"codigoArticulo" validate:"omitempty,min=1"`
	UnidadesUtilizadas *decimal.Decimal `json:"unidadesUtilizadas"`
	Precio             *decimal.Decimal `json:"precio"`
	Descuento          *decimal.Decimal `json:"descuento"`
}

// MaterialResponse is a formatted material line.
type MaterialResponse struct {
	ID                 string  `json:"id"`
	CodigoArticulo     string  `json:"codigoArticulo"`
	UnidadesUtilizadas float64 `json:"unidadesUtilizadas"`
	Precio             float64 `json:"precio"`
	Descuento          float64 `json:"descuento"`
	ImporteTotal       float64 `json:"importeTotal"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

// NewMaterialResponse formats a material line with numeric money fields.
func NewMaterialResponse(m *domain.Material) MaterialResponse {
	return MaterialResponse{
		ID:                 m.ID,
		CodigoArticulo:     m.ArticleCode,
		UnidadesUtilizadas: m.Units.InexactFloat64(),
		Precio:             m.UnitPrice.InexactFloat64(),
		Descuento:          m.Discount.InexactFloat64(),
		ImporteTotal:       m.Total.InexactFloat64(),
		CreatedAt:          FormatTime(m.CreatedAt),
		UpdatedAt:          FormatTime(m.UpdatedAt),
	}
}
