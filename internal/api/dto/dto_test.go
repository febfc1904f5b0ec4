package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/intervention-service/internal/domain"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

func TestNullableTracksPresence(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		set     bool
		value   *string
	}{
		{"absent", `{}`, false, nil},
		{"null", `{"descripcion": null}`, true, nil},
		{"value", `{"descripcion": "hola"}`, true, ptr("hola")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req UpdateInterventionRequest
			if err := json.Unmarshal([]byte(tc.payload), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got := req.Descripcion
			if got.Set != tc.set {
				t.Errorf("Set = %v, expected %v", got.Set, tc.set)
			}
			if (got.Value == nil) != (tc.value == nil) || (got.Value != nil && *got.Value != *tc.value) {
				t.Errorf("Value = %v, expected %v", got.Value, tc.value)
			}
		})
	}
}

func TestNullableDecimalKeepsLiteral(t *testing.T) {
	var req UpdateInterventionRequest
	if err := json.Unmarshal([]byte(`{"costeEstimado": 0.1}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !req.CosteEstimado.Set || !req.CosteEstimado.Value.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("costeEstimado = %+v", req.CosteEstimado)
	}
}

func TestValidateReportsJSONField(t *testing.T) {
	err := Validate(&CreateInterventionRequest{TecnicoAsignadoID: "tec-1", TipoAccion: "Limpieza"})
	if !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("err = %v", err)
	}
	details := apperrors.ToDomainError(err).Details
	if details["field"] != "tipoAccion" || details["rule"] != "oneof" {
		t.Errorf("details = %v", details)
	}

	if err := Validate(&MaterialRequest{CodigoArticulo: "A1", Precio: &decimal.Zero}); err == nil {
		t.Errorf("missing unidadesUtilizadas accepted")
	}
	units := decimal.NewFromInt(1)
	if err := Validate(&MaterialRequest{CodigoArticulo: "A1", UnidadesUtilizadas: &units, Precio: &units}); err != nil {
		t.Errorf("valid material rejected: %v", err)
	}
	if err := Validate(&UpdateAdjuntosRequest{Files: []AttachmentEntry{{ID: "a", Name: "n"}}}); err == nil {
		t.Errorf("attachment without url accepted")
	}
}

func TestInterventionResponseFormatting(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	end := start.Add(45 * time.Minute)
	minutes := 45
	cost := decimal.RequireFromString("120.50")
	outcome := domain.OutcomeResolved
	in := &domain.Intervention{
		ID:              "int-1",
		TicketNumber:    "T202401-0001",
		StartedAt:       &start,
		EndedAt:         &end,
		TechnicianID:    "tec-1",
		ActionType:      domain.ActionRepair,
		State:           domain.TaskStateFinished,
		DurationMinutes: &minutes,
		EstimatedCost:   &cost,
		Outcome:         &outcome,
		Technician:      domain.TechnicianRef{ID: "tec-1", DisplayName: "Ana"},
		Materials: []domain.Material{
			{ID: "m1", ArticleCode: "A1", Units: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("9.99"), Total: decimal.RequireFromString("29.97")},
			{ID: "m2", ArticleCode: "B2", Units: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("22.93"), Total: decimal.RequireFromString("22.93")},
		},
		CreatedAt: start,
		UpdatedAt: end,
	}

	resp := NewInterventionResponse(in)
	if *resp.FechaHoraInicio != "2024-01-15T09:00:00.000Z" || *resp.FechaHoraFin != "2024-01-15T09:45:00.000Z" {
		t.Errorf("timestamps = %s / %s", *resp.FechaHoraInicio, *resp.FechaHoraFin)
	}
	if resp.FechaHoraProgramada != nil || resp.Ubicacion != nil {
		t.Errorf("unset fields must stay null")
	}
	if resp.Totales.ImporteTotal != 52.9 || resp.Totales.CantidadMateriales != 2 {
		t.Errorf("totales = %+v", resp.Totales)
	}
	if *resp.CosteEstimado != 120.5 || resp.Materiales[0].ImporteTotal != 29.97 {
		t.Errorf("money = %v / %v", *resp.CosteEstimado, resp.Materiales[0].ImporteTotal)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, fragment := range []string{`"adjuntosJson":{"files":[]}`, `"resultado":"Resuelto"`, `"fechaHoraProgramada":null`, `"tecnico":{"id":"tec-1","displayName":"Ana"}`} {
		if !strings.Contains(string(raw), fragment) {
			t.Errorf("missing %s in %s", fragment, raw)
		}
	}
}

func TestTicketResponseFormatting(t *testing.T) {
	created := time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC)
	resp := NewTicketResponse(&domain.Ticket{
		Number:     "T202401-0007",
		ClientCode: "C001",
		Status:     domain.TicketStatusOpen,
		Urgency:    domain.TicketUrgencyHigh,
		CreatedAt:  created,
		UpdatedAt:  created,
	})
	if resp.FechaCreacion != "2024-01-31T23:30:00.000Z" || resp.FechaCierre != nil || resp.Urgencia != "ALTA" {
		t.Errorf("ticket = %+v", resp)
	}
}

func ptr(s string) *string { return &s }
