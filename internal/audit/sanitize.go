package audit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// SensitiveKeys are removed from snapshots at any depth.
var SensitiveKeys = []string{"passwordHash", "password", "firmaClienteRaw", "signatureData"}

// Sanitize returns a deep copy of snapshot without sensitive keys.
func Sanitize(snapshot map[string]any) map[string]any {
	if snapshot == nil {
		return nil
	}
	return sanitizeMap(snapshot)
}

func sanitizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if isSensitive(key) {
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitizeMap(v)
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeMap(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return value
	}
}

func isSensitive(key string) bool {
	for _, sensitive := range SensitiveKeys {
		if key == sensitive {
			return true
		}
	}
	return false
}

// InterventionSnapshot flattens an intervention for the audit trail.
func InterventionSnapshot(in *domain.Intervention) map[string]any {
	if in == nil {
		return nil
	}
	materials := make([]map[string]any, len(in.Materials))
	for i := range in.Materials {
		materials[i] = MaterialSnapshot(&in.Materials[i])
	}
	return map[string]any{
		"id":                  in.ID,
		"numeroTicket":        in.TicketNumber,
		"fechaHoraProgramada": timeValue(in.ScheduledAt),
		"fechaHoraInicio":     timeValue(in.StartedAt),
		"fechaHoraFin":        timeValue(in.EndedAt),
		"tecnicoAsignadoId":   in.TechnicianID,
		"tipoAccion":          string(in.ActionType),
		"descripcion":         stringValue(in.Description),
		"estadoTarea":         string(in.State),
		"duracionMinutos":     intValue(in.DurationMinutes),
		"costeEstimado":       decimalValue(in.EstimatedCost),
		"resultado":           enumValue(in.Outcome),
		"firmaClienteUrl":     stringValue(in.SignatureURL),
		"ubicacion":           enumValue(in.Location),
		"adjuntos":            len(in.Attachments.Files),
		"materiales":          materials,
	}
}

// MaterialSnapshot flattens a material line for the audit trail.
func MaterialSnapshot(m *domain.Material) map[string]any {
	if m == nil {
		return nil
	}
	return map[string]any{
		"id":                 m.ID,
		"intervencionId":     m.InterventionID,
		"codigoArticulo":     m.ArticleCode,
		"unidadesUtilizadas": m.Units.InexactFloat64(),
		"precio":             m.UnitPrice.InexactFloat64(),
		"descuento":          m.Discount.InexactFloat64(),
		"importeTotal":       m.Total.InexactFloat64(),
	}
}

// TicketSnapshot flattens a ticket for the audit trail.
func TicketSnapshot(t *domain.Ticket) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"numeroTicket":      t.Number,
		"codigoCliente":     t.ClientCode,
		"tecnicoAsignadoId": stringValue(t.TechnicianID),
		"contratoId":        stringValue(t.ContractID),
		"numeroSerie":       stringValue(t.SerialNumber),
		"detalle":           stringValue(t.Detail),
		"estado":            string(t.Status),
		"urgencia":          string(t.Urgency),
		"fechaCierre":       timeValue(t.ClosedAt),
	}
}

// ClientSnapshot flattens a client for the audit trail.
func ClientSnapshot(c *domain.Client) map[string]any {
	if c == nil {
		return nil
	}
	return map[string]any{
		"codigoCliente": c.Code,
		"razonSocial":   c.CompanyName,
		"contacto":      stringValue(c.Contact),
		"telefono":      stringValue(c.Phone),
		"email":         stringValue(c.Email),
	}
}

// ContractSnapshot flattens a contract for the audit trail.
func ContractSnapshot(c *domain.Contract) map[string]any {
	if c == nil {
		return nil
	}
	return map[string]any{
		"id":            c.ID,
		"codigoCliente": c.ClientCode,
		"tipoContrato":  c.ContractType,
		"numeroSerie":   stringValue(c.SerialNumber),
	}
}

// UserSnapshot flattens a user for the audit trail. The password hash is
// passed through so Sanitize drops it with every other credential.
func UserSnapshot(u *domain.User) map[string]any {
	if u == nil {
		return nil
	}
	roles := make([]any, len(u.Roles))
	for i, role := range u.Roles {
		roles[i] = string(role)
	}
	return map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"displayName":  u.DisplayName,
		"email":        u.Email,
		"roles":        roles,
		"isActive":     u.Active,
		"passwordHash": u.PasswordHash,
	}
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func stringValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func intValue(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func decimalValue(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}

func enumValue[T ~string](v *T) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
