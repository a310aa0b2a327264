package rules

import (
	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
)

// Default builds the registry of every shipped module rule, reading through db.
func Default(db database.Querier) (*Registry, error) {
	reg := NewRegistry()
	for _, m := range models.Modules {
		if err := reg.Register(&sqlRule{module: m, db: db, checks: moduleChecks[m]}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Checks returns the number of checks shipped for a module.
func Checks(m models.Module) int {
	return len(moduleChecks[m])
}

// Template describes one shipped check without its query. The test-data generator
// draws findings from these.
type Template struct {
	Module   models.Module
	Field    string
	Label    string
	Severity models.Severity
	Title    string
	Describe string // fmt pattern taking the record name
	Kind     models.ValueKind
}

// Templates lists every shipped check in registry order.
func Templates() []Template {
	var out []Template
	for _, m := range models.Modules {
		for _, c := range moduleChecks[m] {
			out = append(out, Template{
				Module:   m,
				Field:    c.field,
				Label:    c.label,
				Severity: c.severity,
				Title:    c.title,
				Describe: c.describe,
				Kind:     c.kind,
			})
		}
	}
	return out
}

var moduleChecks = map[models.Module][]check{
	models.ModuleStock: {
		{
			field: "on_hand_qty", label: "On-hand quantity", severity: models.SeverityCritical,
			title: "Negative stock on hand", describe: "%s shows a negative on-hand quantity",
			kind: models.KindNumber,
			query: `SELECT id::text, name, on_hand_qty::float8 FROM stock_items
				WHERE site_id = $1 AND archived_at IS NULL AND on_hand_qty < 0`,
		},
		{
			field: "par_level", label: "Par level", severity: models.SeverityMedium,
			title: "Missing par level", describe: "%s has no par level, so reorder suggestions are disabled",
			kind: models.KindNumber,
			query: `SELECT id::text, name, par_level::float8 FROM stock_items
				WHERE site_id = $1 AND archived_at IS NULL AND par_level IS NULL`,
		},
		{
			field: "unit_cost", label: "Unit cost", severity: models.SeverityLow,
			title: "Missing unit cost", describe: "%s has no unit cost, so stock valuation is understated",
			kind: models.KindNumber,
			query: `SELECT id::text, name, unit_cost::float8 FROM stock_items
				WHERE site_id = $1 AND archived_at IS NULL AND (unit_cost IS NULL OR unit_cost <= 0)`,
		},
	},
	models.ModuleSuppliers: {
		{
			field: "order_email", label: "Order email", severity: models.SeverityMedium,
			title: "Supplier has no order email", describe: "Orders to %s cannot be sent electronically",
			kind: models.KindText,
			query: `SELECT id::text, name, order_email FROM suppliers
				WHERE site_id = $1 AND is_active AND coalesce(trim(order_email), '') = ''`,
		},
		{
			field: "phone", label: "Phone", severity: models.SeverityLow,
			title: "Supplier has no phone number", describe: "%s has no contact phone number",
			kind: models.KindText,
			query: `SELECT id::text, name, phone FROM suppliers
				WHERE site_id = $1 AND is_active AND coalesce(trim(phone), '') = ''`,
		},
	},
	models.ModulePurchasing: {
		{
			field: "total_amount", label: "Order total", severity: models.SeverityCritical,
			title: "Purchase order has no value", describe: "Purchase order %s has a zero or negative total",
			kind: models.KindNumber,
			query: `SELECT id::text, reference, total_amount::float8 FROM purchase_orders
				WHERE site_id = $1 AND status <> 'cancelled' AND total_amount <= 0`,
		},
		{
			field: "expected_delivery", label: "Expected delivery", severity: models.SeverityMedium,
			title: "Delivery overdue", describe: "Purchase order %s is more than 7 days past its expected delivery",
			kind: models.KindDate,
			query: `SELECT id::text, reference, expected_delivery FROM purchase_orders
				WHERE site_id = $1 AND status NOT IN ('received', 'cancelled')
				AND expected_delivery < now() - interval '7 days'`,
		},
	},
	models.ModuleStaff: {
		{
			field: "training_expires_at", label: "Training expiry", severity: models.SeverityCritical,
			title: "Training certificate expired", describe: "%s holds an expired training certificate",
			kind: models.KindDate,
			query: `SELECT t.id::text, s.full_name || ' - ' || t.course, t.expires_at
				FROM training_records t JOIN staff_members s ON s.id = t.staff_id
				WHERE s.site_id = $1 AND s.is_active AND t.expires_at < now()`,
		},
		{
			field: "right_to_work_verified", label: "Right to work", severity: models.SeverityCritical,
			title: "Right to work not verified", describe: "%s has no verified right-to-work check",
			kind: models.KindBoolean,
			query: `SELECT id::text, full_name, right_to_work_verified FROM staff_members
				WHERE site_id = $1 AND is_active AND NOT coalesce(right_to_work_verified, false)`,
		},
		{
			field: "emergency_contact", label: "Emergency contact", severity: models.SeverityLow,
			title: "Missing emergency contact", describe: "%s has no emergency contact on file",
			kind: models.KindText,
			query: `SELECT id::text, full_name, emergency_contact FROM staff_members
				WHERE site_id = $1 AND is_active AND coalesce(trim(emergency_contact), '') = ''`,
		},
	},
	models.ModuleAssets: {
		{
			field: "next_service_due", label: "Next service", severity: models.SeverityCritical,
			title: "Asset service overdue", describe: "%s is past its service date",
			kind: models.KindDate,
			query: `SELECT id::text, name, next_service_due FROM assets
				WHERE site_id = $1 AND status = 'active' AND next_service_due < current_date`,
		},
		{
			field: "warranty_expires", label: "Warranty expiry", severity: models.SeverityMedium,
			title: "Warranty expired", describe: "The warranty on %s has expired",
			kind: models.KindDate,
			query: `SELECT id::text, name, warranty_expires FROM assets
				WHERE site_id = $1 AND status = 'active' AND warranty_expires < current_date`,
		},
		{
			field: "serial_number", label: "Serial number", severity: models.SeverityLow,
			title: "Missing serial number", describe: "%s has no serial number recorded",
			kind: models.KindText,
			query: `SELECT id::text, name, serial_number FROM assets
				WHERE site_id = $1 AND status = 'active' AND coalesce(trim(serial_number), '') = ''`,
		},
	},
	models.ModuleScheduling: {
		{
			field: "ends_at", label: "Shift end", severity: models.SeverityCritical,
			title: "Shift ends before it starts", describe: "Shift %s ends before it starts",
			kind: models.KindDate,
			query: `SELECT id::text, coalesce(role, 'shift') || ' ' || to_char(starts_at, 'YYYY-MM-DD HH24:MI'), ends_at
				FROM shifts WHERE site_id = $1 AND ends_at <= starts_at`,
		},
		{
			field: "assigned_to", label: "Assigned staff", severity: models.SeverityMedium,
			title: "Unassigned shift this week", describe: "Shift %s has nobody assigned",
			kind: models.KindText,
			query: `SELECT id::text, coalesce(role, 'shift') || ' ' || to_char(starts_at, 'YYYY-MM-DD HH24:MI'), assigned_to::text
				FROM shifts WHERE site_id = $1 AND assigned_to IS NULL
				AND starts_at BETWEEN now() AND now() + interval '7 days'`,
		},
	},
	models.ModuleRecipes: {
		{
			field: "allergens", label: "Allergens", severity: models.SeverityCritical,
			title: "Allergens not declared", describe: "%s has no allergen declaration",
			kind: models.KindSelection,
			query: `SELECT id::text, name, coalesce(allergens, '{}'::text[]) FROM recipes
				WHERE site_id = $1 AND is_active AND NOT coalesce(allergens_declared, false)`,
		},
		{
			field: "portion_cost", label: "Portion cost", severity: models.SeverityLow,
			title: "Missing portion cost", describe: "%s has no portion cost, so margins cannot be calculated",
			kind: models.KindNumber,
			query: `SELECT id::text, name, portion_cost::float8 FROM recipes
				WHERE site_id = $1 AND is_active AND portion_cost IS NULL`,
		},
	},
	models.ModuleCompliance: {
		{
			field: "due_at", label: "Due", severity: models.SeverityCritical,
			title: "Compliance task overdue", describe: "%s is overdue",
			kind: models.KindDate,
			query: `SELECT id::text, title, due_at FROM compliance_tasks
				WHERE site_id = $1 AND completed_at IS NULL AND due_at < now()`,
		},
		{
			field: "template_id", label: "Template", severity: models.SeverityLow,
			title: "Task has no template", describe: "%s was created without a template",
			kind: models.KindText,
			query: `SELECT id::text, title, template_id::text FROM compliance_tasks
				WHERE site_id = $1 AND completed_at IS NULL AND template_id IS NULL`,
		},
	},
}
