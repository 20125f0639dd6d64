// Package policy evaluates the tenant approval rule that gates document confirmation.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/document"
	"stockledger/pkg/logger"
)

// AllowAll is the rule used when none is configured.
const AllowAll = "true"

// Approval is a compiled CEL rule over the variable `doc`:
//
//	doc.type, doc.status, doc.number, doc.partnerReference  string
//	doc.totalQuantity, doc.totalAmount                       double
//	doc.lineCount                                            int
//	doc.metadata                                             map(string, string)
//
// Example: doc.type != "INVENTORY_ADJUSTMENT" || doc.totalQuantity <= 1000.0
type Approval struct {
	expr string
	prg  cel.Program
}

var _ document.Approver = (*Approval)(nil)

// NewApproval compiles expr. The expression must evaluate to a bool.
func NewApproval(expr string) (*Approval, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = AllowAll
	}

	env, err := cel.NewEnv(cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile approval rule: %w", iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("approval rule must return bool, got %s", out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build approval program: %w", err)
	}
	return &Approval{expr: expr, prg: prg}, nil
}

// Expression returns the source of the rule.
func (p *Approval) Expression() string {
	return p.expr
}

// Approve evaluates the rule for d.
func (p *Approval) Approve(ctx context.Context, d *document.Document) error {
	out, _, err := p.prg.ContextEval(ctx, map[string]any{"doc": Activation(d)})
	if err != nil {
		return apperror.NewInternal(err).WithDetail("rule", p.expr)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("approval rule returned %T", out.Value()))
	}
	if !allowed {
		logger.Warn(ctx, "document approval denied", "document_id", d.ID, "rule", p.expr)
		return apperror.NewApprovalDenied(p.expr)
	}
	return nil
}

// Activation exposes d to the rule.
func Activation(d *document.Document) map[string]any {
	meta := d.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	amount, _ := d.TotalAmount().Float64()
	return map[string]any{
		"type":             string(d.Type),
		"status":           string(d.Status),
		"number":           d.Number,
		"partnerReference": d.PartnerReference,
		"warehouseId":      id.String(d.WarehouseID),
		"totalQuantity":    d.TotalQuantity().Float64(),
		"totalAmount":      amount,
		"lineCount":        int64(len(d.Lines)),
		"metadata":         meta,
	}
}
