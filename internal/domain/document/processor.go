package document

import (
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

// Plan returns the movements a confirmed document emits, in line order.
// Every Type must be handled here; types without stock effect fail UnsupportedDocumentType.
func Plan(d *Document) ([]ledger.Draft, error) {
	var drafts []ledger.Draft

	for _, l := range d.Lines {
		wh, loc := d.lineWarehouse(l)
		if wh == nil {
			return nil, apperror.NewValidation("line has no warehouse").WithDetail("line", l.LineNo)
		}
		base := ledger.Draft{
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			WarehouseID: *wh,
			LocationID:  loc,
			BatchID:     l.BatchID,
			SeriesID:    l.SeriesID,
			Quantity:    l.Quantity.Abs(),
			DocumentID:  &d.ID,
			Reference:   d.Number,
			Notes:       l.Notes,
			UnitCost:    l.UnitPrice,
		}

		switch d.Type {
		case TypeInventoryTransfer:
			if d.DestinationWarehouseID == nil {
				return nil, apperror.NewValidation("transfer has no destination warehouse").
					WithDetail("document", d.Number)
			}
			if *d.DestinationWarehouseID == *wh && id.Equal(d.DestinationLocationID, loc) {
				return nil, apperror.NewValidation("transfer source and destination are the same").
					WithDetail("line", l.LineNo)
			}
			out := base
			out.Type = ledger.MovementOut
			in := base
			in.Type = ledger.MovementIn
			in.WarehouseID = *d.DestinationWarehouseID
			in.LocationID = d.DestinationLocationID
			drafts = append(drafts, out, in)

		case TypeInventoryAdjustment:
			if l.Quantity.IsPositive() {
				base.Type = ledger.MovementIn
			} else {
				base.Type = ledger.MovementOut
			}
			drafts = append(drafts, base)

		case TypeGoodsReceipt:
			base.Type = ledger.MovementIn
			drafts = append(drafts, base)

		case TypeGoodsIssue:
			base.Type = ledger.MovementOut
			drafts = append(drafts, base)

		case TypePurchaseOrder, TypeSalesOrder, TypeReturn, TypeCycleCount:
			return nil, apperror.NewUnsupportedDocumentType(string(d.Type))

		default:
			return nil, apperror.NewUnsupportedDocumentType(string(d.Type))
		}
	}
	return drafts, nil
}
