package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cargalibre/models"
	"cargalibre/services/sheets"
)

// handleBalance resolves the single-step balance dialog: any text is taken as
// a manifest ID, matching ledger rows are aggregated, and the dialog closes
// after one reply.
func (f *Flow) handleBalance(ctx context.Context, to, id string) {
	rows, err := f.store.ReadRows(ctx, sheets.SheetBalances, "A:D")
	if err != nil {
		f.failSafe(ctx, to, err)
		return
	}

	_ = f.sender.SendText(ctx, to, balanceText(id, filterBalances(rows, id)))
	f.Reset(to)
}

// filterBalances keeps the ledger rows whose first column equals the manifest
// ID, skipping the header. Columns: id, available, pending, nextPayment.
func filterBalances(rows [][]interface{}, id string) []models.BalanceEntry {
	if len(rows) <= 1 {
		return nil
	}
	var entries []models.BalanceEntry
	for _, row := range rows[1:] {
		if balanceCell(row, 0) != id {
			continue
		}
		entries = append(entries, models.BalanceEntry{
			Available:   balanceFloat(row, 1),
			Pending:     balanceFloat(row, 2),
			NextPayment: balanceString(row, 3),
		})
	}
	return entries
}

func balanceText(id string, entries []models.BalanceEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("ID: %s\n¡Vaya! 😕 No encontré saldos para este ID.", id)
	}

	var totalAvailable, totalPending float64
	var details strings.Builder
	for i, e := range entries {
		totalAvailable += e.Available
		totalPending += e.Pending
		if i > 0 {
			details.WriteString("\n")
		}
		details.WriteString(fmt.Sprintf("Pago %d: $%g (Próximo pago: %s)", i+1, e.Pending, e.NextPayment))
	}

	return fmt.Sprintf(`ID: %s
Saldo disponible total: $%g 💰
Facturas pendientes totales: $%g 📊
Detalles de pagos pendientes:
%s`, id, totalAvailable, totalPending, details.String())
}

func balanceCell(row []interface{}, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}

func balanceString(row []interface{}, idx int) string {
	s := balanceCell(row, idx)
	if s == "" {
		return "N/A"
	}
	return s
}

func balanceFloat(row []interface{}, idx int) float64 {
	f, err := strconv.ParseFloat(balanceCell(row, idx), 64)
	if err != nil {
		return 0
	}
	return f
}
