package sheets

import "context"

// Logical sheet names inside the business spreadsheet.
const (
	SheetAvailability  = "Disponibilidad"
	SheetOpenTrips     = "ViajesDisponibles"
	SheetBalances      = "Saldos"
	SheetAcceptedTrips = "ViajesAceptados"
)

// Store is the tabular backing store. Rows are ordered columns; the first row
// returned by ReadRows is a header and callers must skip it.
type Store interface {
	AppendRow(ctx context.Context, sheetName string, row []interface{}) error
	ReadRows(ctx context.Context, sheetName, readRange string) ([][]interface{}, error)
}
