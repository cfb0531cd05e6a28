package sheets

import (
	"context"
	"fmt"

	"cargalibre/config"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleSheetsStore implements Store on top of the Google Sheets API.
type GoogleSheetsStore struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetsStore builds a store from the loaded application config,
// authenticating with the configured service-account credentials file.
func NewGoogleSheetsStore(ctx context.Context, logger *zap.Logger) (*GoogleSheetsStore, error) {
	cfg := config.AppConfig
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.GoogleCredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &GoogleSheetsStore{
		service:       svc,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

func (s *GoogleSheetsStore) AppendRow(ctx context.Context, sheetName string, row []interface{}) error {
	rng := fmt.Sprintf("%s!A:Z", sheetName)
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		s.logger.Error("Failed to append row",
			zap.String("sheet", sheetName), zap.Error(err))
		return fmt.Errorf("sheets: append to %s: %w", sheetName, err)
	}
	s.logger.Debug("Appended row", zap.String("sheet", sheetName))
	return nil
}

func (s *GoogleSheetsStore) ReadRows(ctx context.Context, sheetName, readRange string) ([][]interface{}, error) {
	rng := fmt.Sprintf("%s!%s", sheetName, readRange)
	resp, err := s.service.Spreadsheets.Values.
		Get(s.spreadsheetID, rng).
		Context(ctx).
		Do()
	if err != nil {
		s.logger.Error("Failed to read rows",
			zap.String("sheet", sheetName), zap.String("range", readRange), zap.Error(err))
		return nil, fmt.Errorf("sheets: read %s: %w", sheetName, err)
	}
	return resp.Values, nil
}
