package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/tealeg/xlsx"
)

var exportHeaders = []string{
	"ID", "Name", "Price", "Description", "Specification",
	"MainImage", "SideImages", "CreatedAt", "UpdatedAt",
}

// ExportXLSX writes the whole catalog as a single-sheet workbook.
func (s *CatalogService) ExportXLSX(ctx context.Context, w io.Writer) error {
	products, err := s.Repo.AllProducts(ctx)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID)
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Price)
		row.AddCell().SetValue(p.Description)
		row.AddCell().SetValue(p.Specification)
		row.AddCell().SetValue(p.MainImage)
		row.AddCell().SetValue(len(p.Images))
		row.AddCell().SetValue(p.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	return file.Write(w)
}
